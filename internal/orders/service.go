// Package orders holds the caller-side operations on order history entries:
// input validation, owner-or-admin authorization, and the review upsert side
// effect that folds a line's rating or review into the per-(user, product)
// review record.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/store"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrEmptyReview   = errors.New("review cannot be empty")
	ErrNotAllowed    = errors.New("not allowed to modify this order entry")
)

// Actor is a resolved identity; authentication happened elsewhere.
type Actor struct {
	UserID int64
	Admin  bool
}

// Rate stores a 1-5 rating on the entry and upserts the owner's review for
// the product, in one retried transaction.
func Rate(ctx context.Context, db *sql.DB, actor Actor, entryID int64, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	entry, err := store.GetHistoryEntry(ctx, db, entryID)
	if err != nil {
		return err
	}

	if !actor.Admin && actor.UserID != entry.UserID {
		return ErrNotAllowed
	}

	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := store.SetEntryRating(ctx, tx, entryID, rating); err != nil {
			return err
		}
		_, err := store.UpsertReview(ctx, tx, entry.UserID, entry.ProductID, store.ReviewPatch{Rating: &rating})
		return err
	})
}

// Review stores free text on the entry and upserts the owner's review for the
// product, in one retried transaction.
func Review(ctx context.Context, db *sql.DB, actor Actor, entryID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyReview
	}

	entry, err := store.GetHistoryEntry(ctx, db, entryID)
	if err != nil {
		return err
	}

	if !actor.Admin && actor.UserID != entry.UserID {
		return ErrNotAllowed
	}

	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := store.SetEntryReview(ctx, tx, entryID, text); err != nil {
			return err
		}
		_, err := store.UpsertReview(ctx, tx, entry.UserID, entry.ProductID, store.ReviewPatch{Text: &text})
		return err
	})
}
