package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/models"
)

// ReviewPatch carries the fields supplied by one upsert call. A nil field
// keeps whatever is already stored.
type ReviewPatch struct {
	Rating *int
	Text   *string
}

// UpsertReview creates or merges the single review row for (userID,
// productID). The UNIQUE constraint plus ON CONFLICT makes the at-most-one-row
// guarantee hold regardless of call count or ordering; COALESCE keeps stored
// fields the patch omits.
func UpsertReview(ctx context.Context, tx *sql.Tx, userID, productID int64, patch ReviewPatch) (int64, error) {
	var rating sql.NullInt64
	if patch.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*patch.Rating), Valid: true}
	}

	var text sql.NullString
	if patch.Text != nil {
		text = sql.NullString{String: *patch.Text, Valid: true}
	}

	var id int64
	query := `
		INSERT INTO reviews (user_id, product_id, rating, review_text, review_date)
		VALUES ($1, $2, COALESCE($3, 0), COALESCE($4, ''), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET rating = COALESCE($3, reviews.rating),
		              review_text = COALESCE($4, reviews.review_text),
		              review_date = NOW()
		RETURNING id`

	err := tx.QueryRowContext(ctx, query, userID, productID, rating, text).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert review: %w", err)
	}

	return id, nil
}

func GetReview(ctx context.Context, db *sql.DB, id int64) (*models.Review, error) {
	review := &models.Review{}

	query := `
		SELECT id, user_id, product_id, rating, review_text, review_date
		FROM reviews
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&review.ID,
		&review.UserID,
		&review.ProductID,
		&review.Rating,
		&review.Text,
		&review.ReviewDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return review, nil
}

func GetReviewByUserAndProduct(ctx context.Context, db *sql.DB, userID, productID int64) (*models.Review, error) {
	review := &models.Review{}

	query := `
		SELECT id, user_id, product_id, rating, review_text, review_date
		FROM reviews
		WHERE user_id = $1 AND product_id = $2`

	err := db.QueryRowContext(ctx, query, userID, productID).Scan(
		&review.ID,
		&review.UserID,
		&review.ProductID,
		&review.Rating,
		&review.Text,
		&review.ReviewDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review by user and product: %w", err)
	}

	return review, nil
}

func ListReviewsByUser(ctx context.Context, db *sql.DB, userID int64) ([]models.Review, error) {
	query := `
		SELECT id, user_id, product_id, rating, review_text, review_date
		FROM reviews
		WHERE user_id = $1
		ORDER BY review_date DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews by user: %w", err)
	}
	defer rows.Close()

	return scanReviewRows(rows)
}

func ListReviews(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, user_id, product_id, rating, review_text, review_date
		FROM reviews
		ORDER BY review_date DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews, err := scanReviewRows(rows)
	if err != nil {
		return nil, err
	}

	return NewOffsetPage(reviews, total, page, pageSize), nil
}

func scanReviewRows(rows *sql.Rows) ([]models.Review, error) {
	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID,
			&review.UserID,
			&review.ProductID,
			&review.Rating,
			&review.Text,
			&review.ReviewDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}
