package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/models"
	"github.com/shopspring/decimal"
)

// AppendHistory writes one purchase line. Entries are append-only; only the
// review and rating fields may change afterwards.
func AppendHistory(ctx context.Context, db *sql.DB, orderNumber string, userID, productID int64, quantity int, price decimal.Decimal, orderDate time.Time) (int64, error) {
	var id int64

	query := `
		INSERT INTO order_history (order_number, user_id, product_id, quantity, price, order_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := db.QueryRowContext(ctx, query, orderNumber, userID, productID, quantity, price, orderDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}

	return id, nil
}

func GetHistoryEntry(ctx context.Context, db *sql.DB, id int64) (*models.OrderHistoryEntry, error) {
	entry := &models.OrderHistoryEntry{}
	var review sql.NullString
	var rating sql.NullInt64

	query := `
		SELECT oh.id, oh.order_number, oh.user_id, oh.product_id, oh.quantity, oh.price,
		       oh.order_date, oh.review, oh.rating, p.name
		FROM order_history oh
		LEFT JOIN products p ON oh.product_id = p.id
		WHERE oh.id = $1`

	var productName sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID,
		&entry.OrderNumber,
		&entry.UserID,
		&entry.ProductID,
		&entry.Quantity,
		&entry.Price,
		&entry.OrderDate,
		&review,
		&rating,
		&productName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderEntryNotFound
		}
		return nil, fmt.Errorf("get history entry: %w", err)
	}

	entry.Review = review.String
	entry.Rating = int(rating.Int64)
	entry.ProductName = productName.String

	return entry, nil
}

func ListHistoryByUserCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT oh.id, oh.order_number, oh.user_id, oh.product_id, oh.quantity, oh.price,
		       oh.order_date, oh.review, oh.rating, p.name
		FROM order_history oh
		LEFT JOIN products p ON oh.product_id = p.id
		WHERE oh.user_id = $1
		  AND (oh.order_date, oh.id) < ($2, $3)
		ORDER BY oh.order_date DESC, oh.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.OrderDate, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries, err := scanHistoryRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	var nextCursor string
	if hasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		nextCursor = EncodeCursor(HistoryCursor{
			OrderDate: last.OrderDate,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      entries,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListHistory is the administrative listing across all users.
func ListHistory(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_history`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT oh.id, oh.order_number, oh.user_id, oh.product_id, oh.quantity, oh.price,
		       oh.order_date, oh.review, oh.rating, p.name, u.name, u.email
		FROM order_history oh
		LEFT JOIN products p ON oh.product_id = p.id
		LEFT JOIN users u ON oh.user_id = u.id
		ORDER BY oh.order_date DESC, oh.id DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []models.OrderHistoryEntry
	for rows.Next() {
		var entry models.OrderHistoryEntry
		var review, productName, userName, userEmail sql.NullString
		var rating sql.NullInt64

		err := rows.Scan(
			&entry.ID,
			&entry.OrderNumber,
			&entry.UserID,
			&entry.ProductID,
			&entry.Quantity,
			&entry.Price,
			&entry.OrderDate,
			&review,
			&rating,
			&productName,
			&userName,
			&userEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}

		entry.Review = review.String
		entry.Rating = int(rating.Int64)
		entry.ProductName = productName.String
		entry.UserName = userName.String
		entry.UserEmail = userEmail.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(entries, total, page, pageSize), nil
}

// SetEntryReview stores free text on an existing entry. The caller validates
// the text before calling.
func SetEntryReview(ctx context.Context, tx *sql.Tx, id int64, text string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE order_history SET review = $1 WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("set entry review: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderEntryNotFound
	}

	return nil
}

// SetEntryRating stores a rating on an existing entry. The caller validates
// the 1-5 range before calling.
func SetEntryRating(ctx context.Context, tx *sql.Tx, id int64, rating int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE order_history SET rating = $1 WHERE id = $2`, rating, id)
	if err != nil {
		return fmt.Errorf("set entry rating: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOrderEntryNotFound
	}

	return nil
}

func scanHistoryRows(rows *sql.Rows) ([]models.OrderHistoryEntry, error) {
	var entries []models.OrderHistoryEntry
	for rows.Next() {
		var entry models.OrderHistoryEntry
		var review, productName sql.NullString
		var rating sql.NullInt64

		err := rows.Scan(
			&entry.ID,
			&entry.OrderNumber,
			&entry.UserID,
			&entry.ProductID,
			&entry.Quantity,
			&entry.Price,
			&entry.OrderDate,
			&review,
			&rating,
			&productName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}

		entry.Review = review.String
		entry.Rating = int(rating.Int64)
		entry.ProductName = productName.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
