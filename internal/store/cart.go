package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-cart-checkout/internal/models"
)

// Persistent cart_items rows keep only (user, product, quantity); display
// fields come from the products join so a price change shows up on the next
// cart view.

func ListCartLines(ctx context.Context, db *sql.DB, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT ci.user_id, ci.product_id, ci.quantity, ci.created_at,
		       p.name, p.price, p.image, p.stock_quantity
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at, ci.product_id`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var line models.CartLine
		err := rows.Scan(
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.ProductName,
			&line.UnitPrice,
			&line.Image,
			&line.AvailableQuantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func UpsertCartLine(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}

	return nil
}

func RemoveCartLine(ctx context.Context, db *sql.DB, userID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}

	return nil
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return nil
}
