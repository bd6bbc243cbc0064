// Package cart abstracts the two cart representations the storefront runs
// with: durable per-user rows in postgres, or an ephemeral session-scoped
// document in redis. Checkout depends only on the Store capability, never on
// a concrete variant.
package cart

import (
	"context"

	"github.com/safar/go-cart-checkout/internal/models"
	"github.com/shopspring/decimal"
)

type Store interface {
	// Get returns the user's lines in the variant's display order.
	Get(ctx context.Context, userID int64) ([]models.CartLine, error)
	// Upsert sets the line's quantity, creating the line if needed. The
	// quantity must already be clamped to >= 1.
	Upsert(ctx context.Context, line models.CartLine) error
	// Remove deletes the line; removing an absent line is a no-op.
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
}

// Total sums line subtotals for display.
func Total(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
