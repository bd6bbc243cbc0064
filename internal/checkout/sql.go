package checkout

import (
	"context"
	"database/sql"

	"github.com/safar/go-cart-checkout/internal/models"
	"github.com/safar/go-cart-checkout/internal/store"
)

// SQLCatalog reads products straight from postgres.
type SQLCatalog struct {
	DB *sql.DB
}

func (c SQLCatalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, c.DB, id)
}

// SQLStockLedger delegates to the conditional-decrement statement; atomicity
// lives in the database.
type SQLStockLedger struct {
	DB *sql.DB
}

func (l SQLStockLedger) Decrease(ctx context.Context, productID int64, quantity int) error {
	return store.DecrementStock(ctx, l.DB, productID, quantity)
}

// SQLOrderLedger appends history rows.
type SQLOrderLedger struct {
	DB *sql.DB
}

func (l SQLOrderLedger) Append(ctx context.Context, entry models.OrderHistoryEntry) (int64, error) {
	return store.AppendHistory(ctx, l.DB, entry.OrderNumber, entry.UserID, entry.ProductID, entry.Quantity, entry.Price, entry.OrderDate)
}
