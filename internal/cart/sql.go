package cart

import (
	"context"
	"database/sql"

	"github.com/safar/go-cart-checkout/internal/models"
	"github.com/safar/go-cart-checkout/internal/store"
)

// SQLStore is the durable variant backed by the cart_items table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, userID int64) ([]models.CartLine, error) {
	return store.ListCartLines(ctx, s.db, userID)
}

func (s *SQLStore) Upsert(ctx context.Context, line models.CartLine) error {
	return store.UpsertCartLine(ctx, s.db, line.UserID, line.ProductID, line.Quantity)
}

func (s *SQLStore) Remove(ctx context.Context, userID, productID int64) error {
	return store.RemoveCartLine(ctx, s.db, userID, productID)
}

func (s *SQLStore) Clear(ctx context.Context, userID int64) error {
	return store.ClearCart(ctx, s.db, userID)
}
