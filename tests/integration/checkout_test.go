package integration

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/safar/go-cart-checkout/internal/cart"
	"github.com/safar/go-cart-checkout/internal/checkout"
	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/models"
	"github.com/safar/go-cart-checkout/internal/store"
	"github.com/shopspring/decimal"
)

func newSQLPipeline(db *sql.DB) *checkout.Pipeline {
	return checkout.NewPipeline(
		cart.NewSQLStore(db),
		checkout.SQLCatalog{DB: db},
		checkout.SQLStockLedger{DB: db},
		checkout.SQLOrderLedger{DB: db},
		nil,
		nil,
	)
}

func seedUserAndProduct(t *testing.T, db *sql.DB, email, sku string, price int64, stock int) (*models.User, *models.Product) {
	t.Helper()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, email, "Test User", "")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, sku, "Widget", decimal.NewFromInt(price), stock, "")
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	return user, product
}

func TestCheckoutEndToEnd(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, product := seedUserAndProduct(t, db, "checkout@example.com", "CHK-001", 10, 5)

	carts := cart.NewService(cart.NewSQLStore(db), checkout.SQLCatalog{DB: db})
	if err := carts.Add(ctx, user.ID, product.ID, 2); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}

	invoice, err := newSQLPipeline(db).Checkout(ctx, user.ID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if !invoice.Total.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected invoice total 20, got %s", invoice.Total)
	}
	if len(invoice.Lines) != 1 {
		t.Fatalf("Expected 1 invoice line, got %d", len(invoice.Lines))
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 3 {
		t.Errorf("Expected stock 3 after checkout, got %d", productAfter.StockQuantity)
	}

	lines, err := store.ListCartLines(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List cart lines: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("Expected empty cart after checkout, got %d lines", len(lines))
	}

	page, err := store.ListHistoryByUserCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List history: %v", err)
	}
	entries := page.Items.([]models.OrderHistoryEntry)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(entries))
	}
	if !entries[0].Price.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected entry price 20, got %s", entries[0].Price)
	}
	if entries[0].Quantity != 2 {
		t.Errorf("Expected entry quantity 2, got %d", entries[0].Quantity)
	}
	if entries[0].OrderNumber != invoice.OrderNumber {
		t.Errorf("Expected entry order number %s, got %s", invoice.OrderNumber, entries[0].OrderNumber)
	}
}

func TestCheckoutInsufficientStockLeavesCartIntact(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user, product := seedUserAndProduct(t, db, "checkout2@example.com", "CHK-002", 10, 5)

	// Write the oversized line directly: the advisory add-time check would
	// reject it, but checkout must still fail safely on such a line.
	if err := store.UpsertCartLine(ctx, db, user.ID, product.ID, 10); err != nil {
		t.Fatalf("Upsert cart line: %v", err)
	}

	_, err := newSQLPipeline(db).Checkout(ctx, user.ID)
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}

	var stockErr *database.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got: %v", err)
	}
	if stockErr.Available != 5 {
		t.Errorf("Expected available 5 in error, got %d", stockErr.Available)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 5 {
		t.Errorf("Stock should remain 5, got %d", productAfter.StockQuantity)
	}

	lines, err := store.ListCartLines(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("List cart lines: %v", err)
	}
	if len(lines) != 1 {
		t.Errorf("Cart should keep its line after a validate abort, got %d lines", len(lines))
	}
}

func TestConcurrentCheckoutsForSameProduct(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "CHK-003", "Widget", decimal.NewFromInt(10), 5, "")
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	var users []*models.User
	for _, email := range []string{"race1@example.com", "race2@example.com"} {
		user, err := store.CreateUser(ctx, db, email, "Race User", "")
		if err != nil {
			t.Fatalf("Create user: %v", err)
		}
		if err := store.UpsertCartLine(ctx, db, user.ID, product.ID, 3); err != nil {
			t.Fatalf("Upsert cart line: %v", err)
		}
		users = append(users, user)
	}

	pipeline := newSQLPipeline(db)

	var wg sync.WaitGroup
	results := make(chan error, len(users))
	for _, user := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := pipeline.Checkout(ctx, userID)
			results <- err
		}(user.ID)
	}
	wg.Wait()
	close(results)

	successCount := 0
	stockFailures := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
			stockFailures++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly 1 successful checkout, got %d", successCount)
	}
	if stockFailures != 1 {
		t.Errorf("Expected exactly 1 insufficient stock failure, got %d", stockFailures)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 2 {
		t.Errorf("Expected final stock 2, got %d", productAfter.StockQuantity)
	}
}

func TestDecrementStockAtomicity(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "CHK-004", "Widget", decimal.NewFromInt(10), 5, "")
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	err = store.DecrementStock(ctx, db, product.ID, 6)
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got: %v", err)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 5 {
		t.Errorf("Failed decrement must not change stock, got %d", productAfter.StockQuantity)
	}

	if err := store.DecrementStock(ctx, db, product.ID, 5); err != nil {
		t.Fatalf("Decrement to zero: %v", err)
	}

	productAfter, err = store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 0 {
		t.Errorf("Expected stock 0, got %d", productAfter.StockQuantity)
	}

	err = store.DecrementStock(ctx, db, 999999, 1)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "CHK-005", "Widget", decimal.NewFromInt(10), 10, "")
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.DecrementStock(ctx, db, product.ID, 3)
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 3 {
		t.Errorf("Expected exactly 3 successful decrements of 3 from 10, got %d", successCount)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 1 {
		t.Errorf("Expected final stock 1, got %d", productAfter.StockQuantity)
	}
}
