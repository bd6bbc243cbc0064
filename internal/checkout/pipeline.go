package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/metrics"
	"github.com/safar/go-cart-checkout/internal/models"
	"github.com/shopspring/decimal"
)

// CartStore is the slice of the cart capability the pipeline needs.
type CartStore interface {
	Get(ctx context.Context, userID int64) ([]models.CartLine, error)
	Clear(ctx context.Context, userID int64) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// StockLedger must implement Decrease as a single atomic conditional update.
// It is the only correctness boundary against overselling; the validate stage
// is advisory and two concurrent checkouts can both pass it.
type StockLedger interface {
	Decrease(ctx context.Context, productID int64, quantity int) error
}

type OrderLedger interface {
	Append(ctx context.Context, entry models.OrderHistoryEntry) (int64, error)
}

// Terminal outcomes reported to metrics.
const (
	OutcomeSucceeded         = "succeeded"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomePartialFailure    = "partial_failure"
	OutcomeError             = "error"
)

type Pipeline struct {
	cart    CartStore
	catalog Catalog
	stock   StockLedger
	orders  OrderLedger
	logger  *slog.Logger
	metrics *metrics.CheckoutMetrics
}

func NewPipeline(cart CartStore, catalog Catalog, stock StockLedger, orders OrderLedger, logger *slog.Logger, m *metrics.CheckoutMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cart:    cart,
		catalog: catalog,
		stock:   stock,
		orders:  orders,
		logger:  logger,
		metrics: m,
	}
}

// Checkout runs the full stage sequence for one user:
// load -> validate -> decrement -> record -> invoice -> clear.
// Lines are processed strictly sequentially in cart order within each stage,
// and each stage completes for all lines before the next begins, so a failure
// is always attributable to one line.
func (p *Pipeline) Checkout(ctx context.Context, userID int64) (*models.Invoice, error) {
	start := time.Now()

	invoice, outcome, err := p.run(ctx, userID)

	if p.metrics != nil {
		p.metrics.Observe(outcome, time.Since(start))
	}

	return invoice, err
}

func (p *Pipeline) run(ctx context.Context, userID int64) (*models.Invoice, string, error) {
	lines, err := p.cart.Get(ctx, userID)
	if err != nil {
		return nil, OutcomeError, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, OutcomeEmptyCart, database.ErrEmptyCart
	}

	// Validate is read-only and advisory: it fails fast before any stock is
	// touched but cannot guarantee the decrement stage succeeds.
	for _, line := range lines {
		product, err := p.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, outcomeFor(err), fmt.Errorf("validate product %d: %w", line.ProductID, err)
		}
		if product.StockQuantity < line.Quantity {
			return nil, OutcomeInsufficientStock, &database.InsufficientStockError{
				ProductName: product.Name,
				Available:   product.StockQuantity,
			}
		}
	}

	orderNumber := newOrderNumber()

	// Decrement sequentially with short-circuit. Already-decremented lines
	// stay decremented when a later line fails.
	for i, line := range lines {
		if err := p.stock.Decrease(ctx, line.ProductID, line.Quantity); err != nil {
			if i == 0 {
				return nil, outcomeFor(err), p.describeStockFailure(ctx, line, err)
			}

			pf := &PartialFailureError{
				Stage:  StageDecrement,
				Done:   lines[:i],
				Failed: line,
				Err:    err,
			}
			p.logger.Error("checkout left partial stock deduction",
				"user_id", userID,
				"order_number", orderNumber,
				"stage", pf.Stage.String(),
				"applied_lines", len(pf.Done),
				"failed_product_id", line.ProductID,
				"error", err)
			return nil, OutcomePartialFailure, pf
		}
	}

	// Record one history entry per line. Stock is already deducted, so any
	// failure here is a partial failure regardless of position.
	now := time.Now()
	for i, line := range lines {
		entry := models.OrderHistoryEntry{
			OrderNumber: orderNumber,
			UserID:      userID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			Price:       line.Subtotal(),
			OrderDate:   now,
		}
		if _, err := p.orders.Append(ctx, entry); err != nil {
			pf := &PartialFailureError{
				Stage:  StageRecord,
				Done:   lines[:i],
				Failed: line,
				Err:    err,
			}
			p.logger.Error("checkout deducted stock but order recording failed",
				"user_id", userID,
				"order_number", orderNumber,
				"stage", pf.Stage.String(),
				"recorded_lines", len(pf.Done),
				"failed_product_id", line.ProductID,
				"error", err)
			return nil, OutcomePartialFailure, pf
		}
	}

	invoice := buildInvoice(orderNumber, lines, now)

	// Clearing is best-effort: the purchase already happened.
	if err := p.cart.Clear(ctx, userID); err != nil {
		p.logger.Warn("cart clear failed after successful checkout",
			"user_id", userID,
			"order_number", orderNumber,
			"error", err)
	}

	p.logger.Info("checkout completed",
		"user_id", userID,
		"order_number", orderNumber,
		"lines", len(lines),
		"total", invoice.Total.String())

	return invoice, OutcomeSucceeded, nil
}

// describeStockFailure turns a bare ledger rejection into the user-facing
// "only N in stock" shape when the product can still be read.
func (p *Pipeline) describeStockFailure(ctx context.Context, line models.CartLine, err error) error {
	if !errors.Is(err, database.ErrInsufficientStock) {
		return fmt.Errorf("decrement stock for product %d: %w", line.ProductID, err)
	}

	if product, gerr := p.catalog.GetProduct(ctx, line.ProductID); gerr == nil {
		return &database.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	return &database.InsufficientStockError{ProductName: line.ProductName}
}

func buildInvoice(orderNumber string, lines []models.CartLine, createdAt time.Time) *models.Invoice {
	invoice := &models.Invoice{
		OrderNumber: orderNumber,
		Lines:       make([]models.InvoiceLine, 0, len(lines)),
		Total:       decimal.Zero,
		CreatedAt:   createdAt,
	}

	for _, line := range lines {
		amount := line.Subtotal()
		invoice.Lines = append(invoice.Lines, models.InvoiceLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			Amount:      amount,
		})
		invoice.Total = invoice.Total.Add(amount)
	}

	return invoice
}

func newOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, database.ErrInsufficientStock):
		return OutcomeInsufficientStock
	default:
		return OutcomeError
	}
}
