package cart

import (
	"context"
	"time"

	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/models"
)

// Catalog is the product lookup the availability policy needs.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// Service applies the availability policy on top of a Store: every quantity
// increase re-fetches current stock and is rejected when the requested total
// exceeds it. The check protects the user experience only; checkout never
// relies on it.
type Service struct {
	store   Store
	catalog Catalog
}

func NewService(store Store, catalog Catalog) *Service {
	return &Service{store: store, catalog: catalog}
}

// Add increases the line's quantity by quantity (creating the line when
// absent). Quantities below 1 are clamped to 1.
func (s *Service) Add(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	lines, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	current := 0
	for _, line := range lines {
		if line.ProductID == productID {
			current = line.Quantity
			break
		}
	}

	desired := current + quantity
	if desired > product.StockQuantity {
		return &database.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	return s.store.Upsert(ctx, lineFromProduct(userID, product, desired))
}

// Update sets the line's quantity. The line must already exist.
func (s *Service) Update(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	lines, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	for _, line := range lines {
		if line.ProductID == productID {
			found = true
			break
		}
	}
	if !found {
		return database.ErrCartItemNotFound
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	if quantity > product.StockQuantity {
		return &database.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	return s.store.Upsert(ctx, lineFromProduct(userID, product, quantity))
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.CartLine, error) {
	return s.store.Get(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, productID int64) error {
	return s.store.Remove(ctx, userID, productID)
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.store.Clear(ctx, userID)
}

func lineFromProduct(userID int64, product *models.Product, quantity int) models.CartLine {
	return models.CartLine{
		UserID:            userID,
		ProductID:         product.ID,
		Quantity:          quantity,
		ProductName:       product.Name,
		UnitPrice:         product.Price,
		Image:             product.Image,
		AvailableQuantity: product.StockQuantity,
		CreatedAt:         time.Now(),
	}
}
