package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Image         string          `json:"image,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CartLine is one (user, product) row of a cart. ProductName, UnitPrice,
// Image and AvailableQuantity are captured from the product when the line
// is added or updated; AvailableQuantity is a display hint only and is
// never trusted during checkout.
type CartLine struct {
	UserID            int64           `json:"user_id"`
	ProductID         int64           `json:"product_id"`
	Quantity          int             `json:"quantity"`
	ProductName       string          `json:"product_name"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Image             string          `json:"image,omitempty"`
	AvailableQuantity int             `json:"available_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderHistoryEntry is immutable once written, except for Review and Rating.
type OrderHistoryEntry struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	OrderDate   time.Time       `json:"order_date"`
	Review      string          `json:"review,omitempty"`
	Rating      int             `json:"rating,omitempty"`

	// Join fields populated by administrative listings.
	UserName    string          `json:"user_name,omitempty"`
	UserEmail   string          `json:"user_email,omitempty"`
	ProductName string          `json:"product_name,omitempty"`
}

// Review is the per-(user, product) record an order-line rating or review
// is folded into. Rating 0 means unset.
type Review struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ProductID  int64     `json:"product_id"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text"`
	ReviewDate time.Time `json:"review_date"`
}

type InvoiceLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is handed to the caller for one-time display and never persisted.
type Invoice struct {
	OrderNumber string          `json:"order_number"`
	Lines       []InvoiceLine   `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
}
