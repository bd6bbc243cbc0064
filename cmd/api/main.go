package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/safar/go-cart-checkout/internal/cart"
	"github.com/safar/go-cart-checkout/internal/checkout"
	"github.com/safar/go-cart-checkout/internal/config"
	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/metrics"
	"github.com/safar/go-cart-checkout/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var cartStore cart.Store
	switch cfg.Cart.Backend {
	case "redis":
		redisStore, err := cart.NewRedisStore(cfg.Redis.URL, cfg.Redis.CartTTL)
		if err != nil {
			log.Fatalf("Connect to redis: %v", err)
		}
		defer redisStore.Close()
		cartStore = redisStore
		log.Printf("Using redis cart backend")
	case "sql":
		cartStore = cart.NewSQLStore(db)
	default:
		log.Fatalf("Unknown cart backend %q", cfg.Cart.Backend)
	}

	catalog := checkout.SQLCatalog{DB: db}
	carts := cart.NewService(cartStore, catalog)
	pipeline := checkout.NewPipeline(
		cartStore,
		catalog,
		checkout.SQLStockLedger{DB: db},
		checkout.SQLOrderLedger{DB: db},
		logger,
		metrics.NewCheckoutMetrics(),
	)

	invoices := newInvoiceCache()

	mux := http.NewServeMux()

	mux.HandleFunc("/users", handleUsers(db))
	mux.HandleFunc("/users/", handleUserByID(db))
	mux.HandleFunc("/products", handleProducts(db))
	mux.HandleFunc("/products/", handleProductByID(db))
	mux.HandleFunc("/cart", handleCart(carts))
	mux.HandleFunc("/cart/items", handleCartItems(carts))
	mux.HandleFunc("/checkout", handleCheckout(pipeline, invoices))
	mux.HandleFunc("/invoice", handleInvoice(invoices))
	mux.HandleFunc("/orders", handleOrders(db))
	mux.HandleFunc("/orders/", handleOrderByID(db))
	mux.HandleFunc("/reviews", handleReviews(db))
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// invoiceCache holds at most one pending invoice per user, handed out exactly
// once. The next checkout for the same user supersedes an unfetched invoice.
type invoiceCache struct {
	mu       sync.Mutex
	invoices map[int64]*models.Invoice
}

func newInvoiceCache() *invoiceCache {
	return &invoiceCache{invoices: make(map[int64]*models.Invoice)}
}

func (c *invoiceCache) Put(userID int64, invoice *models.Invoice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invoices[userID] = invoice
}

func (c *invoiceCache) Pop(userID int64) (*models.Invoice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	invoice, ok := c.invoices[userID]
	if ok {
		delete(c.invoices, userID)
	}
	return invoice, ok
}
