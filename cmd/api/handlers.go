package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/safar/go-cart-checkout/internal/cart"
	"github.com/safar/go-cart-checkout/internal/checkout"
	"github.com/safar/go-cart-checkout/internal/database"
	"github.com/safar/go-cart-checkout/internal/orders"
	"github.com/safar/go-cart-checkout/internal/store"
	"github.com/shopspring/decimal"
)

// identify reads the identity resolved by the fronting auth layer. The
// engine trusts these headers; it never authenticates.
func identify(r *http.Request) (orders.Actor, error) {
	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil {
		return orders.Actor{}, errors.New("missing or invalid X-User-ID header")
	}

	return orders.Actor{
		UserID: userID,
		Admin:  r.Header.Get("X-User-Role") == "admin",
	}, nil
}

func handleUsers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				Email string `json:"email"`
				Name  string `json:"name"`
				Role  string `json:"role"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			user, err := store.CreateUser(ctx, db, req.Email, req.Name, req.Role)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusCreated, user)

		case http.MethodGet:
			page, pageSize := pageParams(r)

			result, err := store.ListUsers(ctx, db, page, pageSize)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleUserByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathID(r.URL.Path, "/users/")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user ID")
			return
		}

		user, err := store.GetUser(ctx, db, id)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, user)
	}
}

func handleProducts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			actor, err := identify(r)
			if err != nil {
				respondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !actor.Admin {
				respondError(w, http.StatusForbidden, "Admin role required")
				return
			}

			var req struct {
				SKU   string  `json:"sku"`
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Stock int     `json:"stock"`
				Image string  `json:"image"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			if req.Price < 0 || req.Stock < 0 {
				respondError(w, http.StatusBadRequest, "Price and stock must be non-negative")
				return
			}

			product, err := store.CreateProduct(ctx, db, req.SKU, req.Name, decimal.NewFromFloat(req.Price), req.Stock, req.Image)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusCreated, product)

		case http.MethodGet:
			page, pageSize := pageParams(r)

			result, err := store.ListProducts(ctx, db, page, pageSize)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleProductByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := pathID(r.URL.Path, "/products/")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		switch r.Method {
		case http.MethodGet:
			product, err := store.GetProduct(ctx, db, id)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, product)

		case http.MethodPut:
			actor, err := identify(r)
			if err != nil {
				respondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !actor.Admin {
				respondError(w, http.StatusForbidden, "Admin role required")
				return
			}

			var req struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Stock int     `json:"stock"`
				Image string  `json:"image"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			if req.Price < 0 || req.Stock < 0 {
				respondError(w, http.StatusBadRequest, "Price and stock must be non-negative")
				return
			}

			product, err := store.UpdateProduct(ctx, db, id, req.Name, decimal.NewFromFloat(req.Price), req.Stock, req.Image)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, product)

		case http.MethodDelete:
			actor, err := identify(r)
			if err != nil {
				respondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !actor.Admin {
				respondError(w, http.StatusForbidden, "Admin role required")
				return
			}

			if err := store.DeleteProduct(ctx, db, id); err != nil {
				respondDomainError(w, err)
				return
			}

			w.WriteHeader(http.StatusNoContent)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleCart(carts *cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		switch r.Method {
		case http.MethodGet:
			lines, err := carts.List(ctx, actor.UserID)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, map[string]interface{}{
				"items": lines,
				"total": cart.Total(lines),
			})

		case http.MethodDelete:
			if err := carts.Clear(ctx, actor.UserID); err != nil {
				respondDomainError(w, err)
				return
			}

			w.WriteHeader(http.StatusNoContent)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleCartItems(carts *cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		var req struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		switch r.Method {
		case http.MethodPost:
			err = carts.Add(ctx, actor.UserID, req.ProductID, req.Quantity)
		case http.MethodPut:
			err = carts.Update(ctx, actor.UserID, req.ProductID, req.Quantity)
		case http.MethodDelete:
			err = carts.Remove(ctx, actor.UserID, req.ProductID)
		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if err != nil {
			respondDomainError(w, err)
			return
		}

		lines, err := carts.List(ctx, actor.UserID)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"items": lines,
			"total": cart.Total(lines),
		})
	}
}

func handleCheckout(pipeline *checkout.Pipeline, invoices *invoiceCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		invoice, err := pipeline.Checkout(r.Context(), actor.UserID)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		invoices.Put(actor.UserID, invoice)
		respondJSON(w, http.StatusCreated, invoice)
	}
}

func handleInvoice(invoices *invoiceCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		invoice, ok := invoices.Pop(actor.UserID)
		if !ok {
			respondError(w, http.StatusNotFound, "No pending invoice")
			return
		}

		respondJSON(w, http.StatusOK, invoice)
	}
}

func handleOrders(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if r.URL.Query().Get("all") == "1" {
			if !actor.Admin {
				respondError(w, http.StatusForbidden, "Admin role required")
				return
			}

			page, pageSize := pageParams(r)
			result, err := store.ListHistory(ctx, db, page, pageSize)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, result)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		result, err := store.ListHistoryByUserCursor(ctx, db, actor.UserID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

// handleOrderByID serves /orders/{id} plus the /orders/{id}/rating and
// /orders/{id}/review mutations.
func handleOrderByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/orders/")
		idStr, action, _ := strings.Cut(rest, "/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			entry, err := store.GetHistoryEntry(ctx, db, id)
			if err != nil {
				respondDomainError(w, err)
				return
			}
			if entry.UserID != actor.UserID && !actor.Admin {
				respondError(w, http.StatusForbidden, "Not your order")
				return
			}

			respondJSON(w, http.StatusOK, entry)

		case "rating":
			if r.Method != http.MethodPost {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			var req struct {
				Rating int `json:"rating"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			if err := orders.Rate(ctx, db, actor, id, req.Rating); err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, map[string]string{"status": "rating saved"})

		case "review":
			if r.Method != http.MethodPost {
				respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}

			var req struct {
				Review string `json:"review"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			if err := orders.Review(ctx, db, actor, id, req.Review); err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, map[string]string{"status": "review saved"})

		default:
			respondError(w, http.StatusNotFound, "Not found")
		}
	}
}

func handleReviews(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		actor, err := identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if actor.Admin {
			page, pageSize := pageParams(r)
			result, err := store.ListReviews(ctx, db, page, pageSize)
			if err != nil {
				respondDomainError(w, err)
				return
			}

			respondJSON(w, http.StatusOK, result)
			return
		}

		reviews, err := store.ListReviewsByUser(ctx, db, actor.UserID)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, reviews)
	}
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func pathID(path, prefix string) (int64, error) {
	return strconv.ParseInt(path[len(prefix):], 10, 64)
}

// respondDomainError maps engine errors onto HTTP statuses. Partial checkout
// failures get the generic retry-with-support message; they are not safely
// retryable by the customer.
func respondDomainError(w http.ResponseWriter, err error) {
	var partial *checkout.PartialFailureError
	switch {
	case errors.As(err, &partial):
		respondError(w, http.StatusBadGateway, "Checkout could not complete, contact support")
	case errors.Is(err, database.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, orders.ErrInvalidRating),
		errors.Is(err, orders.ErrEmptyReview):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrNotAllowed):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCartItemNotFound),
		errors.Is(err, database.ErrOrderEntryNotFound),
		errors.Is(err, database.ErrReviewNotFound),
		errors.Is(err, database.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
