// Package stubapi is a development stand-in for the storefront cart API. It
// speaks the same envelope dialect the real backend does, so the client and
// CLI can be exercised without a deployed environment.
package stubapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

const bogoForcedQuantity = 2

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Server holds per-token carts in memory. Identity is the bearer token
// itself; the stub does not verify signatures.
type Server struct {
	logg    *logger.Logger
	catalog map[string]types.ProductSnapshot

	mu    sync.Mutex
	carts map[string][]types.CartItem
}

// NewServer builds the stub with an optional catalog. Products missing from
// the catalog price at 100 so totals stay predictable.
func NewServer(logg *logger.Logger, catalog map[string]types.ProductSnapshot) *Server {
	if catalog == nil {
		catalog = map[string]types.ProductSnapshot{}
	}
	return &Server{
		logg:    logg,
		catalog: catalog,
		carts:   map[string][]types.CartItem{},
	}
}

// Router exposes the cart endpoints under /api/cart.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/", s.fetchCart)
		r.Post("/add", s.addItem)
		r.Put("/update/{productId}", s.updateItem)
		r.Delete("/remove/{productId}", s.removeItem)
		r.Delete("/clear", s.clearCart)
		r.Post("/validate", s.validateCart)
		r.Post("/merge", s.mergeCart)
	})

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		if s.logg != nil {
			ctx := s.logg.WithRequestID(r.Context(), id)
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			}), "stub api request")
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerToken(r) == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{
				Success: false,
				Message: "Authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func (s *Server) fetchCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := cloneItems(s.carts[bearerToken(r)])
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"items": items},
	})
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req types.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid request body"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "productId is required"})
		return
	}

	offerType := types.NormalizeOfferType(string(req.OfferType))
	quantity := req.Quantity
	if offerType == types.OfferTypeBogo {
		quantity = bogoForcedQuantity
	}
	if quantity < 1 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "quantity must be at least 1"})
		return
	}

	s.mu.Lock()
	token := bearerToken(r)
	items := s.carts[token]
	at := indexOf(items, req.ProductID, req.OfferID)
	if at >= 0 {
		if offerType == types.OfferTypeBogo {
			items[at].Quantity = bogoForcedQuantity
		} else {
			items[at].Quantity += quantity
		}
	} else {
		item := types.CartItem{
			ProductID: req.ProductID,
			OfferID:   req.OfferID,
			Quantity:  quantity,
			UnitPrice: s.priceFor(req.ProductID),
		}
		if offerType != types.OfferTypeNone {
			item.OfferType = offerType
		}
		if product, ok := s.catalog[req.ProductID]; ok {
			snapshot := product
			item.Product = &snapshot
		}
		items = append(items, item)
	}
	s.carts[token] = items
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Item added to cart"})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req types.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid request body"})
		return
	}
	if req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "quantity must be at least 1"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	token := bearerToken(r)
	items := s.carts[token]
	at := indexOf(items, productID, req.OfferID)
	if at < 0 {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Item not found in cart"})
		return
	}
	items[at].Quantity = req.Quantity

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Cart updated"})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req types.RemoveItemRequest
	if r.Body != nil {
		// Body is optional on remove.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	token := bearerToken(r)
	items := s.carts[token]
	at := indexOf(items, productID, req.OfferID)
	if at < 0 {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Item not found in cart"})
		return
	}
	s.carts[token] = append(items[:at], items[at+1:]...)

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Item removed from cart"})
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.carts, bearerToken(r))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Cart cleared"})
}

// validateCart marks any product absent from a non-empty catalog as
// unavailable, which makes out-of-stock flows easy to provoke in dev.
func (s *Server) validateCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := cloneItems(s.carts[bearerToken(r)])
	s.mu.Unlock()

	results := make([]types.ValidationResult, 0, len(items))
	for _, item := range items {
		result := types.ValidationResult{
			ProductID: item.ProductID,
			OfferID:   item.OfferID,
			Available: true,
		}
		if len(s.catalog) > 0 {
			if _, ok := s.catalog[item.ProductID]; !ok {
				result.Available = false
				result.Reason = "no longer available"
			}
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"items": results},
	})
}

func (s *Server) mergeCart(w http.ResponseWriter, r *http.Request) {
	var req types.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid request body"})
		return
	}

	s.mu.Lock()
	token := bearerToken(r)
	items := s.carts[token]
	for _, incoming := range req.Items {
		at := indexOf(items, incoming.ProductID, incoming.OfferID)
		if at >= 0 {
			items[at].Quantity += incoming.Quantity
			continue
		}
		if incoming.UnitPrice.IsZero() {
			incoming.UnitPrice = s.priceFor(incoming.ProductID)
		}
		items = append(items, incoming)
	}
	s.carts[token] = items
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Cart merged"})
}

func (s *Server) priceFor(productID string) decimal.Decimal {
	if product, ok := s.catalog[productID]; ok && product.Price != nil {
		return *product.Price
	}
	return decimal.NewFromInt(100)
}

func indexOf(items []types.CartItem, productID, offerID string) int {
	for i, item := range items {
		if item.ProductID == productID && item.OfferID == offerID {
			return i
		}
	}
	return -1
}

func cloneItems(items []types.CartItem) []types.CartItem {
	cloned := make([]types.CartItem, len(items))
	copy(cloned, items)
	return cloned
}

func writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
