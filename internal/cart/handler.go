package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Store interface {
	List(ctx context.Context, userID string) ([]domain.CartItem, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// ProductFinder returns nil, nil for an unknown product.
type ProductFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	store    Store
	products ProductFinder
	logger   *slog.Logger
}

func NewHandler(store Store, products ProductFinder, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		products: products,
		logger:   logger,
	}
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	items, err := h.store.List(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to list cart", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" || req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	product, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("failed to look up product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil || !product.IsActive {
		h.writeError(w, http.StatusBadRequest, "product not found")
		return
	}
	if product.StockQuantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "product is out of stock")
		return
	}

	item, err := h.store.Add(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil || item == nil {
		h.logger.Error("failed to add to cart", "error", err, "user_id", id.UserID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart item added", "user_id", id.UserID, "product_id", req.ProductID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

// HandleUpdate sets an absolute quantity. Zero or less removes the line.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if req.Quantity <= 0 {
		if err := h.store.Remove(r.Context(), id.UserID, req.ProductID); err != nil {
			h.logger.Error("failed to remove cart item", "error", err, "user_id", id.UserID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
		return
	}

	item, err := h.store.SetQuantity(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.logger.Error("failed to update cart item", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if item == nil {
		h.writeError(w, http.StatusNotFound, "item not in cart")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.store.Remove(r.Context(), id.UserID, req.ProductID); err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	if err := h.store.Clear(r.Context(), id.UserID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
