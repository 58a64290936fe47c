package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
)

type ProductStore interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type MediaStore interface {
	Commit(ctx context.Context, m *domain.ProductMedia) error
	List(ctx context.Context, productID string) ([]domain.ProductMedia, error)
	Delete(ctx context.Context, id string) (*domain.ProductMedia, error)
}

type Handler struct {
	products ProductStore
	media    MediaStore
	logger   *slog.Logger
}

func NewHandler(products ProductStore, media MediaStore, logger *slog.Logger) *Handler {
	return &Handler{
		products: products,
		media:    media,
		logger:   logger,
	}
}

func (h *Handler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	products, err := h.products.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// HandleGet serves the public product page. Inactive products read as missing.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}
	if product == nil || !product.IsActive {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := req.Product()
	if err != nil {
		h.writeDomainError(w, err, "invalid product")
		return
	}

	if err := h.products.Create(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "name", product.Name)
	h.writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch ProductPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := patch.Validate(); err != nil {
		h.writeDomainError(w, err, "invalid product update")
		return
	}

	product, err := h.products.Update(r.Context(), patch.ID, patch)
	if err != nil {
		h.logger.Error("failed to update product", "error", err, "product_id", patch.ID)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

type idRequest struct {
	ID string `json:"id"`
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.writeError(w, http.StatusBadRequest, "Product id is required")
		return
	}

	deleted, err := h.products.Delete(r.Context(), req.ID)
	if err != nil {
		h.logger.Error("failed to delete product", "error", err, "product_id", req.ID)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.logger.Info("product deleted", "product_id", req.ID)
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) HandleCommitMedia(w http.ResponseWriter, r *http.Request) {
	var req CommitMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	media, err := req.Media()
	if err != nil {
		h.writeDomainError(w, err, "invalid media")
		return
	}

	product, err := h.products.GetByID(r.Context(), media.ProductID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", media.ProductID)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.media.Commit(r.Context(), media); err != nil {
		h.logger.Error("failed to save media", "error", err, "product_id", media.ProductID)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}

	h.logger.Info("media committed", "media_id", media.ID, "product_id", media.ProductID, "media_type", media.MediaType)
	h.writeJSON(w, http.StatusOK, map[string]any{"media": media})
}

func (h *Handler) HandleListMedia(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	media, err := h.media.List(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to list media", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"media": media})
}

func (h *Handler) HandleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	media, err := h.media.Delete(r.Context(), req.ID)
	if err != nil {
		h.logger.Error("failed to delete media", "error", err, "media_id", req.ID)
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}
	if media == nil {
		h.writeError(w, http.StatusNotFound, "Media not found")
		return
	}

	// The stored object is left for the object store's lifecycle rules.
	h.logger.Info("media deleted", "media_id", media.ID, "storage_path", media.StoragePath)
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string) {
	status, message := httperr.Status(err)
	if httperr.Logged(err) {
		h.logger.Error(msg, "error", err)
	}
	h.writeError(w, status, message)
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
