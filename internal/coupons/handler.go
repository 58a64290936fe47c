package coupons

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
)

type Quoter interface {
	Quote(ctx context.Context, userID, code string) (*domain.Quote, error)
	EligibleCoupons(ctx context.Context, userID string) (*domain.EligibleCoupons, error)
}

type Store interface {
	List(ctx context.Context) ([]domain.Coupon, error)
	Upsert(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error)
	Archive(ctx context.Context, id string) (bool, error)
}

// Handler serves the shopper coupon routes.
type Handler struct {
	quoter Quoter
	logger *slog.Logger
}

func NewHandler(quoter Quoter, logger *slog.Logger) *Handler {
	return &Handler{quoter: quoter, logger: logger}
}

type applyRequest struct {
	CouponCode string `json:"coupon_code"`
}

func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if domain.NormalizeCouponCode(req.CouponCode) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "coupon_code is required")
		return
	}

	quote, err := h.quoter.Quote(r.Context(), id.UserID, req.CouponCode)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to apply coupon", "user_id", id.UserID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, quote)
}

func (h *Handler) HandleEligible(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	eligible, err := h.quoter.EligibleCoupons(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list eligible coupons", "user_id", id.UserID)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, eligible)
}

// AdminHandler serves coupon management for administrators.
type AdminHandler struct {
	store  Store
	logger *slog.Logger
}

func NewAdminHandler(store Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.store.List(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list coupons")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{"coupons": coupons})
}

func (h *AdminHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	coupon, err := req.Coupon()
	if err != nil {
		writeDomainError(w, h.logger, err, "invalid coupon")
		return
	}

	saved, err := h.store.Upsert(r.Context(), coupon)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to save coupon", "code", coupon.Code)
		return
	}
	if saved == nil {
		writeError(w, h.logger, http.StatusNotFound, "coupon not found")
		return
	}

	h.logger.Info("coupon saved", "coupon_id", saved.ID, "code", saved.Code)
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"coupon": saved})
}

type deleteRequest struct {
	ID string `json:"id"`
}

func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Missing coupon id")
		return
	}

	archived, err := h.store.Archive(r.Context(), req.ID)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to archive coupon", "coupon_id", req.ID)
		return
	}
	if !archived {
		writeError(w, h.logger, http.StatusNotFound, "coupon not found")
		return
	}

	h.logger.Info("coupon archived", "coupon_id", req.ID)
	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"ok": true})
}

func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error, msg string, args ...any) {
	status, message := httperr.Status(err)
	if httperr.Logged(err) {
		logger.Error(msg, append([]any{"error", err}, args...)...)
	}
	writeError(w, logger, status, message)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}
