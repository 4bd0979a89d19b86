package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// couponValidator is the interface for coupon validation
type couponValidator interface {
	IsValid(ctx context.Context, code string) bool
	GetStats() map[string]interface{}
}

// CouponHandler handles HTTP requests for coupon validation
type CouponHandler struct {
	validator couponValidator
}

// NewCouponHandler creates a new CouponHandler
func NewCouponHandler(validator couponValidator) *CouponHandler {
	return &CouponHandler{
		validator: validator,
	}
}

// ValidateCoupon handles GET /api/coupon/{couponCode}
// Checks the code against the loaded coupon sets.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	couponCode := chi.URLParam(r, "couponCode")

	if h.validator.IsValid(r.Context(), couponCode) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid":  true,
			"coupon": couponCode,
		})
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"valid":   false,
		"coupon":  couponCode,
		"message": "Coupon not found or invalid",
	})
}

// GetStats handles GET /api/coupon/stats (for debugging/monitoring)
func (h *CouponHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.validator.GetStats())
}
