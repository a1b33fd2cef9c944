package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/policy"
	"github.com/arsuvenir/backend/internal/services"
)

// RealizationHandler exposes the consignment ledger and its payment
// mutations. Payments are admin-only; listing honors ownership.
type RealizationHandler struct {
	DB   *gorm.DB
	Svc  *services.RealizationService
	Gate *policy.Gate
}

func NewRealizationHandler(db *gorm.DB, svc *services.RealizationService, gate *policy.Gate) *RealizationHandler {
	return &RealizationHandler{DB: db, Svc: svc, Gate: gate}
}

// List: GET /realizations — partners see their own, admins see everything.
func (h *RealizationHandler) List(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionList, "realization", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	scope := p.ID
	if p.IsAdmin() {
		scope = 0
	}
	items, err := h.Svc.List(r.Context(), scope)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_realizations", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

// Get: GET /realizations/get?id=N
func (h *RealizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"id": "required"})
		return
	}
	realization, err := h.Svc.Get(r.Context(), uint(id))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionView, "realization", realization); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, realization)
}

type paymentReq struct {
	RealizationID uint            `json:"realization_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note"`
	PaymentDate   *time.Time      `json:"payment_date"`
}

// AddPayment: POST /realizations/payments — admin only.
func (h *RealizationHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionCreate, "payment", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req paymentReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	payment, err := h.Svc.AddPayment(r.Context(), req.RealizationID, req.Amount, req.Note, req.PaymentDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

// UpdatePayment: POST /realizations/payments/update — admin only; amount,
// note and payment date are each optional.
func (h *RealizationHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionUpdate, "payment", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		PaymentID   uint             `json:"payment_id" validate:"required"`
		Amount      *decimal.Decimal `json:"amount"`
		Note        *string          `json:"note"`
		PaymentDate *time.Time       `json:"payment_date"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	payment, err := h.Svc.UpdatePayment(r.Context(), req.PaymentID, services.PaymentPatch{Amount: req.Amount, Note: req.Note, PaymentDate: req.PaymentDate})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

// DeletePayment: POST /realizations/payments/delete — admin only.
func (h *RealizationHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionDelete, "payment", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		PaymentID uint `json:"payment_id" validate:"required"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	if err := h.Svc.DeletePayment(r.Context(), req.PaymentID); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}
