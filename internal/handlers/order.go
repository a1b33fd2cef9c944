package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/notify"
	"github.com/arsuvenir/backend/internal/policy"
	"github.com/arsuvenir/backend/internal/services"
)

// OrderHandler wires order creation/listing and the admin status endpoint.
type OrderHandler struct {
	DB       *gorm.DB
	Svc      *services.OrderService
	Gate     *policy.Gate
	Notifier notify.Notifier
}

func NewOrderHandler(db *gorm.DB, svc *services.OrderService, gate *policy.Gate, notifier notify.Notifier) *OrderHandler {
	return &OrderHandler{DB: db, Svc: svc, Gate: gate, Notifier: notifier}
}

type orderLineReq struct {
	ProductID uint             `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// Create: POST /orders — a partner submits an order for itself; an admin may
// submit on behalf of any partner (partner_id field) and confirm immediately.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionCreate, "order", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		PartnerID     uint           `json:"partner_id"`
		Items         []orderLineReq `json:"items" validate:"required,min=1,dive"`
		Note          string         `json:"note"`
		IsRealization bool           `json:"is_realization"`
		Confirm       bool           `json:"confirm"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	partnerID := p.ID
	confirm := false
	if p.IsAdmin() {
		if req.PartnerID != 0 {
			partnerID = req.PartnerID
		}
		confirm = req.Confirm
	}
	lines := make([]services.OrderLine, 0, len(req.Items))
	hasOverride := false
	for _, it := range req.Items {
		if it.UnitPrice != nil {
			hasOverride = true
		}
		lines = append(lines, services.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	// custom per-line pricing is admin-negotiated
	if hasOverride && !p.IsAdmin() {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", map[string]string{"unit_price": "admin_only"})
		return
	}
	order, err := h.Svc.Create(r.Context(), partnerID, lines, req.Note, req.IsRealization, confirm)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var owner models.Partner
	if err := h.DB.First(&owner, partnerID).Error; err == nil {
		h.Notifier.OrderCreated(r.Context(), order, &owner)
	}
	httpx.JSON(w, http.StatusCreated, order)
}

// List: GET /orders — partners see their own, admins see everything.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionList, "order", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	scope := p.ID
	if p.IsAdmin() {
		scope = 0
	}
	orders, err := h.Svc.List(r.Context(), scope)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_orders", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": orders})
}

// SetStatus: POST /orders/status — admin only; drives the synchronizer.
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionUpdate, "order", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		OrderID uint   `json:"order_id" validate:"required"`
		Status  string `json:"status" validate:"required"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	order, err := h.Svc.SetStatus(r.Context(), req.OrderID, models.OrderStatus(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
