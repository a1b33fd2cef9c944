package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/policy"
)

// DashboardHandler produces the back-office balance overview. Read-side
// aggregation over persisted rows; no locking needed.
type DashboardHandler struct {
	DB   *gorm.DB
	Gate *policy.Gate
}

func NewDashboardHandler(db *gorm.DB, gate *policy.Gate) *DashboardHandler {
	return &DashboardHandler{DB: db, Gate: gate}
}

type partnerBalance struct {
	PartnerID    uint            `json:"partner_id"`
	PartnerName  string          `json:"partner_name"`
	Consigned    decimal.Decimal `json:"consigned"`
	Paid         decimal.Decimal `json:"paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Realizations int             `json:"realizations"`
}

// Overview: GET /admin/dashboard — per-partner consignment balances plus
// order counts.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionView, "report", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var realizations []models.Realization
	if err := h.DB.Preload("Partner").Where("status <> ?", models.RealizationStatusCancelled).Find(&realizations).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_realizations", nil)
		return
	}
	byPartner := map[uint]*partnerBalance{}
	for _, r := range realizations {
		b, ok := byPartner[r.PartnerID]
		if !ok {
			b = &partnerBalance{PartnerID: r.PartnerID, PartnerName: r.Partner.Name}
			byPartner[r.PartnerID] = b
		}
		b.Consigned = b.Consigned.Add(r.TotalCost)
		b.Paid = b.Paid.Add(r.PaidAmount)
		b.Outstanding = b.Outstanding.Add(r.Remaining())
		b.Realizations++
	}
	balances := make([]*partnerBalance, 0, len(byPartner))
	for _, b := range byPartner {
		balances = append(balances, b)
	}

	var orderCount, newOrders int64
	h.DB.Model(&models.Order{}).Count(&orderCount)
	h.DB.Model(&models.Order{}).Where("status = ?", models.OrderStatusNew).Count(&newOrders)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"balances":   balances,
		"orders":     orderCount,
		"new_orders": newOrders,
	})
}
