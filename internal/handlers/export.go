package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/policy"
)

// ExportHandler streams the orders report as an xlsx workbook.
type ExportHandler struct {
	DB   *gorm.DB
	Gate *policy.Gate
	Log  *logrus.Logger
}

func NewExportHandler(db *gorm.DB, gate *policy.Gate, log *logrus.Logger) *ExportHandler {
	return &ExportHandler{DB: db, Gate: gate, Log: log}
}

// Orders: GET /admin/orders/export — admin only.
func (h *ExportHandler) Orders(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionView, "report", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var orders []models.Order
	if err := h.DB.Preload("Partner").Preload("Items.Product").Order("id asc").Find(&orders).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_orders", nil)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Orders"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Order", "Partner", "Status", "Consignment", "Product", "Qty", "Unit price", "Line total", "Order total", "Created"}
	for i, hname := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, hname)
	}
	row := 2
	for _, o := range orders {
		for _, it := range o.Items {
			values := []any{
				o.ID,
				o.Partner.Name,
				string(o.Status),
				o.IsRealization,
				it.Product.Number,
				it.Quantity,
				it.UnitPrice.InexactFloat64(),
				it.LineTotal.InexactFloat64(),
				o.TotalPrice.InexactFloat64(),
				o.CreatedAt.Format("2006-01-02"),
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}

	name := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	if err := f.Write(w); err != nil {
		h.Log.WithError(err).Error("orders export write failed")
	}
}
