package handlers

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/policy"
	"github.com/arsuvenir/backend/internal/storage"
)

// ProductHandler serves the catalog and the admin product CRUD.
type ProductHandler struct {
	DB      *gorm.DB
	Gate    *policy.Gate
	Storage storage.Storage
	Log     *logrus.Logger
}

func NewProductHandler(db *gorm.DB, gate *policy.Gate, store storage.Storage, log *logrus.Logger) *ProductHandler {
	return &ProductHandler{DB: db, Gate: gate, Storage: store, Log: log}
}

// List: GET /products — catalog with optional type/group filters. Public.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := h.DB.Preload("Type").Preload("Group").Order("number asc")
	if v := r.URL.Query().Get("type_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			q = q.Where("type_id = ?", id)
		}
	}
	if v := r.URL.Query().Get("group_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			q = q.Where("group_id = ?", id)
		}
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_products", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products})
}

type productReq struct {
	Number  string          `json:"number" validate:"required"`
	TypeID  uint            `json:"type_id" validate:"required"`
	GroupID *uint           `json:"group_id"`
	Cost    decimal.Decimal `json:"cost"`
}

// Create: POST /products — admin only.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionCreate, "product", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req productReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	if req.Cost.Sign() <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"cost": "must_be_positive"})
		return
	}
	product := models.Product{Number: req.Number, TypeID: req.TypeID, GroupID: req.GroupID, Cost: req.Cost}
	if err := h.DB.Create(&product).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_product", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

// Update: POST /products/update — admin only.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionUpdate, "product", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		ID uint `json:"id" validate:"required"`
		productReq
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	var product models.Product
	if err := h.DB.First(&product, req.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	updates := map[string]any{"number": req.Number, "type_id": req.TypeID, "group_id": req.GroupID}
	if req.Cost.Sign() > 0 {
		updates["cost"] = req.Cost
	}
	if err := h.DB.Model(&product).Updates(updates).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_product", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// Delete: POST /products/delete — admin only, soft delete.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionDelete, "product", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		ID uint `json:"id" validate:"required"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	if err := h.DB.Delete(&models.Product{}, req.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_delete_product", nil)
		return
	}
	httpx.NoContent(w)
}

// UploadImage: POST /products/image — multipart upload, stores the file and
// records its path on the product. The "kind" field picks between the catalog
// image and the AR marker.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionUpdate, "product", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_multipart", nil)
		return
	}
	id, err := strconv.Atoi(r.FormValue("product_id"))
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"product_id": "required"})
		return
	}
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"file": "required"})
		return
	}
	defer file.Close()
	path, err := h.Storage.Save(header.Filename, file)
	if err != nil {
		h.Log.WithError(err).Error("product image save failed")
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_store_file", nil)
		return
	}
	column := "image_path"
	if r.FormValue("kind") == "ar_marker" {
		column = "ar_marker_path"
	}
	if err := h.DB.Model(&product).Update(column, path).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_product", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"path": path, "url": h.Storage.URL(path)})
}
