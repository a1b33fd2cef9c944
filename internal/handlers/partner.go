package handlers

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/policy"
)

// PartnerHandler is the admin back-office partner CRUD.
type PartnerHandler struct {
	DB   *gorm.DB
	Gate *policy.Gate
}

func NewPartnerHandler(db *gorm.DB, gate *policy.Gate) *PartnerHandler {
	return &PartnerHandler{DB: db, Gate: gate}
}

// List: GET /partners — admin only.
func (h *PartnerHandler) List(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionList, "partner", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var partners []models.Partner
	if err := h.DB.Order("id asc").Find(&partners).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_partners", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": partners})
}

// Create: POST /partners — admin only.
func (h *PartnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionCreate, "partner", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		Name     string `json:"name" validate:"required"`
		Login    string `json:"login" validate:"required,min=3"`
		Password string `json:"password" validate:"required,min=8"`
		Role     string `json:"role"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	role := models.PartnerRole(req.Role)
	if req.Role == "" {
		role = models.RolePartner
	}
	if !role.Valid() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"role": "unknown"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	partner := models.Partner{Name: req.Name, Login: req.Login, PasswordHash: string(hash), Role: role}
	if err := h.DB.Create(&partner).Error; err != nil {
		httpx.JSONError(w, http.StatusConflict, "login_taken", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, partner)
}

// Update: POST /partners/update — admin only; rename, role change, password
// reset.
func (h *PartnerHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := currentPartner(h.DB, r)
	if err := h.Gate.Authorize(r.Context(), p, policy.ActionUpdate, "partner", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req struct {
		ID       uint    `json:"id" validate:"required"`
		Name     *string `json:"name"`
		Role     *string `json:"role"`
		Password *string `json:"password"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", violations(err))
		return
	}
	var partner models.Partner
	if err := h.DB.First(&partner, req.ID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		role := models.PartnerRole(*req.Role)
		if !role.Valid() {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"role": "unknown"})
			return
		}
		updates["role"] = role
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"password": "min"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			return
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&partner).Updates(updates).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_update_partner", nil)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, partner)
}
