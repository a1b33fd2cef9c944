package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/auth"
	"github.com/arsuvenir/backend/internal/httpx"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/policy"
	"github.com/arsuvenir/backend/internal/services"
)

var validate = validator.New()

// currentPartner resolves the authenticated partner from the session context.
// Returns nil when the request carries no valid session or the partner no
// longer exists.
func currentPartner(db *gorm.DB, r *http.Request) *models.Partner {
	id, ok := auth.PartnerIDFromContext(r.Context())
	if !ok || id == 0 {
		return nil
	}
	var p models.Partner
	if err := db.First(&p, id).Error; err != nil {
		return nil
	}
	return &p
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var exceeds *services.ExceedsBalanceError
	switch {
	case errors.As(err, &exceeds):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "exceeds_balance", map[string]string{"remaining": exceeds.Remaining.String()})
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrInvalidInput):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.JSONError(w, http.StatusConflict, "invalid_transition", nil)
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, policy.ErrUnauthorized):
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// violations flattens validator errors into a field→reason map.
func violations(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return out
}
