package services

import (
	"github.com/shopspring/decimal"

	"github.com/arsuvenir/backend/internal/models"
)

// DeriveRealizationStatus computes a realization's lifecycle state from its
// monetary totals. CANCELLED is sticky: ordinary payment mutations never move
// a realization out of it; only an explicit revival does, and revival calls
// this function with a non-cancelled previous status.
func DeriveRealizationStatus(paid, total decimal.Decimal, prev models.RealizationStatus) models.RealizationStatus {
	if prev == models.RealizationStatusCancelled {
		return models.RealizationStatusCancelled
	}
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.RealizationStatusCompleted
	case paid.GreaterThan(decimal.Zero):
		return models.RealizationStatusPartial
	default:
		return models.RealizationStatusPending
	}
}
