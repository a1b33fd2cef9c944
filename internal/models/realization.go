package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RealizationStatus is the closed set of consignment ledger states.
// PENDING, PARTIAL and COMPLETED are derived from the amounts; CANCELLED is
// an explicit exception state reachable only through order cancellation.
type RealizationStatus string

const (
	RealizationStatusPending   RealizationStatus = "PENDING"
	RealizationStatusPartial   RealizationStatus = "PARTIAL"
	RealizationStatusCompleted RealizationStatus = "COMPLETED"
	RealizationStatusCancelled RealizationStatus = "CANCELLED"
)

func (s RealizationStatus) Valid() bool {
	switch s {
	case RealizationStatusPending, RealizationStatusPartial, RealizationStatusCompleted, RealizationStatusCancelled:
		return true
	}
	return false
}

// Realization is the consignment ledger for one order. TotalCost is fixed at
// creation (the order total at that moment); PaidAmount must equal the sum of
// all payment rows at all times, maintained transactionally by the service
// layer.
type Realization struct {
	ID         uint                 `gorm:"primaryKey" json:"id"`
	OrderID    uint                 `gorm:"not null;uniqueIndex" json:"order_id"`
	Order      Order                `gorm:"foreignKey:OrderID" json:"-"`
	PartnerID  uint                 `gorm:"not null;index" json:"partner_id"`
	Partner    Partner              `gorm:"foreignKey:PartnerID" json:"-"`
	TotalCost  decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"total_cost"`
	PaidAmount decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"paid_amount"`
	Status     RealizationStatus    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	Items      []RealizationItem    `gorm:"foreignKey:RealizationID;constraint:OnDelete:CASCADE" json:"items"`
	Payments   []RealizationPayment `gorm:"foreignKey:RealizationID;constraint:OnDelete:CASCADE" json:"payments"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// OwnerID reports the owning partner for authorization checks.
func (r *Realization) OwnerID() uint { return r.PartnerID }

// Remaining is the partial balance still owed on the consignment.
func (r *Realization) Remaining() decimal.Decimal {
	return r.TotalCost.Sub(r.PaidAmount)
}

// RealizationItem is one consigned line, cloned from the order item when the
// realization is created. UnitCost is captured from the product at that
// moment for margin accounting. Immutable after creation.
type RealizationItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RealizationID uint            `gorm:"not null;index" json:"realization_id"`
	ProductID     uint            `gorm:"not null" json:"product_id"`
	Product       Product         `gorm:"foreignKey:ProductID" json:"product"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
}

// RealizationPayment is a single money-received event against a realization.
type RealizationPayment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RealizationID uint            `gorm:"not null;index" json:"realization_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Note          string          `json:"note"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	CreatedAt     time.Time       `json:"created_at"`
}
