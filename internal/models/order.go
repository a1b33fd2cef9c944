package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusConfirmed, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a purchase request submitted by a partner (or by an admin on a
// partner's behalf). IsRealization flags a consignment order: such an order
// spawns a Realization when confirmed and may only reach PAID through
// realization completion.
type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PartnerID     uint            `gorm:"not null;index" json:"partner_id"`
	Partner       Partner         `gorm:"foreignKey:PartnerID" json:"-"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
	Status        OrderStatus     `gorm:"size:20;not null;default:'NEW'" json:"status"`
	IsRealization bool            `gorm:"not null;default:false" json:"is_realization"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OwnerID reports the owning partner for authorization checks.
func (o *Order) OwnerID() uint { return o.PartnerID }

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
}
