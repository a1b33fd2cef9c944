package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product catalog models
type ProductType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;unique" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductGroup is an optional grouping inside a type (e.g. a city series).
type ProductGroup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;unique" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a sellable AR souvenir. Cost is the unit cost used both for
// order pricing (unless overridden per line) and for margin capture on
// realization items.
type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Number       string          `gorm:"size:40;not null;uniqueIndex" json:"number"`
	TypeID       uint            `gorm:"not null;index" json:"type_id"`
	Type         ProductType     `gorm:"foreignKey:TypeID" json:"type"`
	GroupID      *uint           `gorm:"index" json:"group_id,omitempty"`
	Group        *ProductGroup   `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"cost"`
	ImagePath    string          `json:"image_path"`
	ARMarkerPath string          `json:"ar_marker_path"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
