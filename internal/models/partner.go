package models

import "time"

// PartnerRole distinguishes ordinary partners from back-office administrators.
// Authorization decisions must use this field only; never compare ids or names.
type PartnerRole string

const (
	RolePartner PartnerRole = "partner"
	RoleAdmin   PartnerRole = "admin"
)

func (r PartnerRole) Valid() bool {
	return r == RolePartner || r == RoleAdmin
}

// Partner is a business account. Owns its orders and realizations.
type Partner struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"not null" json:"name"`
	Login        string      `gorm:"size:120;unique;not null;index" json:"login"`
	PasswordHash string      `gorm:"not null" json:"-"`
	Role         PartnerRole `gorm:"size:20;not null;default:'partner'" json:"role"`
	Orders       []Order     `gorm:"foreignKey:PartnerID" json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (p *Partner) IsAdmin() bool { return p.Role == RoleAdmin }
