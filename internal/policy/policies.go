package policy

import (
	"context"

	"github.com/arsuvenir/backend/internal/models"
)

// AdminOnly allows administrators and nobody else. Used for partner
// management, product mutation, order status changes and payment mutations.
type AdminOnly struct{}

func (AdminOnly) Can(_ context.Context, p *models.Partner, _ Action, _ any) bool {
	return p != nil && p.IsAdmin()
}

// Owned allows admins everything and ordinary partners read access to their
// own resources. Mutations stay admin-only. The resource must implement
// OwnedResource.
type Owned struct{}

// OwnedResource exposes the owning partner of a resource.
type OwnedResource interface {
	OwnerID() uint
}

func (Owned) Can(_ context.Context, p *models.Partner, action Action, resource any) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	switch action {
	case ActionView, ActionList:
		if resource == nil {
			// list of own resources; handlers scope the query
			return true
		}
		owned, ok := resource.(OwnedResource)
		return ok && owned.OwnerID() == p.ID
	case ActionCreate:
		// partners submit their own orders
		return true
	default:
		return false
	}
}

// NewDefault wires the platform's resource policies.
func NewDefault() *Gate {
	g := NewGate()
	g.Register("partner", AdminOnly{})
	g.Register("product", AdminOnly{})
	g.Register("order", Owned{})
	g.Register("realization", Owned{})
	g.Register("payment", AdminOnly{})
	g.Register("report", AdminOnly{})
	return g
}
