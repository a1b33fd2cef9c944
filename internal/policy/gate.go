// Package policy is the central authorization checkpoint. A Gate maps
// resource names to policies; every handler asks the gate instead of
// comparing ids or login names inline, so the admin check lives in exactly
// one place.
package policy

import (
	"context"
	"errors"

	"github.com/arsuvenir/backend/internal/models"
)

// Action describes the kind of operation a partner wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Policy decides whether a partner may perform an action on a resource.
// For list/create the resource may be nil (context-only check).
type Policy interface {
	Can(ctx context.Context, p *models.Partner, action Action, resource any) bool
}

type Gate struct {
	policies map[string]Policy
}

func NewGate() *Gate {
	return &Gate{policies: make(map[string]Policy)}
}

// Register adds a policy for a resource name (e.g. "order"). Overwrites any
// existing policy for that name.
func (g *Gate) Register(resource string, p Policy) {
	g.policies[resource] = p
}

// Authorize returns nil when p may perform action on the named resource.
func (g *Gate) Authorize(ctx context.Context, p *models.Partner, action Action, resource string, res any) error {
	if p == nil {
		return ErrUnauthorized
	}
	pol, ok := g.policies[resource]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !pol.Can(ctx, p, action, res) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate) Can(ctx context.Context, p *models.Partner, action Action, resource string, res any) bool {
	return g.Authorize(ctx, p, action, resource, res) == nil
}
