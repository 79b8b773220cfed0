package policy

import (
	"context"

	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

type actorKey struct{}

// WithActor stores the authenticated member of a company in ctx. Record
// rules read it to compare company, role and creator.
func WithActor(ctx context.Context, a services.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (services.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(services.Actor)
	return a, ok
}

// SeesAll reports roles that see every document of their company. Plain
// users only see what they created.
func SeesAll(role string) bool {
	return models.IsManager(role) || role == models.RoleAccountant
}

// OwnDocumentsOnly returns the creator filter for document lists: the actor's
// id for plain users, 0 otherwise.
func OwnDocumentsOnly(a services.Actor) uint {
	if SeesAll(a.Role) {
		return 0
	}
	return a.UserID
}

// CanDocument applies the record rules for invoices, quotes and receipts.
// Generating and downloading PDFs follows the view rule.
func CanDocument(a services.Actor, action gate.Action, d *models.Document) bool {
	if d == nil || a.CompanyID == 0 || d.CompanyID != a.CompanyID {
		return false
	}
	canView := SeesAll(a.Role) || d.CreatedByID == a.UserID
	switch action {
	case gate.ActionView, gate.ActionGenerate, gate.ActionDownload:
		return canView
	case gate.ActionUpdate:
		if !canView {
			return false
		}
		return !d.Status.Restricted() || models.IsManager(a.Role)
	case gate.ActionDelete:
		return models.IsManager(a.Role) && !d.Status.Settled()
	}
	return false
}

// DocumentPolicy is the gate policy for document kinds and pdf.
type DocumentPolicy struct{}

func (DocumentPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	a, ok := ActorFromContext(ctx)
	if !ok || a.UserID != userID {
		return false
	}
	switch r := resource.(type) {
	case models.Record:
		return CanDocument(a, action, r.Doc())
	case *models.Document:
		return CanDocument(a, action, r)
	}
	return false
}

// CanClient keeps clients inside their company and lets plain users edit or
// delete only the clients they created.
func CanClient(a services.Actor, action gate.Action, c *models.Client) bool {
	if c == nil || a.CompanyID == 0 || c.CompanyID != a.CompanyID {
		return false
	}
	switch action {
	case gate.ActionUpdate, gate.ActionDelete:
		return models.IsManager(a.Role) || c.CreatedByID == a.UserID
	}
	return true
}

// ClientPolicy is the gate policy for clients.
type ClientPolicy struct{}

func (ClientPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	a, ok := ActorFromContext(ctx)
	if !ok || a.UserID != userID {
		return false
	}
	c, ok := resource.(*models.Client)
	return ok && CanClient(a, action, c)
}
