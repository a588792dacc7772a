// File: /repositories/store.go
package repositories

import (
	"context"
	"errors"

	"trailcatalog-api/models"
)

var (
	ErrNotFound         = errors.New("route point not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStorage          = errors.New("storage failure")
	ErrUnauthenticated  = errors.New("an authenticated actor is required")
)

// Scope identifies who is asking. Public scopes see the whole catalog read-only.
type Scope struct {
	ActorID string
	IsAdmin bool
	Public  bool
}

// PublicScope is the read scope of the anonymous catalog.
func PublicScope() Scope {
	return Scope{Public: true}
}

// CanWrite reports whether the scope may modify a record created by owner.
func (s Scope) CanWrite(owner string) bool {
	if s.ActorID == "" {
		return false
	}
	return s.IsAdmin || s.ActorID == owner
}

// RouteStore is the persistence gateway shared by the local slot store and the
// managed document store.
type RouteStore interface {
	List(ctx context.Context, scope Scope) ([]models.RoutePoint, error)
	GetByID(ctx context.Context, id string) (models.RoutePoint, error)
	Create(ctx context.Context, scope Scope, route models.RoutePoint) (models.RoutePoint, error)
	Update(ctx context.Context, scope Scope, id string, patch models.RoutePatch) (models.RoutePoint, error)
	Delete(ctx context.Context, scope Scope, id string) error
	Subscribe(ctx context.Context, scope Scope) (*Subscription, error)
	// Blocking reports whether writes are acknowledged before returning.
	Blocking() bool
}

// ErrorCode classifies a store error for notifications and logs.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "storage_error"
	}
}
