// File: /repositories/document_store.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"trailcatalog-api/models"
)

// DocumentStore is the managed backend. Records carry their creator and
// non-admin scopes only see their own. With a WriteQueue the store runs in
// non-blocking mode: writes are applied in the background and the caller gets
// the optimistic record at once.
type DocumentStore struct {
	db    *gorm.DB
	feed  *ChangeFeed
	queue *WriteQueue
	log   *zap.Logger
	now   func() time.Time

	// pending holds queued creates that have not been committed yet, so
	// writes issued right after a 202 see the record.
	pendingMu sync.Mutex
	pending   map[string]models.RoutePoint
}

// NewDocumentStore builds the managed store. A nil queue makes every write blocking.
func NewDocumentStore(db *gorm.DB, feed *ChangeFeed, queue *WriteQueue, log *zap.Logger) *DocumentStore {
	s := &DocumentStore{
		db:      db,
		feed:    feed,
		queue:   queue,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		pending: map[string]models.RoutePoint{},
	}
	if queue != nil {
		queue.onFailure = s.reportFailure
	}
	return s
}

func (s *DocumentStore) Blocking() bool {
	return s.queue == nil
}

// List returns the records visible to scope, newest first.
func (s *DocumentStore) List(ctx context.Context, scope Scope) ([]models.RoutePoint, error) {
	var routes []models.RoutePoint
	query := s.db.WithContext(ctx).Order("created_at DESC")

	if !scope.IsAdmin && !scope.Public {
		if scope.ActorID == "" {
			return []models.RoutePoint{}, nil
		}
		query = query.Where("created_by = ?", scope.ActorID)
	}

	if err := query.Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("%w: list route points: %v", ErrStorage, err)
	}
	for i := range routes {
		routes[i].ApplyDefaults()
	}
	return routes, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id string) (models.RoutePoint, error) {
	var route models.RoutePoint
	err := s.db.WithContext(ctx).First(&route, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RoutePoint{}, ErrNotFound
	}
	if err != nil {
		return models.RoutePoint{}, fmt.Errorf("%w: get route point: %v", ErrStorage, err)
	}
	route.ApplyDefaults()
	return route, nil
}

func (s *DocumentStore) Create(ctx context.Context, scope Scope, route models.RoutePoint) (models.RoutePoint, error) {
	if scope.ActorID == "" {
		return models.RoutePoint{}, ErrUnauthenticated
	}
	if err := route.Normalize(); err != nil {
		return models.RoutePoint{}, err
	}
	if err := route.Validate(); err != nil {
		return models.RoutePoint{}, err
	}

	route.ID = uuid.NewString()
	route.CreatedAt = s.now()
	route.CreatedBy = scope.ActorID
	route.UpdatedAt = nil
	route.ApplyDefaults()

	row := route
	if s.queue != nil {
		s.setPending(route.ID, &route)
	}
	err := s.write(ctx, writeOp{
		name:    "create",
		routeID: route.ID,
		actorID: scope.ActorID,
		run: func(ctx context.Context) error {
			defer s.setPending(row.ID, nil)
			if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
				return fmt.Errorf("%w: create route point: %v", ErrStorage, err)
			}
			s.feed.Publish(ctx, ChangeEvent{Kind: ChangeCreated, RouteID: row.ID, ActorID: scope.ActorID})
			return nil
		},
	})
	if err != nil {
		s.setPending(route.ID, nil)
		return models.RoutePoint{}, err
	}
	return route, nil
}

// Update merges patch into the stored record and stamps updatedAt. Ownership
// is checked against the current record; the queued write checks it again.
func (s *DocumentStore) Update(ctx context.Context, scope Scope, id string, patch models.RoutePatch) (models.RoutePoint, error) {
	current, pending, err := s.current(ctx, id)
	if err != nil {
		return models.RoutePoint{}, err
	}
	if !scope.CanWrite(current.CreatedBy) {
		return models.RoutePoint{}, ErrPermissionDenied
	}

	merged := current
	patch.Apply(&merged)
	if err := merged.Normalize(); err != nil {
		return models.RoutePoint{}, err
	}
	if err := merged.Validate(); err != nil {
		return models.RoutePoint{}, err
	}
	updatedAt := s.now()
	merged.UpdatedAt = &updatedAt

	columns := patch.Columns()
	if patch.SuitableFor != nil {
		columns["suitable_for"] = merged.SuitableFor
	}
	columns["updated_at"] = updatedAt

	err = s.write(ctx, writeOp{
		name:    "update",
		routeID: id,
		actorID: scope.ActorID,
		run: func(ctx context.Context) error {
			err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var stored models.RoutePoint
				if err := tx.Select("id", "created_by").First(&stored, "id = ?", id).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return ErrNotFound
					}
					return fmt.Errorf("%w: load route point: %v", ErrStorage, err)
				}
				if !scope.CanWrite(stored.CreatedBy) {
					return ErrPermissionDenied
				}
				if err := tx.Model(&models.RoutePoint{}).Where("id = ?", id).Updates(columns).Error; err != nil {
					return fmt.Errorf("%w: update route point: %v", ErrStorage, err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			s.feed.Publish(ctx, ChangeEvent{Kind: ChangeUpdated, RouteID: id, ActorID: scope.ActorID})
			return nil
		},
	})
	if err != nil {
		return models.RoutePoint{}, err
	}
	if pending {
		s.replacePending(id, merged)
	}
	return merged, nil
}

// Delete removes id. Deleting a missing id succeeds without touching the store.
func (s *DocumentStore) Delete(ctx context.Context, scope Scope, id string) error {
	current, pending, err := s.current(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !scope.CanWrite(current.CreatedBy) {
		return ErrPermissionDenied
	}

	if pending {
		s.setPending(id, nil)
	}
	return s.write(ctx, writeOp{
		name:    "delete",
		routeID: id,
		actorID: scope.ActorID,
		run: func(ctx context.Context) error {
			res := s.db.WithContext(ctx).Delete(&models.RoutePoint{}, "id = ?", id)
			if res.Error != nil {
				return fmt.Errorf("%w: delete route point: %v", ErrStorage, res.Error)
			}
			if res.RowsAffected > 0 {
				s.feed.Publish(ctx, ChangeEvent{Kind: ChangeDeleted, RouteID: id, ActorID: scope.ActorID})
			}
			return nil
		},
	})
}

// current loads id for a write. A create still waiting in the queue counts
// as existing; the queued write then runs after it.
func (s *DocumentStore) current(ctx context.Context, id string) (models.RoutePoint, bool, error) {
	s.pendingMu.Lock()
	queued, ok := s.pending[id]
	s.pendingMu.Unlock()
	if ok {
		return queued, true, nil
	}
	route, err := s.GetByID(ctx, id)
	return route, false, err
}

// setPending records a queued create, or forgets it when route is nil.
func (s *DocumentStore) setPending(id string, route *models.RoutePoint) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if route == nil {
		delete(s.pending, id)
		return
	}
	s.pending[id] = *route
}

func (s *DocumentStore) replacePending(id string, route models.RoutePoint) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if _, ok := s.pending[id]; ok {
		s.pending[id] = route
	}
}

func (s *DocumentStore) Subscribe(ctx context.Context, scope Scope) (*Subscription, error) {
	return newSubscription(ctx, s.feed, scope, func(ctx context.Context) ([]models.RoutePoint, error) {
		return s.List(ctx, scope)
	}), nil
}

// Flush waits for queued writes. It returns at once in blocking mode.
func (s *DocumentStore) Flush(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	return s.queue.Flush(ctx)
}

func (s *DocumentStore) write(ctx context.Context, op writeOp) error {
	s.log.Debug("route point write",
		zap.String("op", op.name),
		zap.String("route_id", op.routeID),
		zap.Bool("blocking", s.queue == nil))
	if s.queue == nil {
		return op.run(ctx)
	}
	return s.queue.submit(op)
}

func (s *DocumentStore) reportFailure(op writeOp, err error) {
	s.feed.Publish(context.Background(), ChangeEvent{
		Kind:    ChangeWriteFailed,
		RouteID: op.routeID,
		ActorID: op.actorID,
		Code:    ErrorCode(err),
	})
}
