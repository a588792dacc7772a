// File: /repositories/local_store.go
package repositories

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"trailcatalog-api/models"
)

const localIDLength = 7

// LocalStore keeps the whole catalog in a single slot, read fully and
// rewritten fully on every mutation. It has no notion of ownership: every
// scope sees and may change every record. Writers in other processes are not
// coordinated and the last write wins.
type LocalStore struct {
	slot Slot
	feed *ChangeFeed
	log  *zap.Logger
	now  func() time.Time

	mu sync.Mutex
}

func NewLocalStore(slot Slot, feed *ChangeFeed, log *zap.Logger) *LocalStore {
	return &LocalStore{
		slot: slot,
		feed: feed,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *LocalStore) Blocking() bool {
	return true
}

func (s *LocalStore) load(ctx context.Context) ([]models.RoutePoint, error) {
	data, err := s.slot.Load(ctx)
	if errors.Is(err, ErrSlotEmpty) {
		return []models.RoutePoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var routes []models.RoutePoint
	if err := json.Unmarshal(data, &routes); err != nil {
		// A corrupt slot reads as an empty catalog; the next write replaces it.
		s.log.Warn("discarding unreadable route slot", zap.String("slot", s.slot.Name()), zap.Error(err))
		return []models.RoutePoint{}, nil
	}
	for i := range routes {
		routes[i].ApplyDefaults()
	}
	return routes, nil
}

func (s *LocalStore) save(ctx context.Context, routes []models.RoutePoint) error {
	data, err := json.Marshal(routes)
	if err != nil {
		return fmt.Errorf("%w: encode slot: %v", ErrStorage, err)
	}
	if err := s.slot.Save(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// List ignores scope and returns every record in insertion order.
func (s *LocalStore) List(ctx context.Context, _ Scope) ([]models.RoutePoint, error) {
	return s.load(ctx)
}

func (s *LocalStore) GetByID(ctx context.Context, id string) (models.RoutePoint, error) {
	routes, err := s.load(ctx)
	if err != nil {
		return models.RoutePoint{}, err
	}
	for _, r := range routes {
		if r.ID == id {
			return r, nil
		}
	}
	return models.RoutePoint{}, ErrNotFound
}

func (s *LocalStore) Create(ctx context.Context, scope Scope, route models.RoutePoint) (models.RoutePoint, error) {
	if err := route.Normalize(); err != nil {
		return models.RoutePoint{}, err
	}
	if err := route.Validate(); err != nil {
		return models.RoutePoint{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	routes, err := s.load(ctx)
	if err != nil {
		return models.RoutePoint{}, err
	}

	taken := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		taken[r.ID] = struct{}{}
	}
	id, err := newLocalID(taken)
	if err != nil {
		return models.RoutePoint{}, err
	}

	route.ID = id
	route.CreatedAt = s.now()
	route.CreatedBy = ""
	route.UpdatedAt = nil
	route.ApplyDefaults()

	routes = append(routes, route)
	if err := s.save(ctx, routes); err != nil {
		return models.RoutePoint{}, err
	}

	s.feed.Publish(ctx, ChangeEvent{Kind: ChangeCreated, RouteID: id, ActorID: scope.ActorID})
	return route, nil
}

func (s *LocalStore) Update(ctx context.Context, scope Scope, id string, patch models.RoutePatch) (models.RoutePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	routes, err := s.load(ctx)
	if err != nil {
		return models.RoutePoint{}, err
	}

	for i := range routes {
		if routes[i].ID != id {
			continue
		}
		merged := routes[i]
		patch.Apply(&merged)
		if err := merged.Normalize(); err != nil {
			return models.RoutePoint{}, err
		}
		if err := merged.Validate(); err != nil {
			return models.RoutePoint{}, err
		}
		routes[i] = merged
		if err := s.save(ctx, routes); err != nil {
			return models.RoutePoint{}, err
		}
		s.feed.Publish(ctx, ChangeEvent{Kind: ChangeUpdated, RouteID: id, ActorID: scope.ActorID})
		return merged, nil
	}
	return models.RoutePoint{}, ErrNotFound
}

// Delete removes id. A missing id is not an error and leaves the slot untouched.
func (s *LocalStore) Delete(ctx context.Context, scope Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	routes, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := routes[:0]
	found := false
	for _, r := range routes {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return nil
	}
	if err := s.save(ctx, kept); err != nil {
		return err
	}
	s.feed.Publish(ctx, ChangeEvent{Kind: ChangeDeleted, RouteID: id, ActorID: scope.ActorID})
	return nil
}

func (s *LocalStore) Subscribe(ctx context.Context, scope Scope) (*Subscription, error) {
	return newSubscription(ctx, s.feed, scope, func(ctx context.Context) ([]models.RoutePoint, error) {
		return s.List(ctx, scope)
	}), nil
}

// newLocalID returns a short random base36 token not present in taken.
func newLocalID(taken map[string]struct{}) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(36), big.NewInt(localIDLength), nil)
	for attempt := 0; attempt < 16; attempt++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		id := n.Text(36)
		if len(id) < localIDLength {
			id = strings.Repeat("0", localIDLength-len(id)) + id
		}
		if _, dup := taken[id]; !dup {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique id", ErrStorage)
}
