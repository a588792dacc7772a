package repositories

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const changeChannel = "route_points:changes"

type ChangeKind string

const (
	ChangeCreated     ChangeKind = "created"
	ChangeUpdated     ChangeKind = "updated"
	ChangeDeleted     ChangeKind = "deleted"
	ChangeWriteFailed ChangeKind = "write_failed"
)

// ChangeEvent announces a committed write, or a queued write that failed.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	RouteID string     `json:"route_id"`
	ActorID string     `json:"actor_id,omitempty"`
	Code    string     `json:"code,omitempty"`
	Origin  string     `json:"origin"`
}

// ChangeFeed fans change events out to live subscriptions. With a Redis
// client the events are also relayed between instances.
type ChangeFeed struct {
	redis     *redis.Client
	origin    string
	log       *zap.Logger
	mu        sync.RWMutex
	listeners map[uint64]chan ChangeEvent
	next      uint64
}

func NewChangeFeed(redisClient *redis.Client, log *zap.Logger) *ChangeFeed {
	return &ChangeFeed{
		redis:     redisClient,
		origin:    uuid.NewString(),
		log:       log,
		listeners: map[uint64]chan ChangeEvent{},
	}
}

// Publish delivers ev to local listeners and, when configured, to other instances.
func (f *ChangeFeed) Publish(ctx context.Context, ev ChangeEvent) {
	ev.Origin = f.origin
	f.deliver(ev)

	if f.redis == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		f.log.Warn("encode change event", zap.Error(err))
		return
	}
	if err := f.redis.Publish(ctx, changeChannel, payload).Err(); err != nil {
		f.log.Warn("redis publish error", zap.Error(err))
	}
}

// Run relays events published by other instances until ctx is done. It
// returns immediately when no Redis client is configured.
func (f *ChangeFeed) Run(ctx context.Context) error {
	if f.redis == nil {
		return nil
	}
	pubsub := f.redis.Subscribe(ctx, changeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.log.Warn("decode change event", zap.Error(err))
				continue
			}
			if ev.Origin == f.origin {
				continue
			}
			f.deliver(ev)
		}
	}
}

func (f *ChangeFeed) listen() (uint64, <-chan ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ch := make(chan ChangeEvent, 64)
	f.listeners[f.next] = ch
	return f.next, ch
}

func (f *ChangeFeed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *ChangeFeed) deliver(ev ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.listeners {
		select {
		case ch <- ev:
		default:
			// listener is behind; it still has a queued event that forces a reload
		}
	}
}
