package repositories

import (
	"context"
	"sync"

	"trailcatalog-api/models"
)

// Snapshot is the visible record set at one point of a live subscription.
type Snapshot struct {
	Seq    uint64
	Routes []models.RoutePoint
	Err    error
}

// Subscription delivers a fresh snapshot whenever the underlying data
// changes. Only the latest undelivered snapshot is kept.
type Subscription struct {
	updates  chan Snapshot
	failures chan ChangeEvent
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

type loadFunc func(ctx context.Context) ([]models.RoutePoint, error)

func newSubscription(ctx context.Context, feed *ChangeFeed, scope Scope, load loadFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		updates:  make(chan Snapshot, 1),
		failures: make(chan ChangeEvent, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	id, events := feed.listen()
	go func() {
		defer close(s.done)
		defer close(s.failures)
		defer close(s.updates)
		defer feed.remove(id)

		var seq uint64
		refresh := func() {
			routes, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			seq++
			s.deliver(Snapshot{Seq: seq, Routes: routes, Err: err})
		}

		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev.Kind == ChangeWriteFailed {
					if scope.IsAdmin || (ev.ActorID != "" && ev.ActorID == scope.ActorID) {
						select {
						case s.failures <- ev:
						default:
						}
					}
					continue
				}
				refresh()
			}
		}
	}()

	return s
}

// deliver replaces any snapshot the reader has not picked up yet.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// Updates yields snapshots until the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Failures yields write failures that belong to the subscribed scope.
func (s *Subscription) Failures() <-chan ChangeEvent {
	return s.failures
}

// Done is closed once the subscription has been torn down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops the subscription and waits for its goroutine to exit.
// Calling it more than once is safe.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}
