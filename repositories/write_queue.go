package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("write queue is closed")

// writeOp is one queued mutation. run receives a context detached from the
// request that submitted it.
type writeOp struct {
	name    string
	routeID string
	actorID string
	run     func(ctx context.Context) error
}

// WriteQueue applies non-blocking writes in submission order on a single
// worker. Callers never wait for acknowledgement; failures are reported to
// the onFailure hook.
type WriteQueue struct {
	ops       chan writeOp
	timeout   time.Duration
	log       *zap.Logger
	onFailure func(op writeOp, err error)

	// closeMu guards closed and the ops channel; mu guards the pending count.
	closeMu sync.RWMutex
	closed  bool
	mu      sync.Mutex
	pending int
	idle    chan struct{}
	stopped chan struct{}
}

func NewWriteQueue(size int, timeout time.Duration, log *zap.Logger) *WriteQueue {
	idle := make(chan struct{})
	close(idle)
	return &WriteQueue{
		ops:     make(chan writeOp, size),
		timeout: timeout,
		log:     log,
		idle:    idle,
		stopped: make(chan struct{}),
	}
}

// Start launches the worker.
func (q *WriteQueue) Start() {
	go func() {
		defer close(q.stopped)
		for op := range q.ops {
			q.apply(op)
		}
	}()
}

// Stop refuses new writes, drains what is queued and waits for the worker.
func (q *WriteQueue) Stop() {
	q.closeMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ops)
	}
	q.closeMu.Unlock()
	<-q.stopped
}

func (q *WriteQueue) submit(op writeOp) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	q.mu.Lock()
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()

	q.ops <- op
	return nil
}

// Flush blocks until every write submitted so far has been applied.
func (q *WriteQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *WriteQueue) apply(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	err := op.run(ctx)
	cancel()

	if err != nil {
		q.log.Warn("queued write failed",
			zap.String("op", op.name),
			zap.String("route_id", op.routeID),
			zap.String("actor_id", op.actorID),
			zap.String("code", ErrorCode(err)),
			zap.Error(err))
		if q.onFailure != nil {
			q.onFailure(op, err)
		}
	}

	q.mu.Lock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
	q.mu.Unlock()
}
