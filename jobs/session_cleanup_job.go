// File: /jobs/session_cleanup_job.go
package jobs

import (
	"time"

	"go.uber.org/zap"
)

// Purger drops expired entries and reports how many were removed.
type Purger interface {
	Purge() int
}

// PurgeFunc adapts a function to Purger.
type PurgeFunc func() int

func (f PurgeFunc) Purge() int { return f() }

// SessionCleanupJob periodically purges expired OAuth states, unclaimed
// redirect results, revoked tokens and idle rate limiters.
type SessionCleanupJob struct {
	purgers map[string]Purger
	log     *zap.Logger
	ticker  *time.Ticker
	done    chan bool
}

func NewSessionCleanupJob(interval time.Duration, log *zap.Logger, purgers map[string]Purger) *SessionCleanupJob {
	return &SessionCleanupJob{
		purgers: purgers,
		log:     log,
		ticker:  time.NewTicker(interval),
		done:    make(chan bool),
	}
}

// Start begins the cleanup job
func (j *SessionCleanupJob) Start() {
	j.log.Info("session cleanup job started")

	go func() {
		for {
			select {
			case <-j.ticker.C:
				j.Cleanup()
			case <-j.done:
				j.log.Info("session cleanup job stopped")
				return
			}
		}
	}()
}

// Stop stops the cleanup job
func (j *SessionCleanupJob) Stop() {
	j.ticker.Stop()
	j.done <- true
}

// Cleanup runs every purger once.
func (j *SessionCleanupJob) Cleanup() {
	for name, p := range j.purgers {
		if removed := p.Purge(); removed > 0 {
			j.log.Debug("purged expired entries", zap.String("store", name), zap.Int("removed", removed))
		}
	}
}
