// File: /services/guard.go
package services

import (
	"errors"
	"sync"
)

var ErrSuperseded = errors.New("a newer request replaced this one")

// Guard discards results of requests that were overtaken by a newer request
// for the same key. Requests are never cancelled, only ignored.
type Guard struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func NewGuard() *Guard {
	return &Guard{gens: map[string]uint64{}}
}

// Begin starts a request for key and returns its generation.
func (g *Guard) Begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gens[key]++
	return g.gens[key]
}

// Finish reports whether gen is still the newest request for key.
func (g *Guard) Finish(key string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[key] == gen
}
