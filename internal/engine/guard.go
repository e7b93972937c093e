package engine

import (
	"sync"

	"github.com/roach88/recipesync/internal/store"
)

// inflightGuard tracks favorites with a toggle in progress.
//
// A toggle claims every candidate key of its recipe at once, so a toggle
// made with the zero code and one made after the code was assigned still
// exclude each other. Claims are rejected, never queued.
//
// The guard also remembers the clock value of the last transition on each
// key, so a Refresh can tell that a toggle finished while it was reading
// the server list.
type inflightGuard struct {
	mu      sync.Mutex
	claims  map[string]*claim
	touched map[string]int64
}

type claim struct {
	keys  []string
	state store.State
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{
		claims:  make(map[string]*claim),
		touched: make(map[string]int64),
	}
}

// acquire claims every key, or none if any is already claimed. The returned
// claim starts with no state.
func (g *inflightGuard) acquire(keys []string) (*claim, func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, k := range keys {
		if _, busy := g.claims[k]; busy {
			return nil, nil, false
		}
	}
	c := &claim{keys: keys}
	for _, k := range keys {
		g.claims[k] = c
	}

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for _, k := range keys {
			if g.claims[k] == c {
				delete(g.claims, k)
			}
		}
	}
	return c, release, true
}

// set records the transient state of c, reached at clock value seq.
func (g *inflightGuard) set(c *claim, s store.State, seq int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.state = s
	for _, k := range c.keys {
		g.touched[k] = seq
	}
}

// touchedSince reports whether any key saw a transition after seq.
func (g *inflightGuard) touchedSince(keys []string, seq int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		if g.touched[k] > seq {
			return true
		}
	}
	return false
}

// state returns the transient state of the first claimed key.
func (g *inflightGuard) state(keys []string) (store.State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		if c, ok := g.claims[k]; ok {
			return c.state, true
		}
	}
	return "", false
}

// size returns the number of claimed keys.
func (g *inflightGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}
