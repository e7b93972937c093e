package testutil

import (
	"context"
	"sync"

	"github.com/roach88/recipesync/internal/engine"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/store"
)

// Recorder collects engine transitions and notifications.
//
// Safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	transitions []engine.Transition
	notified    []error
}

func (r *Recorder) Observe(t engine.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *Recorder) Notify(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, err)
}

// States returns the observed states in order.
func (r *Recorder) States() []store.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.State, len(r.transitions))
	for i, t := range r.transitions {
		out[i] = t.State
	}
	return out
}

// Transitions returns every observed transition.
func (r *Recorder) Transitions() []engine.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Transition(nil), r.transitions...)
}

// Notified returns every reported failure.
func (r *Recorder) Notified() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.notified...)
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = nil
	r.notified = nil
}

// Confirmer answers unlike confirmations from a script. When the script
// runs out it answers with Default.
type Confirmer struct {
	mu      sync.Mutex
	answers []bool
	Default bool
	asked   int
}

// NewConfirmer returns a Confirmer that gives answers in order, then true.
func NewConfirmer(answers ...bool) *Confirmer {
	return &Confirmer{answers: answers, Default: true}
}

func (c *Confirmer) Confirm(context.Context, recipe.Ref) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked++
	if len(c.answers) == 0 {
		return c.Default, nil
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

// Asked returns how many confirmations were requested.
func (c *Confirmer) Asked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asked
}
