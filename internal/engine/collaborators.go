package engine

import (
	"context"
	"sync"

	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/store"
)

// LikeService is the remote side of a favorite. Implemented by
// remote.Client.
type LikeService interface {
	// Like returns the server's code for the recipe; values <= 1 mean no
	// new code was assigned.
	Like(ctx context.Context, body recipe.LikeBody) (int64, error)
	Unlike(ctx context.Context, code int64) error
	Liked(ctx context.Context) ([]recipe.Ref, error)
}

// Confirmer asks the user before a destructive unlike.
type Confirmer interface {
	Confirm(ctx context.Context, r recipe.Ref) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, r recipe.Ref) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, r recipe.Ref) (bool, error) { return f(ctx, r) }

// AlwaysConfirm approves every unlike.
var AlwaysConfirm = ConfirmFunc(func(context.Context, recipe.Ref) (bool, error) { return true, nil })

// Notifier receives the single user-visible report of a failed toggle.
type Notifier interface {
	Notify(err error)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(err error)

func (f NotifyFunc) Notify(err error) { f(err) }

// Transition is one observed state change of a favorite.
type Transition struct {
	Seq   int64
	Op    string
	Key   string
	State store.State
}

// Observer is told about every state transition, optimistic ones included.
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

func (f ObserverFunc) Observe(t Transition) { f(t) }

// Detachable forwards to an Observer until Detach is called, after which
// every call is a no-op. A view that goes away detaches; toggles already in
// flight still finish and persist.
type Detachable struct {
	mu       sync.RWMutex
	observer Observer
}

// NewDetachable wraps o.
func NewDetachable(o Observer) *Detachable {
	return &Detachable{observer: o}
}

func (d *Detachable) Observe(t Transition) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.observer != nil {
		d.observer.Observe(t)
	}
}

// Detach stops forwarding.
func (d *Detachable) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = nil
}

// multiObserver fans out to several observers in order.
type multiObserver []Observer

func (m multiObserver) Observe(t Transition) {
	for _, o := range m {
		o.Observe(t)
	}
}
