package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/recipesync/internal/recipe"
)

// FakeLikes is an in-memory like service. Recipes liked with code 0 get the
// next code from a counter; every call is logged.
//
// Safe for concurrent use.
type FakeLikes struct {
	mu       sync.Mutex
	next     int64
	answer   *int64
	liked    map[int64]recipe.Ref
	calls    []string
	bodies   []recipe.LikeBody
	failures map[string][]error
	blocks   map[string]chan struct{}
	entered  map[string]chan struct{}
}

// NewFakeLikes hands out codes starting at firstCode.
func NewFakeLikes(firstCode int64) *FakeLikes {
	return &FakeLikes{
		next:     firstCode,
		liked:    make(map[int64]recipe.Ref),
		failures: make(map[string][]error),
		blocks:   make(map[string]chan struct{}),
		entered:  make(map[string]chan struct{}),
	}
}

// Answer makes every Like return code regardless of the recipe.
func (f *FakeLikes) Answer(code int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = &code
}

// FailNext makes the next call to method ("like", "unlike", "liked")
// return err.
func (f *FakeLikes) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// Block makes calls to method wait until release is called. entered is
// closed once a call is waiting.
func (f *FakeLikes) Block(method string) (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{})
	f.blocks[method] = gate
	f.entered[method] = in

	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

// Seed marks r liked on the fake server.
func (f *FakeLikes) Seed(r recipe.Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liked[r.ServerCode] = r
}

// Calls returns the calls made so far, e.g. "like 김치볶음밥" or "unlike 7".
func (f *FakeLikes) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Bodies returns every like body received.
func (f *FakeLikes) Bodies() []recipe.LikeBody {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recipe.LikeBody(nil), f.bodies...)
}

// IsLiked reports whether code is liked on the fake server.
func (f *FakeLikes) IsLiked(code int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.liked[code]
	return ok
}

func (f *FakeLikes) enter(ctx context.Context, method, call string) error {
	// Like an HTTP client, an expired context fails before anything is sent.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.blocks[method]
	in := f.entered[method]
	delete(f.blocks, method)
	delete(f.entered, method)
	var err error
	if q := f.failures[method]; len(q) > 0 {
		err = q[0]
		f.failures[method] = q[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		close(in)
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *FakeLikes) Like(ctx context.Context, body recipe.LikeBody) (int64, error) {
	if err := f.enter(ctx, "like", "like "+body.Name); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	if f.answer != nil {
		return *f.answer, nil
	}
	code := body.Code
	if code <= 0 {
		code = f.next
		f.next++
	}
	r := body.Ref()
	r.ServerCode = code
	f.liked[code] = r
	return code, nil
}

func (f *FakeLikes) Unlike(ctx context.Context, code int64) error {
	if err := f.enter(ctx, "unlike", fmt.Sprintf("unlike %d", code)); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.liked, code)
	return nil
}

func (f *FakeLikes) Liked(ctx context.Context) ([]recipe.Ref, error) {
	if err := f.enter(ctx, "liked", "liked"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recipe.Ref, 0, len(f.liked))
	for _, r := range f.liked {
		out = append(out, r)
	}
	return out, nil
}
