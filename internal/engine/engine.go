package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/recipesync/internal/identity"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/remote"
	"github.com/roach88/recipesync/internal/store"
)

// DefaultTimeout bounds the network and store work of one toggle. Time
// spent waiting on the Confirmer is not counted.
const DefaultTimeout = 15 * time.Second

// Outcome says how a toggle ended.
type Outcome string

const (
	OutcomeLiked        Outcome = "liked"
	OutcomeAlreadyLiked Outcome = "already_liked"
	OutcomeUnliked      Outcome = "unliked"
	OutcomeUnlikedLocal Outcome = "unliked_local"
	OutcomeNotLiked     Outcome = "not_liked"
	OutcomeKept         Outcome = "kept"
	OutcomeRolledBack   Outcome = "rolled_back"
	OutcomeRejected     Outcome = "rejected"
)

// Result is what a toggle left behind.
type Result struct {
	Op         string
	Key        string
	State      store.State
	ServerCode int64
	Outcome    Outcome
}

// Engine is the favorite sync engine. It is the only writer of its store.
//
// Thread-safety: all methods are safe for concurrent use. Toggles for the
// same favorite exclude each other; different favorites run in parallel.
type Engine struct {
	store    *store.FavoriteStore
	likes    LikeService
	tokens   remote.TokenProvider
	confirm  Confirmer
	notify   Notifier
	observer Observer
	ids      IDGenerator
	clock    *Clock
	timeout  time.Duration
	logger   *slog.Logger
	guard    *inflightGuard
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each toggle. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithTokens makes the engine check for a token before any optimistic
// update that will need the network.
func WithTokens(t remote.TokenProvider) Option {
	return func(e *Engine) { e.tokens = t }
}

// WithConfirmer sets who approves unlikes. Defaults to AlwaysConfirm.
func WithConfirmer(c Confirmer) Option {
	return func(e *Engine) { e.confirm = c }
}

// WithNotifier sets where failures are reported.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

// WithObserver adds an observer of state transitions.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if e.observer == nil {
			e.observer = o
			return
		}
		e.observer = multiObserver{e.observer, o}
	}
}

// WithIDGenerator sets the operation ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over s and likes.
func New(s *store.FavoriteStore, likes LikeService, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		likes:   likes,
		confirm: AlwaysConfirm,
		notify:  NotifyFunc(func(error) {}),
		ids:     UUIDv7Generator{},
		clock:   NewClock(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		guard:   newInflightGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = ObserverFunc(func(Transition) {})
	}
	return e
}

// Timeout returns the per-toggle deadline.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// op is the state of one toggle.
type op struct {
	id     string
	key    string
	keys   []string
	recipe recipe.Ref
	user   recipe.User
	claim  *claim
	log    *slog.Logger
}

// Toggle flips the favorite state of r for u: Liked goes through the unlike
// path, anything else through the like path.
//
// The operation runs under the engine timeout and is detached from the
// caller's cancellation: once started it finishes and persists its result
// even if the caller stops waiting. The Confirmer alone sees the caller's
// context, and its wait restarts the deadline. Failures are rolled back,
// reported to the Notifier once, and returned as *SyncError.
func (e *Engine) Toggle(ctx context.Context, r recipe.Ref, u recipe.User) (Result, error) {
	return e.run(ctx, r, u, modeToggle)
}

// Like makes r liked. A favorite already Liked locally short-circuits
// without a network call.
func (e *Engine) Like(ctx context.Context, r recipe.Ref, u recipe.User) (Result, error) {
	return e.run(ctx, r, u, modeLike)
}

// Unlike makes r unliked. A favorite with no Liked record is left alone.
func (e *Engine) Unlike(ctx context.Context, r recipe.Ref, u recipe.User) (Result, error) {
	return e.run(ctx, r, u, modeUnlike)
}

type mode int

const (
	modeToggle mode = iota
	modeLike
	modeUnlike
)

func (e *Engine) run(ctx context.Context, r recipe.Ref, u recipe.User, m mode) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{}, fmt.Errorf("toggle: %w", err)
	}

	o := &op{
		id:     e.ids.Generate(),
		key:    identity.DeriveKey(u.KeyID(), r),
		keys:   identity.DeriveCandidateKeys(u.KeyID(), r),
		recipe: r,
		user:   u,
	}
	o.log = e.logger.With("op", o.id, "key", o.key)

	c, release, ok := e.guard.acquire(o.keys)
	if !ok {
		state, _ := e.guard.state(o.keys)
		o.log.Warn("toggle rejected: operation in flight", "state", state)
		return Result{Op: o.id, Key: o.key, State: state, Outcome: OutcomeRejected}, ErrInFlight
	}
	defer release()
	o.claim = c

	caller := remote.WithRequestID(ctx, o.id)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(caller), e.timeout)
	defer cancel()

	records, err := e.store.Lookup(ctx, o.keys)
	if err != nil {
		return e.fail(o, store.Unliked, newStoreFailure(o.key, "read favorite", err))
	}

	liked, isLiked := firstLiked(records)
	switch {
	case m == modeLike && isLiked:
		e.transition(o, store.LikePending)
		e.transition(o, store.Liked)
		o.log.Debug("already liked, skipping network", "found", liked.Key)
		return Result{Op: o.id, Key: liked.Key, State: store.Liked, ServerCode: liked.ServerCode, Outcome: OutcomeAlreadyLiked}, nil
	case m == modeUnlike && !isLiked:
		o.log.Debug("not liked, nothing to unlike")
		return Result{Op: o.id, Key: o.key, State: store.Unliked, Outcome: OutcomeNotLiked}, nil
	case isLiked:
		return e.unlike(ctx, caller, o, liked, records)
	default:
		return e.like(ctx, o, records)
	}
}

func (e *Engine) like(ctx context.Context, o *op, stale []store.Record) (Result, error) {
	o.log.Debug("toggle: like", "code", o.recipe.ServerCode)

	if err := e.requireToken(ctx); err != nil {
		return e.fail(o, store.Unliked, newUnauthenticated(o.key, err))
	}

	e.transition(o, store.LikePending)

	code, err := e.likes.Like(ctx, recipe.NewLikeBody(o.recipe, o.user.ToolsMask))
	if err != nil {
		e.cleanup(o, stale, "")
		e.transition(o, store.Unliked)
		return e.fail(o, store.Unliked, classify(o.key, "like", err))
	}

	serverCode := o.recipe.ServerCode
	if code > 1 {
		serverCode = code
	}
	// The server has accepted; commit even if the deadline is close.
	rec := store.Record{Key: o.key, ServerCode: serverCode, State: store.Liked}
	if err := e.store.Put(context.WithoutCancel(ctx), rec); err != nil {
		e.transition(o, store.Unliked)
		return e.fail(o, store.Unliked, newStoreFailure(o.key, "persist like", err))
	}
	e.cleanup(o, stale, o.key)

	e.transition(o, store.Liked)
	o.log.Info("favorite liked", "server_code", serverCode, "returned", code)
	return Result{Op: o.id, Key: o.key, State: store.Liked, ServerCode: serverCode, Outcome: OutcomeLiked}, nil
}

func (e *Engine) unlike(ctx, caller context.Context, o *op, liked store.Record, records []store.Record) (Result, error) {
	code := recordedCode(records)
	if code == 0 && o.recipe.HasCode() {
		code = o.recipe.ServerCode
	}
	o.log.Debug("toggle: unlike", "code", code, "found", liked.Key)

	if code > 0 {
		if err := e.requireToken(ctx); err != nil {
			return e.fail(o, store.Liked, newUnauthenticated(o.key, err))
		}
	}

	e.transition(o, store.UnlikePending)

	ok, err := e.confirm.Confirm(caller, o.recipe)
	if err != nil || !ok {
		e.transition(o, store.Liked)
		o.log.Info("unlike not confirmed")
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrDeclined, err)
		} else {
			err = ErrDeclined
		}
		return Result{Op: o.id, Key: o.key, State: store.Liked, ServerCode: code, Outcome: OutcomeKept}, err
	}

	// A slow answer must not eat into the request's budget.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(caller), e.timeout)
	defer cancel()

	if code == 0 {
		// Nothing the server could identify: resolve locally.
		if err := e.store.RemoveAll(ctx, o.keys); err != nil {
			e.transition(o, store.Liked)
			return e.fail(o, store.Liked, newStoreFailure(o.key, "remove favorite", err))
		}
		e.transition(o, store.Unliked)
		o.log.Info("favorite removed locally", "reason", ErrCodeIdentityAmbiguity)
		return Result{Op: o.id, Key: o.key, State: store.Unliked, Outcome: OutcomeUnlikedLocal}, nil
	}

	if err := e.likes.Unlike(ctx, code); err != nil {
		e.transition(o, store.Liked)
		return e.fail(o, store.Liked, classify(o.key, "unlike", err))
	}

	if err := e.store.RemoveAll(context.WithoutCancel(ctx), o.keys); err != nil {
		// The server no longer has it; a later Refresh drops the local copy.
		e.transition(o, store.Liked)
		return e.fail(o, store.Liked, newStoreFailure(o.key, "remove favorite", err))
	}

	e.transition(o, store.Unliked)
	o.log.Info("favorite unliked", "server_code", code)
	return Result{Op: o.id, Key: o.key, State: store.Unliked, ServerCode: code, Outcome: OutcomeUnliked}, nil
}

// State returns the state a caller should render for r.
func (e *Engine) State(ctx context.Context, r recipe.Ref, u recipe.User) (store.State, error) {
	keys := identity.DeriveCandidateKeys(u.KeyID(), r)
	if s, ok := e.guard.state(keys); ok && s != "" {
		return s, nil
	}
	records, err := e.store.Lookup(ctx, keys)
	if err != nil {
		return "", fmt.Errorf("favorite state: %w", err)
	}
	if _, ok := firstLiked(records); ok {
		return store.Liked, nil
	}
	return store.Unliked, nil
}

// Record returns the persisted record covering r, if any.
func (e *Engine) Record(ctx context.Context, r recipe.Ref, u recipe.User) (store.Record, bool, error) {
	records, err := e.store.Lookup(ctx, identity.DeriveCandidateKeys(u.KeyID(), r))
	if err != nil {
		return store.Record{}, false, fmt.Errorf("favorite record: %w", err)
	}
	rec, ok := firstLiked(records)
	return rec, ok, nil
}

func (e *Engine) requireToken(ctx context.Context) error {
	if e.tokens == nil {
		return nil
	}
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if remote.Authorization(tok) == "" {
		return remote.ErrNoToken
	}
	return nil
}

func (e *Engine) transition(o *op, s store.State) {
	seq := e.clock.Next()
	e.guard.set(o.claim, s, seq)
	e.observer.Observe(Transition{Seq: seq, Op: o.id, Key: o.key, State: s})
}

// cleanup removes leftover non-liked records under the candidate keys,
// except keep.
func (e *Engine) cleanup(o *op, stale []store.Record, keep string) {
	var keys []string
	for _, rec := range stale {
		if rec.State != store.Liked && rec.Key != keep {
			keys = append(keys, rec.Key)
		}
	}
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.store.RemoveAll(ctx, keys); err != nil {
		o.log.Warn("stale record cleanup failed", "keys", keys, "error", err)
	}
}

func (e *Engine) fail(o *op, s store.State, err *SyncError) (Result, error) {
	o.log.Error("toggle failed",
		"code", err.Code,
		"status", err.Status,
		"error", err.Err)
	e.notify.Notify(err)
	return Result{Op: o.id, Key: o.key, State: s, Outcome: OutcomeRolledBack}, err
}

// firstLiked returns the first Liked record.
func firstLiked(records []store.Record) (store.Record, bool) {
	for _, rec := range records {
		if rec.State == store.Liked {
			return rec, true
		}
	}
	return store.Record{}, false
}

// recordedCode returns the first real code carried by a Liked record.
func recordedCode(records []store.Record) int64 {
	for _, rec := range records {
		if rec.State == store.Liked && rec.HasCode() {
			return rec.ServerCode
		}
	}
	return 0
}
