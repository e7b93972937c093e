package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/roach88/recipesync/internal/engine"
	"github.com/roach88/recipesync/internal/fakeapi"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/remote"
	"github.com/roach88/recipesync/internal/store"
	"github.com/roach88/recipesync/internal/testutil"
)

// DefaultToken is the token used when a scenario does not set one. The fake
// API accepts only this token.
const DefaultToken = "scenario-token"

// Epoch is the store clock's first reading.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Harness runs one scenario. It records the trace as the engine reports
// transitions, pulling in API calls as they become visible.
type Harness struct {
	fake    *fakeapi.Server
	store   *store.FavoriteStore
	engine  *engine.Engine
	user    recipe.User
	result  *Result
	seen    int
	confirm bool
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store and a fresh fake API
// served over HTTP, so the real client, its error mapping and the engine
// are all exercised.
func Run(scenario *Scenario) (*Result, error) {
	token := DefaultToken
	if scenario.Token != nil {
		token = *scenario.Token
	}
	user := recipe.User{ID: scenario.User.ID, ToolsMask: scenario.User.Tools}

	fake := fakeapi.New(fakeapi.Options{
		Token:     DefaultToken,
		User:      user,
		FirstCode: scenario.FirstCode,
	})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tokens := remote.StaticToken(token)
	client, err := remote.NewClient(srv.URL, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	st := store.New(store.NewMemory(), store.WithClock(testutil.NewClock(Epoch, time.Minute).Now))
	defer st.Close()

	ctx := context.Background()
	for _, r := range scenario.Server {
		fake.Seed(recipe.Ref{ServerCode: r.Code, Name: r.Name, Time: r.Time, TypeCode: r.Type})
	}
	for i, r := range scenario.Local {
		rec := store.Record{Key: r.Key, ServerCode: r.Code, State: store.State(r.State)}
		if err := st.Put(ctx, rec); err != nil {
			return nil, fmt.Errorf("local[%d]: %w", i, err)
		}
	}

	h := &Harness{
		fake:   fake,
		store:  st,
		user:   user,
		result: NewResult(),
	}
	h.engine = engine.New(st, client,
		engine.WithTokens(tokens),
		engine.WithTimeout(5*time.Second),
		engine.WithIDGenerator(engine.NewSequenceGenerator("op")),
		engine.WithObserver(engine.ObserverFunc(h.observe)),
		engine.WithNotifier(engine.NotifyFunc(h.notify)),
		engine.WithConfirmer(engine.ConfirmFunc(h.ask)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	for i, step := range scenario.Flow {
		h.executeStep(ctx, i+1, step)
	}

	if err := h.snapshot(ctx); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step FlowStep) {
	h.confirm = step.Confirm == nil || *step.Confirm
	if step.Fail != nil {
		h.fake.FailNext(step.Fail.Route, fakeapi.Failure{Status: step.Fail.Status, Body: step.Fail.Body})
	}

	r := recipe.Ref{
		ServerCode: step.Recipe.Code,
		Name:       step.Recipe.Name,
		Time:       step.Recipe.Time,
		TypeCode:   step.Recipe.Type,
	}
	h.result.add(EventStep, 0, fmt.Sprintf("%d: %s", n, describeStep(step.Op, r)))

	if step.Op == OpRefresh {
		report, err := h.engine.Refresh(ctx, h.user)
		h.flushCalls()
		if err != nil {
			h.result.add(EventResult, 0, "error="+errorCode(err))
		} else {
			h.result.add(EventResult, 0, fmt.Sprintf("refreshed added=%d updated=%d removed=%d kept=%d skipped=%d",
				report.Added, report.Updated, report.Removed, report.Kept, report.Skipped))
		}
		h.checkExpect(n, step.Expect, "", "", 0, err)
		return
	}

	var res engine.Result
	var err error
	switch step.Op {
	case OpLike:
		res, err = h.engine.Like(ctx, r, h.user)
	case OpUnlike:
		res, err = h.engine.Unlike(ctx, r, h.user)
	default:
		res, err = h.engine.Toggle(ctx, r, h.user)
	}
	h.flushCalls()

	line := fmt.Sprintf("%s state=%s code=%d", res.Outcome, res.State, res.ServerCode)
	if err != nil {
		line += " error=" + errorCode(err)
	}
	h.result.add(EventResult, 0, line)
	h.checkExpect(n, step.Expect, string(res.Outcome), string(res.State), res.ServerCode, err)
}

func (h *Harness) checkExpect(n int, want *ExpectClause, outcome, state string, code int64, err error) {
	if want == nil {
		return
	}
	got := ""
	if err != nil {
		got = errorCode(err)
	}
	if got != want.Error {
		h.result.AddError(fmt.Sprintf("step %d: error: expected %q, got %q", n, want.Error, got))
	}
	if want.Outcome != "" && want.Outcome != outcome {
		h.result.AddError(fmt.Sprintf("step %d: outcome: expected %s, got %s", n, want.Outcome, outcome))
	}
	if want.State != "" && want.State != state {
		h.result.AddError(fmt.Sprintf("step %d: state: expected %s, got %s", n, want.State, state))
	}
	if want.Code != nil && *want.Code != code {
		h.result.AddError(fmt.Sprintf("step %d: code: expected %d, got %d", n, *want.Code, code))
	}
}

// flushCalls appends requests the API received since the last flush.
func (h *Harness) flushCalls() {
	calls := h.fake.Calls()
	for _, c := range calls[h.seen:] {
		h.result.add(EventCall, 0, c.String())
	}
	h.seen = len(calls)
}

func (h *Harness) observe(t engine.Transition) {
	h.flushCalls()
	h.result.add(EventTransition, t.Seq, fmt.Sprintf("%s %s", t.State, t.Key))
}

func (h *Harness) notify(err error) {
	h.flushCalls()
	h.result.Notified++
	h.result.add(EventNotify, 0, errorCode(err))
}

func (h *Harness) ask(context.Context, recipe.Ref) (bool, error) {
	h.flushCalls()
	answer := "no"
	if h.confirm {
		answer = "yes"
	}
	h.result.add(EventConfirm, 0, answer)
	return h.confirm, nil
}

// snapshot records the final store, the server's likes and every call.
func (h *Harness) snapshot(ctx context.Context) error {
	records, _, err := h.store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list final store: %w", err)
	}
	h.result.Store = records
	h.result.ServerLiked = h.fake.Liked()
	for _, c := range h.fake.Calls() {
		h.result.Calls = append(h.result.Calls, c.String())
	}
	return nil
}

func describeStep(op string, r recipe.Ref) string {
	if op == OpRefresh {
		return op
	}
	var b strings.Builder
	b.WriteString(op)
	b.WriteString(" ")
	b.WriteString(r.Name)
	if r.Time != "" {
		fmt.Fprintf(&b, " (%s)", r.Time)
	}
	fmt.Fprintf(&b, " code=%d", r.ServerCode)
	return b.String()
}

// errorCode names err the way traces and expect clauses do.
func errorCode(err error) string {
	var se *engine.SyncError
	switch {
	case errors.As(err, &se):
		return string(se.Code)
	case errors.Is(err, engine.ErrDeclined):
		return "DECLINED"
	case errors.Is(err, engine.ErrInFlight):
		return "IN_FLIGHT"
	case errors.Is(err, recipe.ErrInvalidRecipe):
		return "INVALID_RECIPE"
	default:
		return "ERROR"
	}
}
