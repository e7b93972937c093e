package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/recipesync/internal/identity"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/store"
)

// RefreshReport counts what Refresh changed.
type RefreshReport struct {
	Added   int
	Updated int
	Removed int
	Kept    int
	// Skipped counts favorites left alone because a toggle was in flight.
	Skipped int
}

// Refresh reconciles the local favorites of u with the server's saved list.
//
// Server favorites missing locally are added, local favorites carrying a
// code the server no longer lists are removed, and leftover pending records
// are dropped. Favorites that never received a code are kept: the server
// cannot list them. Keys with a toggle in flight, or toggled since the
// server list was read, are skipped; the list no longer describes them.
func (e *Engine) Refresh(ctx context.Context, u recipe.User) (RefreshReport, error) {
	var report RefreshReport
	id := e.ids.Generate()
	log := e.logger.With("op", id, "user", u.KeyID())

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Transitions after this point postdate the server list.
	since := e.clock.Current()

	refs, err := e.likes.Liked(ctx)
	if err != nil {
		serr := classify(identity.UserPrefix(u.KeyID()), "refresh", err)
		log.Error("refresh failed", "code", serr.Code, "error", err)
		e.notify.Notify(serr)
		return report, serr
	}

	onServer := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		if !ref.HasCode() {
			continue
		}
		onServer[ref.ServerCode] = true

		changed, err := e.adopt(ctx, u, ref, since)
		switch {
		case errors.Is(err, ErrInFlight):
			report.Skipped++
		case err != nil:
			return report, err
		case changed == adoptAdded:
			report.Added++
		case changed == adoptUpdated:
			report.Updated++
		default:
			report.Kept++
		}
	}

	local, skipped, err := e.store.List(ctx, identity.UserPrefix(u.KeyID()))
	if err != nil {
		return report, fmt.Errorf("refresh: list local favorites: %w", err)
	}
	if skipped > 0 {
		log.Warn("unreadable favorite records", "count", skipped)
	}

	for _, rec := range local {
		if !dropOnRefresh(rec, onServer) {
			continue
		}
		removed, err := e.drop(ctx, rec.Key, onServer, since)
		switch {
		case errors.Is(err, ErrInFlight):
			report.Skipped++
		case err != nil:
			return report, err
		case removed:
			report.Removed++
		}
	}

	log.Info("favorites refreshed",
		"server", len(refs),
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed,
		"skipped", report.Skipped)
	return report, nil
}

// dropOnRefresh reports whether rec is a leftover pending record or a coded
// favorite the server no longer lists.
func dropOnRefresh(rec store.Record, onServer map[int64]bool) bool {
	if rec.State != store.Liked {
		return true
	}
	return rec.HasCode() && !onServer[rec.ServerCode]
}

// claimUnchanged claims keys for a refresh step. It fails with ErrInFlight
// when a toggle holds them or has touched them since seq.
func (e *Engine) claimUnchanged(keys []string, seq int64) (func(), error) {
	_, release, ok := e.guard.acquire(keys)
	if !ok {
		return nil, ErrInFlight
	}
	if e.guard.touchedSince(keys, seq) {
		release()
		return nil, ErrInFlight
	}
	return release, nil
}

// drop removes key if, re-read under the claim, it still qualifies.
func (e *Engine) drop(ctx context.Context, key string, onServer map[int64]bool, since int64) (bool, error) {
	release, err := e.claimUnchanged([]string{key}, since)
	if err != nil {
		return false, err
	}
	defer release()

	rec, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("refresh: %w", err)
	}
	if !ok || !dropOnRefresh(rec, onServer) {
		return false, nil
	}
	if err := e.store.Remove(ctx, key); err != nil {
		return false, fmt.Errorf("refresh: remove %q: %w", key, err)
	}
	return true, nil
}

type adoptResult int

const (
	adoptKept adoptResult = iota
	adoptAdded
	adoptUpdated
)

// adopt makes sure a server favorite has a Liked record locally.
func (e *Engine) adopt(ctx context.Context, u recipe.User, ref recipe.Ref, since int64) (adoptResult, error) {
	keys := identity.DeriveCandidateKeys(u.KeyID(), ref)
	release, err := e.claimUnchanged(keys, since)
	if err != nil {
		return adoptKept, err
	}
	defer release()

	records, err := e.store.Lookup(ctx, keys)
	if err != nil {
		return adoptKept, fmt.Errorf("refresh: %w", err)
	}
	if rec, ok := firstLiked(records); ok {
		if rec.ServerCode == ref.ServerCode {
			return adoptKept, nil
		}
		rec.ServerCode = ref.ServerCode
		if err := e.store.Put(ctx, rec); err != nil {
			return adoptKept, fmt.Errorf("refresh: %w", err)
		}
		return adoptUpdated, nil
	}

	rec := store.Record{Key: identity.DeriveKey(u.KeyID(), ref), ServerCode: ref.ServerCode, State: store.Liked}
	if err := e.store.Put(ctx, rec); err != nil {
		return adoptKept, fmt.Errorf("refresh: %w", err)
	}
	return adoptAdded, nil
}

// Favorite is one locally liked recipe, rebuilt from its key.
type Favorite struct {
	Record store.Record
	Recipe recipe.Ref
}

// Favorites lists the Liked favorites of u in the given order. OrderLatest
// means most recently changed first.
func (e *Engine) Favorites(ctx context.Context, u recipe.User, order recipe.Order) ([]Favorite, error) {
	records, skipped, err := e.store.List(ctx, identity.UserPrefix(u.KeyID()))
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	if skipped > 0 {
		e.logger.Warn("unreadable favorite records", "count", skipped)
	}

	out := make([]Favorite, 0, len(records))
	for _, rec := range records {
		if rec.State != store.Liked {
			continue
		}
		parts, err := identity.Parse(rec.Key)
		if err != nil {
			e.logger.Warn("skipping malformed favorite key", "key", rec.Key, "error", err)
			continue
		}
		r := parts.Recipe()
		if rec.HasCode() {
			r.ServerCode = rec.ServerCode
		}
		out = append(out, Favorite{Record: rec, Recipe: r})
	}

	if order == recipe.OrderLatest || order == "" {
		slices.SortStableFunc(out, func(a, b Favorite) int {
			return b.Record.UpdatedAt.Compare(a.Record.UpdatedAt)
		})
		return out, nil
	}
	return recipe.SortBy(out, order, func(f Favorite) recipe.Ref { return f.Recipe }), nil
}
