package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recipesync/internal/engine"
	"github.com/roach88/recipesync/internal/identity"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/store"
	"github.com/roach88/recipesync/internal/testutil"
)

func TestRefresh_Reconciles(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	u := recipe.User{ID: "u1"}

	jjigae := recipe.Ref{ServerCode: 15, Name: "된장찌개", Time: "20분"}
	japchae := recipe.Ref{ServerCode: 9, Name: "잡채", Time: "40분"}
	pending := recipe.Ref{Name: "나물", Time: "10분"}

	f.likes.Seed(jjigae)
	f.likes.Seed(recipe.Ref{ServerCode: 21, Name: "김치볶음밥", Time: "30분"})

	// Liked locally with code 0, the server now knows it as 21.
	require.NoError(t, f.store.Put(ctx, store.Record{Key: identity.DeriveKey("u1", kimchi), State: store.Liked}))
	// Unliked elsewhere.
	require.NoError(t, f.store.Put(ctx, store.Record{Key: identity.DeriveKey("u1", japchae), ServerCode: 9, State: store.Liked}))
	// Never got a code; the server cannot list it.
	require.NoError(t, f.store.Put(ctx, store.Record{Key: identity.DeriveKey("u1", pending), State: store.Liked}))
	// Left behind by a crash.
	require.NoError(t, f.store.Put(ctx, store.Record{Key: "liked:u1:0:x:y", State: store.LikePending}))

	report, err := f.eng.Refresh(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, engine.RefreshReport{Added: 1, Updated: 1, Removed: 2}, report)

	keys := f.keys(t, identity.UserPrefix("u1"))
	assert.ElementsMatch(t, []string{
		identity.DeriveKey("u1", kimchi),
		identity.DeriveKey("u1", jjigae),
		identity.DeriveKey("u1", pending),
	}, keys)

	rec, ok, err := f.eng.Record(ctx, kimchi, u)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(21), rec.ServerCode)

	// A second refresh changes nothing.
	report, err = f.eng.Refresh(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, engine.RefreshReport{Kept: 2}, report)
}

// racingLikes answers Liked with the list as it stood before running
// during, so changes made by during are missing from the answer.
type racingLikes struct {
	*testutil.FakeLikes
	during func()
}

func (r *racingLikes) Liked(ctx context.Context) ([]recipe.Ref, error) {
	refs, err := r.FakeLikes.Liked(ctx)
	if r.during != nil {
		r.during()
	}
	return refs, err
}

func newRacingEngine(t *testing.T, firstCode int64) (*engine.Engine, *racingLikes, *store.FavoriteStore) {
	t.Helper()
	s := store.New(store.NewMemory(),
		store.WithClock(testutil.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Minute).Now))
	t.Cleanup(func() { s.Close() })

	likes := &racingLikes{FakeLikes: testutil.NewFakeLikes(firstCode)}
	eng := engine.New(s, likes, engine.WithIDGenerator(engine.NewSequenceGenerator("op")))
	return eng, likes, s
}

func TestRefresh_KeepsLikeMadeDuringFetch(t *testing.T) {
	eng, likes, _ := newRacingEngine(t, 9)
	ctx := context.Background()
	u := recipe.User{ID: "u1"}

	likes.during = func() {
		res, err := eng.Toggle(ctx, kimchi, u)
		require.NoError(t, err)
		require.Equal(t, int64(9), res.ServerCode)
	}
	report, err := eng.Refresh(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, engine.RefreshReport{Skipped: 1}, report)

	rec, ok, err := eng.Record(ctx, kimchi, u)
	require.NoError(t, err)
	require.True(t, ok, "like made while the list was in transit must survive")
	assert.Equal(t, int64(9), rec.ServerCode)

	// The next toggle unlikes instead of liking again.
	likes.during = nil
	res, err := eng.Toggle(ctx, kimchi, u)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeUnliked, res.Outcome)
	assert.Equal(t, []string{"liked", "like 김치볶음밥", "unlike 9"}, likes.Calls())

	// With nothing racing, a later refresh agrees with the server.
	report, err = eng.Refresh(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, engine.RefreshReport{}, report)
}

func TestRefresh_DoesNotRestoreUnlikeMadeDuringFetch(t *testing.T) {
	eng, likes, s := newRacingEngine(t, 100)
	ctx := context.Background()
	u := recipe.User{ID: "u1"}

	jjigae := recipe.Ref{ServerCode: 15, Name: "된장찌개", Time: "20분"}
	likes.Seed(jjigae)
	require.NoError(t, s.Put(ctx, store.Record{Key: identity.DeriveKey("u1", jjigae), ServerCode: 15, State: store.Liked}))

	likes.during = func() {
		res, err := eng.Toggle(ctx, jjigae, u)
		require.NoError(t, err)
		require.Equal(t, engine.OutcomeUnliked, res.Outcome)
	}
	report, err := eng.Refresh(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, engine.RefreshReport{Skipped: 1}, report)

	_, ok, err := eng.Record(ctx, jjigae, u)
	require.NoError(t, err)
	assert.False(t, ok, "unlike made while the list was in transit must stick")
	assert.False(t, likes.IsLiked(15))
}

func TestRefresh_Failure(t *testing.T) {
	f := newFixture(t, 100)
	f.likes.FailNext("liked", errors.New("dial tcp: connection refused"))

	_, err := f.eng.Refresh(context.Background(), guest)
	assert.True(t, engine.IsNetworkFailure(err))
	assert.Len(t, f.rec.Notified(), 1)
}

func TestFavorites_Order(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	u := recipe.User{ID: "u1"}

	for _, r := range []recipe.Ref{
		{Name: "잡채", Time: "40분"},
		{Name: "가지볶음", Time: "15분"},
		{Name: "나물", Time: ""},
	} {
		_, err := f.eng.Toggle(ctx, r, u)
		require.NoError(t, err)
	}

	names := func(favs []engine.Favorite) []string {
		out := make([]string, len(favs))
		for i, fav := range favs {
			out[i] = fav.Recipe.Name
		}
		return out
	}

	favs, err := f.eng.Favorites(ctx, u, recipe.OrderAlpha)
	require.NoError(t, err)
	assert.Equal(t, []string{"가지볶음", "나물", "잡채"}, names(favs))

	favs, err = f.eng.Favorites(ctx, u, recipe.OrderTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"가지볶음", "잡채", "나물"}, names(favs))

	favs, err = f.eng.Favorites(ctx, u, recipe.OrderLatest)
	require.NoError(t, err)
	assert.Equal(t, []string{"나물", "가지볶음", "잡채"}, names(favs))
	assert.Equal(t, int64(102), favs[0].Recipe.ServerCode)
}
