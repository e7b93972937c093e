package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recipesync/internal/fakeapi"
	"github.com/roach88/recipesync/internal/recipe"
)

type fixedIDs string

func (f fixedIDs) Generate() string { return string(f) }

func newTestClient(t *testing.T, fake *fakeapi.Server, tok TokenProvider) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", tok, WithIDGenerator(fixedIDs("req-1")))
	require.NoError(t, err)
	return c
}

func TestClient_LikeAssignsCode(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{FirstCode: 7})
	c := newTestClient(t, fake, StaticToken("tok"))
	ctx := context.Background()

	code, err := c.Like(ctx, recipe.NewLikeBody(recipe.Ref{Name: "김치볶음밥", Time: "30분"}, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(7), code)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "req-1", calls[0].RequestID)
	assert.Contains(t, calls[0].Body, `"name":"김치볶음밥"`)
}

func TestClient_RequestIDFromContext(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{})
	c := newTestClient(t, fake, StaticToken("tok"))

	ctx := WithRequestID(context.Background(), "op-42")
	_, err := c.Liked(ctx)
	require.NoError(t, err)
	assert.Equal(t, "op-42", fake.Calls()[0].RequestID)
}

func TestClient_UnlikeAndList(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{})
	fake.Seed(recipe.Ref{ServerCode: 15, Name: "된장찌개", Time: "20분"})
	c := newTestClient(t, fake, StaticToken("tok"))
	ctx := context.Background()

	refs, err := c.Liked(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(15), refs[0].ServerCode)

	require.NoError(t, c.Unlike(ctx, 15))
	assert.Equal(t, "DELETE /recipes/like?recipeCode=15", fake.Calls()[1].String())

	refs, err = c.Liked(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestClient_NoToken(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{})
	c := newTestClient(t, fake, StaticToken(""))

	_, err := c.Like(context.Background(), recipe.NewLikeBody(recipe.Ref{Name: "x"}, 0))
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, fake.Calls(), "no request without a token")
}

func TestClient_StatusError(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{})
	fake.FailNext(fakeapi.Route(http.MethodPost, "/recipes/like"), fakeapi.Failure{Status: http.StatusInternalServerError, Body: "boom"})
	c := newTestClient(t, fake, StaticToken("tok"))

	_, err := c.Like(context.Background(), recipe.NewLikeBody(recipe.Ref{Name: "x"}, 0))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, string(se.Body), "boom")
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.False(t, se.Unauthorized())
}

func TestClient_WrongToken(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{Token: "right"})
	c := newTestClient(t, fake, StaticToken("Bearer wrong"))

	err := c.Unlike(context.Background(), 3)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Unauthorized())
}

func TestClient_Timeout(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{})
	fake.FailNext(fakeapi.Route(http.MethodPost, "/recipes/like"), fakeapi.Failure{Status: http.StatusOK, Delay: time.Second})
	c := newTestClient(t, fake, StaticToken("tok"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Like(ctx, recipe.NewLikeBody(recipe.Ref{Name: "x"}, 0))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_MeAndUpdate(t *testing.T) {
	fake := fakeapi.New(fakeapi.Options{User: recipe.User{ID: "u1", ToolsMask: 3}})
	c := newTestClient(t, fake, StaticToken("tok"))
	ctx := context.Background()

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int64(3), u.ToolsMask)

	require.NoError(t, c.UpdateUser(ctx, recipe.Update{Tools: 5, Banned: 2, Ingredients: recipe.FridgeItems([]string{"양파"})}))
	u, err = c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.ToolsMask)
	assert.Equal(t, []string{"양파"}, u.Ingredients)

	err = c.UpdateUser(ctx, recipe.Update{Tools: -1})
	assert.ErrorIs(t, err, ErrUpdateRejected)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestCode_Unmarshal(t *testing.T) {
	var c Code
	require.NoError(t, c.UnmarshalJSON([]byte(`42`)))
	assert.Equal(t, Code(42), c)
	require.NoError(t, c.UnmarshalJSON([]byte(`"7"`)))
	assert.Equal(t, Code(7), c)
	require.NoError(t, c.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, Code(0), c)
	assert.Error(t, c.UnmarshalJSON([]byte(`"x"`)))
}

func TestAuthorization(t *testing.T) {
	tests := map[string]string{
		"abc":        "Bearer abc",
		"Bearer abc": "Bearer abc",
		"bearer abc": "Bearer abc",
		"  abc  ":    "Bearer abc",
		"":           "",
		"Bearer ":    "",
		"Bearerabc":  "Bearer Bearerabc",
	}
	for in, want := range tests {
		assert.Equal(t, want, Authorization(in), in)
	}
}

func TestTokenProviders(t *testing.T) {
	ctx := context.Background()

	t.Setenv("RECIPESYNC_TEST_TOKEN", "from-env")
	tok, err := EnvToken("RECIPESYNC_TEST_TOKEN").Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	path := filepath.Join(t.TempDir(), "token")
	tok, err = FileToken(path).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	tok, err = FileToken(path).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-file", tok)

	tok, err = TokenFunc(func(context.Context) (string, error) { return "fn", nil }).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fn", tok)
}
