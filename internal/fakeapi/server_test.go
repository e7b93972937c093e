package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recipesync/internal/recipe"
)

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestServer_AssignsStableCodes(t *testing.T) {
	fake := New(Options{FirstCode: 7})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	body := `{"code":0,"name":"김치볶음밥","time":"30분"}`
	res := do(t, srv, http.MethodPost, "/recipes/like", body)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = do(t, srv, http.MethodPost, "/recipes/like", body)
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, []int64{7}, fake.Liked())
	assert.Equal(t, 2, fake.CallCount(Route(http.MethodPost, "/recipes/like")))
}

func TestServer_Unlike(t *testing.T) {
	fake := New(Options{})
	code := fake.Seed(recipe.Ref{Name: "잡채"})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	res := do(t, srv, http.MethodDelete, "/recipes/like?recipeCode=100", "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, int64(100), code)
	assert.Empty(t, fake.Liked())

	res = do(t, srv, http.MethodDelete, "/recipes/like?recipeCode=0", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "DELETE /recipes/like?recipeCode=100", calls[0].String())
}

func TestServer_RequiresToken(t *testing.T) {
	fake := New(Options{Token: "secret"})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	res := do(t, srv, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestServer_FailNext(t *testing.T) {
	fake := New(Options{})
	srv := httptest.NewServer(fake)
	defer srv.Close()

	fake.FailNext(Route(http.MethodGet, "/recipes/like"), Failure{Status: http.StatusServiceUnavailable, Body: "down"})

	res := do(t, srv, http.MethodGet, "/recipes/like", "")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res = do(t, srv, http.MethodGet, "/recipes/like", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
