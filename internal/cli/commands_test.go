package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recipesync/internal/fakeapi"
	"github.com/roach88/recipesync/internal/recipe"
)

type cliEnv struct {
	fake   *fakeapi.Server
	config string
	stdin  string
}

func newCLIEnv(t *testing.T, token string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	fake := fakeapi.New(fakeapi.Options{
		Token:     "tok",
		User:      recipe.User{ID: "u1", ToolsMask: 3},
		FirstCode: 7,
	})
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := fmt.Sprintf(`base_url: %s
timeout: 5s
store:
  driver: sqlite
  dsn: %s
token:
  source: static
  value: %q
log:
  level: error
`, srv.URL, filepath.Join(dir, "favorites.db"), token)
	path := filepath.Join(dir, "recipesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	return &cliEnv{fake: fake, config: path}
}

func (e *cliEnv) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(e.stdin))
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestToggleCommand_LikeStatusListUnlike(t *testing.T) {
	env := newCLIEnv(t, "tok")

	out, err := env.run("--format", "json", "toggle", "김치볶음밥", "--time", "30분")
	require.NoError(t, err)
	var res ResultView
	decodeData(t, out, &res)
	assert.Equal(t, "liked", string(res.Outcome))
	assert.Equal(t, int64(7), res.ServerCode)
	assert.Equal(t, "liked:u1:0:김치볶음밥:30분", res.Key)
	assert.Equal(t, []int64{7}, env.fake.Liked())

	out, err = env.run("status", "김치볶음밥", "--time", "30분")
	require.NoError(t, err)
	assert.Equal(t, "김치볶음밥: liked (code 7)\n", out)

	out, err = env.run("list")
	require.NoError(t, err)
	assert.Equal(t, "김치볶음밥 (30분) #7\n", out)

	out, err = env.run("toggle", "김치볶음밥", "--time", "30분", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "김치볶음밥: unliked (code 7)\n", out)
	assert.Empty(t, env.fake.Liked())

	out, err = env.run("list")
	require.NoError(t, err)
	assert.Equal(t, "no favorites\n", out)
}

func TestUnlikeCommand_Declined(t *testing.T) {
	env := newCLIEnv(t, "tok")

	_, err := env.run("like", "된장찌개", "--time", "20분")
	require.NoError(t, err)

	env.stdin = "n\n"
	out, err := env.run("unlike", "된장찌개", "--time", "20분")
	require.NoError(t, err)
	assert.Equal(t, "된장찌개: kept (code 7)\n", out)
	assert.Equal(t, []int64{7}, env.fake.Liked())
}

func TestToggleCommand_NoToken(t *testing.T) {
	env := newCLIEnv(t, "")

	out, err := env.run("toggle", "잡채")
	require.Error(t, err)
	assert.Equal(t, ExitUnauthenticated, GetExitCode(err))
	assert.Contains(t, out, "Error [UNAUTHENTICATED]")
	assert.Zero(t, env.fake.CallCount(fakeapi.Route(http.MethodPost, "/recipes/like")))
}

func TestToggleCommand_ServerFailure(t *testing.T) {
	env := newCLIEnv(t, "tok")
	env.fake.FailNext(fakeapi.Route(http.MethodPost, "/recipes/like"), fakeapi.Failure{Status: http.StatusInternalServerError, Body: "boom"})

	out, err := env.run("toggle", "잡채")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [SERVER_REJECTION]")

	out, err = env.run("status", "잡채")
	require.NoError(t, err)
	assert.Equal(t, "잡채: unliked\n", out)
}

func TestToggleCommand_ProfileFailureKeepsIdentity(t *testing.T) {
	env := newCLIEnv(t, "tok")

	_, err := env.run("like", "된장찌개", "--time", "20분")
	require.NoError(t, err)

	env.fake.FailNext(fakeapi.Route(http.MethodGet, "/api/me"), fakeapi.Failure{Status: http.StatusBadGateway, Body: "upstream"})
	out, err := env.run("toggle", "된장찌개", "--time", "20분", "--yes")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [PROFILE_UNAVAILABLE]")

	// Nothing was sent under a guessed identity.
	assert.Equal(t, 1, env.fake.CallCount(fakeapi.Route(http.MethodPost, "/recipes/like")))
	assert.Zero(t, env.fake.CallCount(fakeapi.Route(http.MethodDelete, "/recipes/like")))
	assert.Equal(t, []int64{7}, env.fake.Liked())

	out, err = env.run("status", "된장찌개", "--time", "20분")
	require.NoError(t, err)
	assert.Equal(t, "된장찌개: liked (code 7)\n", out)
}

func TestLikeCommand_HelpExampleType(t *testing.T) {
	env := newCLIEnv(t, "tok")

	cmd := NewLikeCommand(&RootOptions{})
	_, typ, ok := strings.Cut(cmd.Long, "--type ")
	require.True(t, ok, "like help shows --type")
	typ = strings.Fields(typ)[0]

	out, err := env.run("like", "된장찌개", "--time", "20분", "--type", typ)
	require.NoError(t, err)
	assert.Equal(t, "된장찌개: liked (code 7)\n", out)
}

func TestRefreshCommand(t *testing.T) {
	env := newCLIEnv(t, "tok")
	env.fake.Seed(recipe.Ref{ServerCode: 21, Name: "나물", Time: "10분"})

	out, err := env.run("refresh")
	require.NoError(t, err)
	assert.Equal(t, "added 1, updated 0, removed 0, kept 0, skipped 0\n", out)

	out, err = env.run("list", "--order", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "나물 (10분) #21\n", out)
}

func TestListCommand_InvalidOrder(t *testing.T) {
	env := newCLIEnv(t, "tok")
	_, err := env.run("list", "--order", "random")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCapsCommands(t *testing.T) {
	env := newCLIEnv(t, "tok")

	out, err := env.run("caps", "encode", "tools", "프라이팬", "웍")
	require.NoError(t, err)
	assert.Equal(t, "5\t프라이팬, 웍\n", out)

	out, err = env.run("caps", "decode", "tools", "0")
	require.NoError(t, err)
	assert.Equal(t, "0\t없음\n", out)

	out, err = env.run("caps", "toggle", "tools", "5", "냄비")
	require.NoError(t, err)
	assert.Equal(t, "7\t프라이팬, 냄비, 웍\n", out)

	out, err = env.run("--format", "json", "caps", "decode", "tools", "1048581")
	require.NoError(t, err)
	var mask MaskView
	decodeData(t, out, &mask)
	assert.Equal(t, []string{"프라이팬", "웍"}, mask.Labels)
	assert.Equal(t, int64(1<<20), mask.Unknown)

	_, err = env.run("caps", "encode", "tools", "--strict", "숟가락")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.run("caps", "decode", "colors", "1")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.run("caps", "decode", "tools", "--", "-4")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProfileCommands(t *testing.T) {
	env := newCLIEnv(t, "tok")

	out, err := env.run("profile", "show")
	require.NoError(t, err)
	assert.Equal(t, "id: u1\ntools: 프라이팬, 냄비\nallergies: 없음\ningredients: 없음\n", out)

	out, err = env.run("profile", "update", "--tools", "웍", "--ingredients", "양파,대파")
	require.NoError(t, err)
	assert.Equal(t, "id: u1\ntools: 웍\nallergies: 없음\ningredients: 양파, 대파\n", out)
	assert.Equal(t, int64(4), env.fake.User().ToolsMask)
}
