package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/roach88/recipesync/internal/recipe"
)

const likePath = "/recipes/like"

// Code is the integer the like endpoint answers with. Some deployments
// quote it; both forms decode.
type Code int64

func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("like response %q is not an integer", data)
	}
	*c = Code(n)
	return nil
}

// Like sends POST /recipes/like and returns the server's answer. Values of 1
// or less mean no new code was assigned.
func (c *Client) Like(ctx context.Context, body recipe.LikeBody) (int64, error) {
	code, err := makeJSON[Code](ctx, c, params{
		Method: http.MethodPost,
		Path:   likePath,
		Body:   body,
	})
	if err != nil {
		return 0, err
	}
	return int64(code), nil
}

// Unlike sends DELETE /recipes/like?recipeCode=<code>.
func (c *Client) Unlike(ctx context.Context, code int64) error {
	_, err := c.do(ctx, params{
		Method: http.MethodDelete,
		Path:   likePath,
		Query:  url.Values{"recipeCode": {strconv.FormatInt(code, 10)}},
	})
	return err
}

// Liked fetches the user's saved recipes with GET /recipes/like. Entries
// without a name are dropped.
func (c *Client) Liked(ctx context.Context) ([]recipe.Ref, error) {
	data, err := c.do(ctx, params{Method: http.MethodGet, Path: likePath})
	if err != nil {
		return nil, err
	}
	refs, _, err := recipe.ListFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", likePath, err)
	}
	return refs, nil
}
