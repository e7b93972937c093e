package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/roach88/recipesync/internal/recipe"
)

// Me fetches the current user with GET /api/me.
func (c *Client) Me(ctx context.Context) (recipe.User, error) {
	data, err := c.do(ctx, params{Method: http.MethodGet, Path: "/api/me"})
	if err != nil {
		return recipe.User{}, err
	}
	return recipe.UserFromJSON(data)
}

// UpdateUser sends PUT /api/update. The server answers 1 on success.
func (c *Client) UpdateUser(ctx context.Context, u recipe.Update) error {
	result, err := makeJSON[Code](ctx, c, params{
		Method: http.MethodPut,
		Path:   "/api/update",
		Body:   u,
	})
	if err != nil {
		return err
	}
	if result != 1 {
		return fmt.Errorf("PUT /api/update: %w (server answered %d)", ErrUpdateRejected, result)
	}
	return nil
}
