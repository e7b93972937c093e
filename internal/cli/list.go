package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/recipesync/internal/engine"
	"github.com/roach88/recipesync/internal/recipe"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Order  string
	Remote bool
}

// FavoriteView is one row of the list command.
type FavoriteView struct {
	Name       string    `json:"name"`
	Time       string    `json:"time,omitempty"`
	ServerCode int64     `json:"server_code,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// FavoriteList renders one favorite per line.
type FavoriteList []FavoriteView

func (l FavoriteList) String() string {
	if len(l) == 0 {
		return "no favorites"
	}
	var b strings.Builder
	for i, f := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Name)
		if f.Time != "" {
			fmt.Fprintf(&b, " (%s)", f.Time)
		}
		if f.ServerCode > 0 {
			fmt.Fprintf(&b, " #%d", f.ServerCode)
		}
	}
	return b.String()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List favorite recipes",
		Long: `List favorite recipes from the local store, or from the server with --remote.

Orders:
  latest  most recently changed first (server order with --remote)
  alpha   by name
  time    by cooking time, recipes without one last`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Order, "order", string(recipe.OrderLatest), "sort order (latest|alpha|time)")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "list the server's saved recipes instead")
	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	order, err := recipe.ParseOrder(opts.Order)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid order", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	list := FavoriteList{}
	if opts.Remote {
		refs, err := a.client.Liked(ctx)
		if err != nil {
			_ = a.out.Error("REMOTE", err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to fetch saved recipes", err)
		}
		for _, r := range recipe.Sort(refs, order) {
			list = append(list, FavoriteView{Name: r.Name, Time: r.Time, ServerCode: r.ServerCode})
		}
		return a.out.Success(list)
	}

	u, err := a.user(ctx)
	if err != nil {
		return err
	}
	favs, err := a.engine.Favorites(ctx, u, order)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list favorites", err)
	}
	for _, f := range favs {
		list = append(list, FavoriteView{
			Name:       f.Recipe.Name,
			Time:       f.Recipe.Time,
			ServerCode: f.Recipe.ServerCode,
			UpdatedAt:  f.Record.UpdatedAt,
		})
	}
	return a.out.Success(list)
}

// RefreshView is the printable result of the refresh command.
type RefreshView engine.RefreshReport

func (v RefreshView) String() string {
	return fmt.Sprintf("added %d, updated %d, removed %d, kept %d, skipped %d",
		v.Added, v.Updated, v.Removed, v.Kept, v.Skipped)
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile local favorites with the server",
		Long: `Fetch the server's saved recipes and reconcile the local store with them.
Favorites liked locally that never received a code are kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.user(ctx)
			if err != nil {
				return err
			}
			report, err := a.engine.Refresh(ctx, u)
			if err != nil {
				_ = a.out.SyncFailure(err)
				return syncExit("refresh failed", err)
			}
			return a.out.Success(RefreshView(report))
		},
	}
}
