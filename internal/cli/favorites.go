package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recipesync/internal/capability"
	"github.com/roach88/recipesync/internal/engine"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/store"
)

// RecipeOptions identifies the recipe a favorite command acts on.
type RecipeOptions struct {
	*RootOptions
	Time   string
	Code   int64
	Type   string
	Author string
	Yes    bool
}

func addRecipeFlags(cmd *cobra.Command, opts *RecipeOptions) {
	cmd.Flags().StringVar(&opts.Time, "time", "", `cooking time, e.g. "30분"`)
	cmd.Flags().Int64Var(&opts.Code, "code", 0, "server code, 0 if not yet assigned")
	cmd.Flags().StringVar(&opts.Type, "type", "", "food type label")
	cmd.Flags().StringVar(&opts.Author, "author", "", "recipe author")
}

// ref builds the recipe from the positional name and the flags.
func (o *RecipeOptions) ref(name string, reg *capability.Registry) (recipe.Ref, error) {
	r := recipe.Ref{ServerCode: o.Code, Name: name, Time: o.Time, Author: o.Author}
	if o.Type != "" {
		set, err := reg.Set(capability.FoodType)
		if err != nil {
			return r, err
		}
		code, ok := set.Bit(o.Type)
		if !ok {
			return r, fmt.Errorf("unknown food type %q: must be one of %v", o.Type, set.Names())
		}
		r.TypeCode = code
	}
	return r, r.Validate()
}

// ResultView is the printable result of a favorite command.
type ResultView struct {
	Recipe     string         `json:"recipe"`
	Key        string         `json:"key"`
	State      store.State    `json:"state"`
	ServerCode int64          `json:"server_code"`
	Outcome    engine.Outcome `json:"outcome"`
}

func (v ResultView) String() string {
	if v.ServerCode > 0 {
		return fmt.Sprintf("%s: %s (code %d)", v.Recipe, v.Outcome, v.ServerCode)
	}
	return fmt.Sprintf("%s: %s", v.Recipe, v.Outcome)
}

type favoriteAction func(e *engine.Engine, ctx context.Context, r recipe.Ref, u recipe.User) (engine.Result, error)

func newFavoriteCommand(rootOpts *RootOptions, use, short, long string, confirmable bool, action favoriteAction) *cobra.Command {
	opts := &RecipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use + " <name>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFavorite(cmd, opts, args[0], confirmable, action)
		},
	}
	addRecipeFlags(cmd, opts)
	if confirmable {
		cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "unlike without asking")
	}
	return cmd
}

func runFavorite(cmd *cobra.Command, opts *RecipeOptions, name string, confirmable bool, action favoriteAction) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var confirm engine.Confirmer
	if confirmable {
		confirm = confirmerFor(opts.Yes, cmd)
	}
	a, err := newApp(ctx, opts.RootOptions, cmd, confirm)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := opts.ref(name, a.registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid recipe", err)
	}
	u, err := a.user(ctx)
	if err != nil {
		return err
	}

	res, err := action(a.engine, ctx, r, u)
	if errors.Is(err, engine.ErrDeclined) {
		a.logger.Debug("unlike declined", "error", err)
		err = nil
	}
	if err != nil {
		_ = a.out.SyncFailure(err)
		return syncExit(fmt.Sprintf("%s %q failed", cmd.Name(), name), err)
	}
	return a.out.Success(ResultView{
		Recipe:     r.Name,
		Key:        res.Key,
		State:      res.State,
		ServerCode: res.ServerCode,
		Outcome:    res.Outcome,
	})
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return newFavoriteCommand(rootOpts, "toggle", "Like or unlike a recipe",
		`Flip the favorite state of a recipe. The change is applied locally at once
and rolled back if the server does not accept it.

Example:
  recipesync toggle 김치볶음밥 --time 30분
  recipesync toggle 김치볶음밥 --time 30분 --code 7 --yes`,
		true, (*engine.Engine).Toggle)
}

// NewLikeCommand creates the like command.
func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	return newFavoriteCommand(rootOpts, "like", "Like a recipe unless it is already liked",
		`Like a recipe. A recipe that is already liked is left alone.

Example:
  recipesync like 된장찌개 --time 20분 --type 식사`,
		false, (*engine.Engine).Like)
}

// NewUnlikeCommand creates the unlike command.
func NewUnlikeCommand(rootOpts *RootOptions) *cobra.Command {
	return newFavoriteCommand(rootOpts, "unlike", "Unlike a recipe if it is liked",
		`Unlike a recipe. A recipe that is not liked is left alone.

Example:
  recipesync unlike 된장찌개 --time 20분 --yes`,
		true, (*engine.Engine).Unlike)
}

// StatusView is the printable state of one favorite.
type StatusView struct {
	Recipe     string      `json:"recipe"`
	State      store.State `json:"state"`
	ServerCode int64       `json:"server_code,omitempty"`
}

func (v StatusView) String() string {
	if v.ServerCode > 0 {
		return fmt.Sprintf("%s: %s (code %d)", v.Recipe, v.State, v.ServerCode)
	}
	return fmt.Sprintf("%s: %s", v.Recipe, v.State)
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecipeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "status <name>",
		Short:         "Show whether a recipe is liked locally",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, opts.RootOptions, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := opts.ref(args[0], a.registry)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid recipe", err)
			}
			u, err := a.user(ctx)
			if err != nil {
				return err
			}
			rec, ok, err := a.engine.Record(ctx, r, u)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read store", err)
			}
			view := StatusView{Recipe: r.Name, State: store.Unliked}
			if ok {
				view.State = rec.State
				view.ServerCode = rec.ServerCode
			}
			return a.out.Success(view)
		},
	}
	addRecipeFlags(cmd, opts)
	return cmd
}
