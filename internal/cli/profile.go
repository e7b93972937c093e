package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recipesync/internal/capability"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/remote"
)

// ProfileView is the printable profile.
type ProfileView struct {
	ID          string   `json:"id"`
	Tools       MaskView `json:"tools"`
	Allergies   MaskView `json:"allergies"`
	Ingredients []string `json:"ingredients"`
}

func (v ProfileView) String() string {
	ingredients := capability.None
	if len(v.Ingredients) > 0 {
		ingredients = strings.Join(v.Ingredients, ", ")
	}
	return fmt.Sprintf("id: %s\ntools: %s\nallergies: %s\ningredients: %s",
		v.ID, v.Tools.Display, v.Allergies.Display, ingredients)
}

func newProfileView(u recipe.User, tools, allergies *capability.Set) ProfileView {
	ingredients := u.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return ProfileView{
		ID:          u.KeyID(),
		Tools:       newMaskView(u.ToolsMask, tools),
		Allergies:   newMaskView(u.BannedMask, allergies),
		Ingredients: ingredients,
	}
}

// ProfileOptions holds flags for profile update.
type ProfileOptions struct {
	*RootOptions
	Tools       []string
	Allergies   []string
	Ingredients []string
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the user's kitchen profile",
	}
	cmd.AddCommand(newProfileShowCommand(rootOpts))
	cmd.AddCommand(newProfileUpdateCommand(rootOpts))
	return cmd
}

type profileDeps struct {
	client    *remote.Client
	tools     *capability.Set
	allergies *capability.Set
}

func openProfile(rootOpts *RootOptions, cmd *cobra.Command) (*profileDeps, error) {
	cfg, _, err := loadConfig(rootOpts, cmd)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.LoadRegistry()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load capability registry", err)
	}
	tools, err := reg.Set(capability.Tools)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "registry has no tools domain", err)
	}
	allergies, err := reg.Set(capability.Allergies)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "registry has no allergies domain", err)
	}
	client, err := remote.NewClient(cfg.BaseURL, cfg.Tokens())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid base url", err)
	}
	return &profileDeps{client: client, tools: tools, allergies: allergies}, nil
}

func remoteExit(message string, err error) *ExitError {
	var se *remote.StatusError
	if errors.Is(err, remote.ErrNoToken) || (errors.As(err, &se) && se.Unauthorized()) {
		return WrapExitError(ExitUnauthenticated, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func newProfileShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the profile",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openProfile(rootOpts, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			u, err := deps.client.Me(ctx)
			if err != nil {
				return remoteExit("failed to fetch profile", err)
			}
			return rootOpts.formatter(cmd).Success(newProfileView(u, deps.tools, deps.allergies))
		},
	}
}

func newProfileUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace tools, allergies or fridge ingredients",
		Long: `Replace parts of the profile. Only the lists given are changed; bits the
registry does not know are preserved.

Example:
  recipesync profile update --tools 프라이팬,웍 --allergies 새우
  recipesync profile update --ingredients 양파,대파`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileUpdate(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Tools, "tools", nil, "tool labels")
	cmd.Flags().StringSliceVar(&opts.Allergies, "allergies", nil, "allergy labels")
	cmd.Flags().StringSliceVar(&opts.Ingredients, "ingredients", nil, "fridge ingredient names")
	return cmd
}

func runProfileUpdate(cmd *cobra.Command, opts *ProfileOptions) error {
	deps, err := openProfile(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	for _, check := range []struct {
		set    *capability.Set
		labels []string
	}{{deps.tools, opts.Tools}, {deps.allergies, opts.Allergies}} {
		for _, l := range check.labels {
			if _, ok := check.set.Bit(l); !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown %s label %q", check.set.Name, l))
			}
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	u, err := deps.client.Me(ctx)
	if err != nil {
		return remoteExit("failed to fetch profile", err)
	}

	flags := cmd.Flags()
	if flags.Changed("tools") {
		u.ToolsMask = capability.Merge(u.ToolsMask, opts.Tools, deps.tools)
	}
	if flags.Changed("allergies") {
		u.BannedMask = capability.Merge(u.BannedMask, opts.Allergies, deps.allergies)
	}
	if flags.Changed("ingredients") {
		u.Ingredients = opts.Ingredients
	}

	update := recipe.Update{
		ID:          u.ID,
		Tools:       u.ToolsMask,
		ToolsList:   nonNilLabels(capability.Decode(u.ToolsMask, deps.tools)),
		Banned:      u.BannedMask,
		BannedList:  nonNilLabels(capability.Decode(u.BannedMask, deps.allergies)),
		Ingredients: recipe.FridgeItems(u.Ingredients),
	}
	if err := deps.client.UpdateUser(ctx, update); err != nil {
		return remoteExit("failed to update profile", err)
	}
	return opts.formatter(cmd).Success(newProfileView(u, deps.tools, deps.allergies))
}

func nonNilLabels(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
