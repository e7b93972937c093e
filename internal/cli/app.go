package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recipesync/internal/capability"
	"github.com/roach88/recipesync/internal/config"
	"github.com/roach88/recipesync/internal/engine"
	"github.com/roach88/recipesync/internal/recipe"
	"github.com/roach88/recipesync/internal/remote"
	"github.com/roach88/recipesync/internal/store"
)

// app is everything a favorite command needs, built from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *remote.Client
	store    *store.FavoriteStore
	engine   *engine.Engine
	registry *capability.Registry
	out      *OutputFormatter
}

// loadConfig reads the config file and environment and builds the logger.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	level, _ := cfg.LogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	return cfg, slog.New(handler), nil
}

// newApp opens the store and API client and builds the engine. confirm may
// be nil when the command never unlikes.
func newApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command, confirm engine.Confirmer) (*app, error) {
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}

	reg, err := cfg.LoadRegistry()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load capability registry", err)
	}

	tokens := cfg.Tokens()
	client, err := remote.NewClient(cfg.BaseURL, tokens)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid base url", err)
	}

	logger.Debug("opening store", "driver", cfg.Store.Driver, "dsn", cfg.Store.DSN)
	st, err := store.Open(ctx, store.Driver(cfg.Store.Driver), cfg.Store.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	out := opts.formatter(cmd)
	engOpts := []engine.Option{
		engine.WithTimeout(cfg.Timeout),
		engine.WithTokens(tokens),
		engine.WithLogger(logger),
		engine.WithNotifier(engine.NotifyFunc(func(err error) {
			out.VerboseLog("sync failed: %v", err)
		})),
	}
	if confirm != nil {
		engOpts = append(engOpts, engine.WithConfirmer(confirm))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    st,
		engine:   engine.New(st, client, engOpts...),
		registry: reg,
		out:      out,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing store", "error", err)
	}
}

// user returns the current user. With a token the profile is fetched and a
// failed fetch is an error: favorites are keyed by the profile id, and
// falling back to another id would hide them. Without a token the
// configured user is used, and with none configured the guest.
func (a *app) user(ctx context.Context) (recipe.User, error) {
	tok, err := a.cfg.Tokens().Token(ctx)
	if err != nil || tok == "" {
		return recipe.User{ID: a.cfg.User.ID, ToolsMask: a.cfg.User.ToolsMask}, nil
	}
	u, err := a.client.Me(ctx)
	if err != nil {
		a.logger.Error("profile fetch failed", "error", err)
		_ = a.out.Error("PROFILE_UNAVAILABLE", err.Error(), nil)
		return recipe.User{}, remoteExit("failed to fetch profile", err)
	}
	return u, nil
}

// promptConfirmer asks on in and answers on out. Only "y" or "yes"
// confirms.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, r recipe.Ref) (bool, error) {
	fmt.Fprintf(p.out, "Remove %q from favorites? [y/N] ", r.Name)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func confirmerFor(yes bool, cmd *cobra.Command) engine.Confirmer {
	if yes {
		return engine.AlwaysConfirm
	}
	return promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
}
