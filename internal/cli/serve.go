package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/recipesync/internal/fakeapi"
	"github.com/roach88/recipesync/internal/recipe"
)

// ServeOptions holds flags for the serve-fake command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	Token     string
	UserID    string
	FirstCode int64

	// ready, when set, receives the bound address once listening (for testing).
	ready chan<- string
}

// NewServeFakeCommand creates the serve-fake command.
func NewServeFakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve-fake",
		Short: "Run an in-memory recipe API for local testing",
		Long: `Serve an in-memory implementation of the recipe API: like, unlike, the saved
list, profile fetch and profile update. State is lost on exit.

Example:
  recipesync serve-fake --addr 127.0.0.1:8080 --token dev
  RECIPESYNC_TOKEN=dev recipesync toggle 김치볶음밥 --time 30분`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeFake(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&opts.Token, "token", "", "accepted bearer token (empty accepts any)")
	cmd.Flags().StringVar(&opts.UserID, "user", "demo", "id returned by /api/me")
	cmd.Flags().Int64Var(&opts.FirstCode, "first-code", 100, "first code handed out to new recipes")
	return cmd
}

func runServeFake(opts *ServeOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	fake := fakeapi.New(fakeapi.Options{
		Token:     opts.Token,
		User:      recipe.User{ID: opts.UserID},
		FirstCode: opts.FirstCode,
		Logger:    logger,
	})

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           fake,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	addr := ln.Addr().String()
	logger.Info("fake api listening", "addr", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Fake recipe API on http://%s\n", addr)
	if opts.ready != nil {
		opts.ready <- addr
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("fake api stopped")
	return nil
}
