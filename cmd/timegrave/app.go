package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nhle/timegrave/internal/api"
	"github.com/nhle/timegrave/internal/mock"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/render"
	"github.com/nhle/timegrave/internal/service"
	"github.com/nhle/timegrave/internal/session"
	"github.com/nhle/timegrave/internal/tokenstore"
)

// mockDBName is the mock backend database, kept next to the config file.
const mockDBName = "mock.db"

// app bundles everything a command needs.
type app struct {
	services  service.Set
	session   *session.Manager
	tokens    *tokenstore.Store
	shareBase string
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger
	closers   []func() error
}

// Close releases databases opened by buildApp.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildApp wires the token store, the transport and the session manager
// from the loaded configuration.
func buildApp(cfg *model.AppConfig, cfgPath string, logger *zap.Logger) (*app, error) {
	a := &app{
		shareBase: cfg.API.ShareBaseURL,
		interval:  time.Duration(cfg.Notify.IntervalSec) * time.Second,
		now:       time.Now,
		logger:    logger,
	}

	backend, err := openTokenBackend(cfg.Storage, a)
	if err != nil {
		return nil, err
	}
	a.tokens = tokenstore.New(backend, tokenstore.WithLogger(logger))

	var transport session.Transport
	if cfg.API.BaseURL == "" {
		dir := filepath.Dir(cfgPath)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			a.Close()
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		b, err := mock.Open(filepath.Join(dir, mockDBName), mock.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Debug("no api.base_url configured; using the local mock backend")
		a.closers = append(a.closers, b.Close)
		a.services = b.Services()
		transport = b
	} else {
		client := api.New(
			api.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout()},
			api.WithLogger(logger),
			api.WithTokenRemover(a.tokens),
		)
		a.services = service.Set{
			Auth:          service.NewAuthService(client),
			Graves:        service.NewGravesService(client),
			Notifications: service.NewNotificationService(client),
		}
		transport = client
	}

	a.session = session.New(a.services.Auth, transport, a.tokens,
		session.WithLogger(logger),
		session.WithExpiredHandler(func() {
			fmt.Fprintln(os.Stderr, render.HelpStyle.Render("Your session has expired. Sign in again with `timegrave signin`."))
		}),
	)
	return a, nil
}

func openTokenBackend(storage model.StorageConfig, a *app) (tokenstore.Backend, error) {
	switch storage.Backend {
	case model.StorageKeyring:
		k, err := tokenstore.OpenKeyring(storage.Path)
		if err != nil {
			// Without a keyring the session lasts for this invocation only.
			a.logger.Warn("keyring unavailable; session will not be remembered", zap.Error(err))
			return nil, nil
		}
		return k, nil
	case model.StorageSQLite:
		b, err := tokenstore.OpenSQLite(storage.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	default:
		return tokenstore.NewMemoryBackend(), nil
	}
}

// requireSession restores the persisted session or explains how to get one.
func requireSession(ctx context.Context) (*model.User, error) {
	u, err := env.session.Restore(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("%w; run `timegrave signin` first", err)
	}
	return u, err
}

// interactive reports whether prompts can be shown.
var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassword prompts without echo on a terminal and otherwise reads one
// line from the command's input.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if interactive() {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password given")
	}
	return line, nil
}

func say(cmd *cobra.Command, s string) {
	fmt.Fprintln(cmd.OutOrStdout(), s)
}
