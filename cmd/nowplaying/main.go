// ABOUTME: Main entry point for the now-playing stream follower
// ABOUTME: Loads config, starts the background stream client, serves HTTP, optionally runs the terminal view
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/harper/nowplaying/internal/application/config"
	"github.com/harper/nowplaying/internal/application/manager"
	"github.com/harper/nowplaying/internal/infrastructure/http"
	"github.com/harper/nowplaying/internal/infrastructure/ui"
	"github.com/harper/nowplaying/internal/infrastructure/window"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	var (
		cfgPath  string
		listen   string
		url      string
		logLevel string
		tui      bool
	)
	flags := pflag.NewFlagSet("nowplaying", pflag.ContinueOnError)
	flags.StringVarP(&cfgPath, "config", "c", "", "path to a YAML or JSONC config file")
	flags.StringVar(&listen, "listen", "", "HTTP listen address (host:port), overrides config")
	flags.StringVar(&url, "url", "", "upstream event stream URL, overrides config")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overrides config")
	flags.BoolVar(&tui, "tui", false, "show the now-playing terminal view")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := applyOverrides(cfg, flags, listen, url, logLevel, tui); err != nil {
		return err
	}

	// The terminal view owns stdout, so logs go nowhere visible unless JSON
	// output to stderr was requested explicitly.
	var logOut io.Writer = os.Stderr
	if cfg.UI.Enabled && !cfg.Logging.JSON {
		logOut = io.Discard
	}
	logger, err := newLogger(cfg.Logging, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	mgr, err := manager.NewFromConfig(cfg, manager.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	windowState := window.NewState(cfg.UI.ThemeColor)
	router := http.NewRouter(mgr, window.NewCommands(windowState))

	var srv *nethttp.Server
	serveErr := make(chan error, 1)
	if cfg.Listen.Port != 0 {
		srv = &nethttp.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0, // Streaming
			IdleTimeout:       0, // Streaming
			BaseContext: func(_ net.Listener) context.Context {
				return context.Background()
			},
		}
		go func() {
			logger.Info("listening", "addr", "http://"+cfg.Addr())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				serveErr <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	if cfg.UI.Enabled {
		runErr = runTUI(ctx, mgr, windowState, cfg.UI.ThemeColor, serveErr)
	} else {
		select {
		case <-ctx.Done():
		case runErr = <-serveErr:
		}
	}

	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}

	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("shutdown stream: %w", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

func applyOverrides(cfg *config.Config, flags *pflag.FlagSet, listen, url, logLevel string, tui bool) error {
	if flags.Changed("listen") {
		host, portStr, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("parse --listen: %w", err)
		}
		port, err := net.LookupPort("tcp", portStr)
		if err != nil {
			return fmt.Errorf("parse --listen: %w", err)
		}
		cfg.Listen.Host = host
		cfg.Listen.Port = port
	}
	if flags.Changed("url") {
		cfg.Source.URL = url
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("tui") {
		cfg.UI.Enabled = tui
	}
	return cfg.Validate()
}

func newLogger(cfg config.LoggingConfig, out io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), nil
}

// runTUI blocks until the terminal view exits. A failing HTTP server quits
// the view and its error is returned, since logs are hidden while it runs.
func runTUI(ctx context.Context, mgr *manager.Manager, state *window.State, theme string, serveErr <-chan error) error {
	sub := mgr.Subscribe()
	defer mgr.Unsubscribe(sub)

	program := tea.NewProgram(ui.New(mgr.CurrentSong(), theme, sub.C()), tea.WithContext(ctx))
	state.Watch(func(s window.Settings) {
		program.Send(ui.ThemeMsg(s.ThemeColor))
	})

	done := make(chan struct{})
	failed := quitOnError(serveErr, done, program.Quit)

	_, err := program.Run()
	close(done)
	if serr := <-failed; serr != nil {
		return serr
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal view: %w", err)
	}
	return nil
}

// quitOnError calls quit when errs delivers before done closes. The returned
// channel yields that error, or nil, once the watch has ended.
func quitOnError(errs <-chan error, done <-chan struct{}, quit func()) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		select {
		case err := <-errs:
			out <- err
			quit()
		case <-done:
		}
	}()
	return out
}
