package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tendant/stash/pkg/stash/config"
)

const shutdownTimeout = 10 * time.Second

func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "stash",
		Usage:   "Personal item catalog: files, notes, contacts and links",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"STASH_CONFIG"}, Usage: "YAML config file"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func loadConfig(c *cli.Context, extra ...config.Option) (*config.ServerConfig, error) {
	opts := []config.Option{config.WithFile(c.String("config")), config.WithEnv()}
	return config.Load(append(opts, extra...)...)
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override PORT"},
		},
		Action: func(c *cli.Context) error {
			var extra []config.Option
			if port := c.String("port"); port != "" {
				extra = append(extra, config.WithPort(port))
			}
			cfg, err := loadConfig(c, extra...)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger := cfg.NewLogger(os.Stderr)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := cfg.BuildService(ctx, logger)
			if err != nil {
				return fmt.Errorf("failed to build service: %w", err)
			}
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Error("failed to close service", "error", err)
				}
			}()

			server := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           cfg.Router(svc, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("stash server starting", "port", cfg.Port, "env", cfg.Environment)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info("server exited")
			return nil
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the catalog schema",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Migrate(c.Context); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "schema ready (%s)\n", cfg.DatabaseType())
			return nil
		},
	}
}
