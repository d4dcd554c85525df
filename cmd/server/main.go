package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/security"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// errAuditFailed makes `audit` exit non-zero without printing a second message.
var errAuditFailed = errors.New("security audit failed")

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	err := newServerCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errAuditFailed) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newServerCommand() *cobra.Command {
	var configPath string

	load := func() (*app.Config, error) {
		cfg, err := loadApplicationConfig(configPath)
		if err != nil {
			return nil, err
		}
		if err := app.ConfigureLogging(cfg.Server); err != nil {
			return nil, fmt.Errorf("configure logging: %w", err)
		}
		return cfg, nil
	}

	root := &cobra.Command{
		Use:           "hrconsole-server",
		Short:         "HR console API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return serve(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration directory or file")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the schema and seed the default catalogue, then exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return migrate(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "audit",
			Short: "Run the security posture checks against the configured database",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return audit(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "maintenance",
			Short: "Run the session, activity log and cache cleanup jobs once",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				return runMaintenance(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
		usersCommand(load),
	)
	return root
}

func serve(ctx context.Context, cfg *app.Config) error {
	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	log := logger.WithModule("bootstrap")
	for _, key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stack.Shutdown(stopCtx, log)
	}()

	// the only place a generated password is ever shown
	if stack.Admin != nil && generated.Has(app.SecretBootstrapPassword) {
		log.Warn("bootstrap administrator password generated; change it after first login",
			zap.String("username", stack.Admin.Username),
			zap.String("password", cfg.Auth.Bootstrap.Password),
		)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           stack.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		listenErr <- server.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-listenErr; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func migrate(ctx context.Context, cfg *app.Config, out io.Writer) error {
	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger.WithModule("database"))

	counts := []struct {
		name  string
		model any
	}{
		{"roles", &models.Role{}},
		{"permissions", &models.Permission{}},
		{"menus", &models.Menu{}},
		{"users", &models.User{}},
	}
	for _, c := range counts {
		var n int64
		if err := db.WithContext(ctx).Model(c.model).Count(&n).Error; err != nil {
			return fmt.Errorf("count %s: %w", c.name, err)
		}
		fmt.Fprintf(out, "%-12s %d\n", c.name, n)
	}
	return nil
}

// audit leaves runtime defaults unapplied so a missing secret is reported rather than generated.
func audit(ctx context.Context, cfg *app.Config, out io.Writer) error {
	db, err := database.Open(convertDatabaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db, logger.WithModule("database"))

	result := security.NewAuditService(db, cfg).Run(ctx)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
	for _, check := range result.Checks {
		fmt.Fprintf(w, "%s\t%s\t%s\n", check.ID, check.Status, check.Message)
		if check.Status != security.StatusPass && check.Remediation != "" {
			fmt.Fprintf(w, "\t\t%s\n", check.Remediation)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if result.Failed() {
		return errAuditFailed
	}
	return nil
}

// loadApplicationConfig accepts a directory or a file inside the configuration directory.
func loadApplicationConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config path %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return app.LoadConfig(path)
}
