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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/app"
	"github.com/Horth168/staff-attendance-app/internal/config"
	"github.com/Horth168/staff-attendance-app/internal/logger"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "attendance",
		Short:         "Staff presence tracker",
		Long:          "Tracks who is clocked in, who is off, and exports the attendance log.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	cmd.AddCommand(newExportCommand())
	return cmd
}

func serve() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("attendance service started", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newExportCommand() *cobra.Command {
	var (
		outDir string
		locale string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the attendance workbook to disk",
		Long: `Sync once from the store and write Attendance-Log-<date>.xlsx.

Example:
  attendance export --out ./reports --lang km`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), outDir, locale)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the workbook into")
	cmd.Flags().StringVar(&locale, "lang", "", "label language (en|km); defaults to DEFAULT_LOCALE")
	return cmd
}
