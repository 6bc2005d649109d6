package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/app"
	"github.com/Horth168/staff-attendance-app/internal/i18n"
)

func runExport(ctx context.Context, outDir, locale string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if locale != "" {
		ctx = i18n.WithLocale(ctx, i18n.Match(locale))
	}
	buf, name, err := a.Export.WriteXLSX(ctx, time.Now())
	if err != nil {
		return err
	}

	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info("export written", zap.String("path", path), zap.Int("bytes", buf.Len()))
	return nil
}
