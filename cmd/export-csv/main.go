package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"vrstore/internal/catalog"
	"vrstore/pkg/models"
	"vrstore/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "vrstore.json5", "config file (json5)")
		appsOut    = flag.String("apps", "data/apps.csv", "output CSV path for apps")
		category   = flag.String("category", "", "only export this category")
	)
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("load config failed", "err", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := catalog.Open(ctx, cfg.Store, nil)
	if err != nil {
		logger.Fatal("open catalog failed", "backend", cfg.Store.Backend, "err", err)
	}
	defer store.Close()

	apps, err := allApps(ctx, store, *category)
	if err != nil {
		logger.Fatal("list apps failed", "err", err)
	}
	if err := exportApps(*appsOut, apps); err != nil {
		logger.Fatal("export apps failed", "err", err)
	}
	logger.Info("✅ exported apps", "path", *appsOut, "rows", len(apps))
}

func allApps(ctx context.Context, store catalog.Store, category string) ([]models.App, error) {
	var out []models.App
	q := catalog.ListQuery{Category: category, Limit: catalog.MaxLimit}
	for {
		page, total, err := store.ListApps(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		q.Offset += len(page)
		if len(page) == 0 || q.Offset >= total {
			return out, nil
		}
	}
}

func exportApps(outPath string, apps []models.App) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := catalog.WriteCSV(f, apps); err != nil {
		return err
	}
	return f.Close()
}
