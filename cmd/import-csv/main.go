package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"vrstore/internal/catalog"
	"vrstore/pkg/models"
	"vrstore/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "vrstore.json5", "config file (json5)")
		appsIn     = flag.String("apps", "data/apps.csv", "input CSV path for apps")
		dryRun     = flag.Bool("dry-run", false, "parse and report without writing")
	)
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("load config failed", "err", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	f, err := os.Open(*appsIn)
	if err != nil {
		logger.Fatal("open csv failed", "path", *appsIn, "err", err)
	}
	defer f.Close()

	apps, err := catalog.ReadCSV(f)
	if err != nil {
		logger.Fatal("parse csv failed", "path", *appsIn, "err", err)
	}
	if *dryRun {
		logger.Info("dry run", "rows", len(apps))
		return
	}

	store, err := catalog.Open(ctx, cfg.Store, nil)
	if err != nil {
		logger.Fatal("open catalog failed", "backend", cfg.Store.Backend, "err", err)
	}
	defer store.Close()

	created, updated, err := importApps(ctx, store, apps)
	if err != nil {
		logger.Fatal("import apps failed", "err", err)
	}
	logger.Info("✅ imported apps", "path", *appsIn, "created", created, "updated", updated)
}

// importApps upserts by id: rows with a known id update that app, the rest
// are created.
func importApps(ctx context.Context, store catalog.Store, apps []models.App) (created, updated int, err error) {
	for _, app := range apps {
		if app.ID != "" {
			existing, err := store.GetApp(ctx, app.ID)
			if err != nil {
				return created, updated, err
			}
			if existing != nil {
				if err := store.UpdateApp(ctx, app.ID, app); err != nil {
					return created, updated, err
				}
				updated++
				continue
			}
		}
		if _, err := store.CreateApp(ctx, app); err != nil {
			return created, updated, err
		}
		created++
	}
	return created, updated, nil
}
