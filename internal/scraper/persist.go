package scraper

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/charmbracelet/log"

	"vrstore/internal/catalog"
	"vrstore/internal/sync"
	"vrstore/pkg/models"
)

// PersistError means the scrape itself succeeded but saving the result did not.
type PersistError struct {
	Op    string
	AppID string
	Err   error
}

func (e *PersistError) Error() string {
	if e.AppID != "" {
		return fmt.Sprintf("persist %s %s: %v", e.Op, e.AppID, e.Err)
	}
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// AppStore is the slice of the catalog the Applier writes through.
type AppStore interface {
	GetApp(ctx context.Context, id string) (*models.App, error)
	CreateApp(ctx context.Context, app models.App) (string, error)
	UpdateApp(ctx context.Context, id string, app models.App) error
}

// Applier is the caller-initiated step after a scrape: merge into a chosen
// catalog entry (or create one) and save it.
type Applier struct {
	Store  AppStore
	Events sync.Publisher
	Policy Policy
	Logger *log.Logger
}

func NewApplier(store AppStore, events sync.Publisher, logger *log.Logger) *Applier {
	if logger == nil {
		logger = log.Default()
	}
	return &Applier{Store: store, Events: events, Policy: DefaultPolicy(), Logger: logger}
}

type MergeResult struct {
	App       models.App         `json:"app"`
	Before    models.App         `json:"before"`
	Changed   []Field            `json:"changed"`
	Decisions map[Field]Decision `json:"decisions"`
	DryRun    bool               `json:"dryRun"`
}

var errNoScrape = errors.New("no scraped record")

// MergeInto merges scraped into the app with the given id. With dryRun the
// merged record is returned but not saved. A missing app yields
// catalog.ErrNotFound.
func (a *Applier) MergeInto(ctx context.Context, id string, scraped *ScrapedApp, choices map[Field]Decision, dryRun bool) (*MergeResult, error) {
	if scraped == nil {
		return nil, errNoScrape
	}
	existing, err := a.Store.GetApp(ctx, id)
	if err != nil {
		return nil, &PersistError{Op: "load", AppID: id, Err: err}
	}
	if existing == nil {
		return nil, catalog.ErrNotFound
	}

	conf := a.Policy.Classify(scraped)
	merged := Merge(*existing, scraped, conf, choices)

	res := &MergeResult{
		App:       merged,
		Before:    *existing,
		Changed:   changedFields(*existing, merged),
		Decisions: make(map[Field]Decision),
		DryRun:    dryRun,
	}
	for _, f := range scraped.Present() {
		res.Decisions[f] = effectiveDecision(f, conf, choices)
	}
	if dryRun {
		return res, nil
	}

	if err := a.Store.UpdateApp(ctx, id, merged); err != nil {
		return nil, &PersistError{Op: "update", AppID: id, Err: err}
	}
	a.Logger.Info("[scraper] merged scrape into app", "id", id, "changed", len(res.Changed), "source", scraped.SourceStore)

	if a.Events != nil {
		ev := sync.NewAppEvent(sync.EventAppMerged, merged)
		for _, f := range res.Changed {
			ev.Fields = append(ev.Fields, string(f))
		}
		a.Events.Publish(ev)
	}
	return res, nil
}

// CreateFrom seeds a new catalog entry from a scrape, taking every present
// field. downloadURL is optional since storefront pages rarely expose one.
func (a *Applier) CreateFrom(ctx context.Context, scraped *ScrapedApp, downloadURL string) (models.App, error) {
	if scraped == nil {
		return models.App{}, errNoScrape
	}
	app := Merge(models.App{}, scraped, a.Policy.Classify(scraped), OverwriteAll(scraped))
	app.DownloadURL = downloadURL

	id, err := a.Store.CreateApp(ctx, app)
	if err != nil {
		return models.App{}, &PersistError{Op: "create", Err: err}
	}
	app.ID = id
	a.Logger.Info("[scraper] created app from scrape", "id", id, "title", app.Title)

	if a.Events != nil {
		a.Events.Publish(sync.NewAppEvent(sync.EventAppCreated, app))
	}
	return app, nil
}

// changedFields lists, in Fields order, the mergeable fields whose value
// differs between before and after.
func changedFields(before, after models.App) []Field {
	out := []Field{}
	for _, f := range Fields {
		get, ok := appGetters[f]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(get(&before), get(&after)) {
			out = append(out, f)
		}
	}
	return out
}

var appGetters = map[Field]func(a *models.App) any{
	FieldTitle:            func(a *models.App) any { return a.Title },
	FieldDeveloper:        func(a *models.App) any { return a.Developer },
	FieldPackageNameGuess: func(a *models.App) any { return a.PackageName },
	FieldDescription:      func(a *models.App) any { return a.Description },
	FieldShortDescription: func(a *models.App) any { return a.ShortDescription },
	FieldCategory:         func(a *models.App) any { return a.Category },
	FieldVersion:          func(a *models.App) any { return a.Version },
	FieldIconURL:          func(a *models.App) any { return a.IconURL },
	FieldScreenshots:      func(a *models.App) any { return a.Screenshots },
	FieldRating:           func(a *models.App) any { return a.Rating },
	FieldFileSize:         func(a *models.App) any { return a.FileSize },
}
