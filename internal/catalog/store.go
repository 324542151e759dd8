package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vrstore/pkg/models"
)

// ErrNotFound is returned by writes that target a missing app. Reads return
// (nil, nil) instead.
var ErrNotFound = errors.New("app not found")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type ListQuery struct {
	Category string // exact match, case-insensitive
	Q        string // keyword search in title/developer/description
	Limit    int
	Offset   int
}

// Store is the catalog persistence contract shared by every backend.
type Store interface {
	ListApps(ctx context.Context, q ListQuery) ([]models.App, int, error)
	GetApp(ctx context.Context, id string) (*models.App, error)
	CreateApp(ctx context.Context, app models.App) (string, error)
	UpdateApp(ctx context.Context, id string, app models.App) error
	RecordDownloadEvent(ctx context.Context, id string, client models.ClientInfo) error
	Ping(ctx context.Context) error
	Close() error
}

func (q ListQuery) normalized() ListQuery {
	q.Category = strings.TrimSpace(q.Category)
	q.Q = strings.TrimSpace(q.Q)
	if q.Limit <= 0 || q.Limit > MaxLimit {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// prepareNew fills server-owned fields of an app about to be created.
func prepareNew(app models.App) models.App {
	app = app.Clone()
	if strings.TrimSpace(app.ID) == "" {
		app.ID = uuid.NewString()
	}
	t := now()
	app.CreatedAt = t
	app.UpdatedAt = t
	if app.Screenshots == nil {
		app.Screenshots = []models.Screenshot{}
	}
	return app
}

// prepareUpdate keeps the fields an update may not change.
func prepareUpdate(stored, incoming models.App) models.App {
	out := incoming.Clone()
	out.ID = stored.ID
	out.CreatedAt = stored.CreatedAt
	out.Downloads = stored.Downloads
	out.UpdatedAt = now()
	if out.Screenshots == nil {
		out.Screenshots = []models.Screenshot{}
	}
	return out
}

func validate(app models.App) error {
	if strings.TrimSpace(app.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

// matches applies q's filters the way the SQL backend's WHERE clause does.
func matches(app models.App, q ListQuery) bool {
	if q.Category != "" && !strings.EqualFold(app.Category, q.Category) {
		return false
	}
	if q.Q != "" {
		kw := strings.ToLower(q.Q)
		if !strings.Contains(strings.ToLower(app.Title), kw) &&
			!strings.Contains(strings.ToLower(app.Developer), kw) &&
			!strings.Contains(strings.ToLower(app.Description), kw) {
			return false
		}
	}
	return true
}

// filterPage filters, sorts by title and slices all. Used by the non-SQL backends.
func filterPage(all []models.App, q ListQuery) ([]models.App, int) {
	q = q.normalized()
	hits := make([]models.App, 0, len(all))
	for _, a := range all {
		if matches(a, q) {
			hits = append(hits, a)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Title != hits[j].Title {
			return hits[i].Title < hits[j].Title
		}
		return hits[i].ID < hits[j].ID
	})

	total := len(hits)
	if q.Offset >= total {
		return []models.App{}, total
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return hits[q.Offset:end], total
}
