package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vrstore/pkg/models"
)

// SQLStore keeps the catalog in a relational database (sqlite3, sqlite or
// libsql); see pkg/database/schema.sql.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

const appColumns = `id, title, developer, package_name, description, short_description, category,
	version, icon_url, download_url, screenshots, rating, file_size, downloads,
	source_url, source_store, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (models.App, error) {
	var (
		a           models.App
		screenshots string
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(
		&a.ID, &a.Title, &a.Developer, &a.PackageName, &a.Description, &a.ShortDescription, &a.Category,
		&a.Version, &a.IconURL, &a.DownloadURL, &screenshots, &a.Rating, &a.FileSize, &a.Downloads,
		&a.SourceURL, &a.SourceStore, &createdAt, &updatedAt,
	); err != nil {
		return a, err
	}

	a.Screenshots = []models.Screenshot{}
	if screenshots != "" {
		if err := json.Unmarshal([]byte(screenshots), &a.Screenshots); err != nil {
			return a, fmt.Errorf("scan screenshots: %w", err)
		}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return a, nil
}

func (s *SQLStore) GetApp(ctx context.Context, id string) (*models.App, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = ?`, id)
	a, err := scanApp(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getApp: %w", err)
	}
	return &a, nil
}

func (s *SQLStore) ListApps(ctx context.Context, q ListQuery) ([]models.App, int, error) {
	q = q.normalized()

	countSQL, countArgs := buildListSQL(q, true)
	var total int
	if err := s.DB.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scan: %w", err)
	}

	listSQL, args := buildListSQL(q, false)
	rows, err := s.DB.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.App, 0, q.Limit)
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return out, total, nil
}

// buildListSQL builds either COUNT(*) or the paged SELECT for q.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	sqlStr := `SELECT ` + appColumns + ` FROM apps`
	if countOnly {
		sqlStr = `SELECT COUNT(*) FROM apps`
	}

	var where []string
	var args []any

	if q.Q != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(developer) LIKE ? OR LOWER(description) LIKE ?)")
		kw := "%" + strings.ToLower(q.Q) + "%"
		args = append(args, kw, kw, kw)
	}
	if q.Category != "" {
		where = append(where, "LOWER(category) = ?")
		args = append(args, strings.ToLower(q.Category))
	}

	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	if !countOnly {
		sqlStr += " ORDER BY title ASC, id ASC LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}
	return sqlStr, args
}

func (s *SQLStore) CreateApp(ctx context.Context, app models.App) (string, error) {
	if err := validate(app); err != nil {
		return "", err
	}
	app = prepareNew(app)
	shots, err := json.Marshal(app.Screenshots)
	if err != nil {
		return "", fmt.Errorf("marshal screenshots: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO apps (`+appColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		app.ID, app.Title, app.Developer, app.PackageName, app.Description, app.ShortDescription, app.Category,
		app.Version, app.IconURL, app.DownloadURL, string(shots), app.Rating, app.FileSize, app.Downloads,
		app.SourceURL, app.SourceStore, formatTime(app.CreatedAt), formatTime(app.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert app: %w", err)
	}
	return app.ID, nil
}

func (s *SQLStore) UpdateApp(ctx context.Context, id string, app models.App) error {
	if err := validate(app); err != nil {
		return err
	}
	stored, err := s.GetApp(ctx, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return ErrNotFound
	}
	app = prepareUpdate(*stored, app)
	shots, err := json.Marshal(app.Screenshots)
	if err != nil {
		return fmt.Errorf("marshal screenshots: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE apps SET
		  title = ?, developer = ?, package_name = ?, description = ?, short_description = ?,
		  category = ?, version = ?, icon_url = ?, download_url = ?, screenshots = ?,
		  rating = ?, file_size = ?, source_url = ?, source_store = ?, updated_at = ?
		WHERE id = ?
	`,
		app.Title, app.Developer, app.PackageName, app.Description, app.ShortDescription,
		app.Category, app.Version, app.IconURL, app.DownloadURL, string(shots),
		app.Rating, app.FileSize, app.SourceURL, app.SourceStore, formatTime(app.UpdatedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDownloadEvent logs the event and bumps the counter in one transaction.
func (s *SQLStore) RecordDownloadEvent(ctx context.Context, id string, client models.ClientInfo) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE apps SET downloads = downloads + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("bump downloads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump downloads rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO download_events (app_id, ip, user_agent, platform, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, client.IP, client.UserAgent, client.Platform, formatTime(now())); err != nil {
		return fmt.Errorf("insert download event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DownloadEvents returns the most recent events for an app, newest first.
func (s *SQLStore) DownloadEvents(ctx context.Context, id string, limit int) ([]models.DownloadEvent, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT app_id, ip, user_agent, platform, created_at
		FROM download_events
		WHERE app_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list download events: %w", err)
	}
	defer rows.Close()

	var out []models.DownloadEvent
	for rows.Next() {
		var (
			ev models.DownloadEvent
			at string
		)
		if err := rows.Scan(&ev.AppID, &ev.Client.IP, &ev.Client.UserAgent, &ev.Client.Platform, &at); err != nil {
			return nil, fmt.Errorf("scan download event: %w", err)
		}
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.DB.Close() }

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
