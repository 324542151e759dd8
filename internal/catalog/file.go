package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"vrstore/pkg/models"
)

// maxFileEvents caps the download log kept in the YAML file.
const maxFileEvents = 1000

type fileData struct {
	Apps   []models.App           `yaml:"apps"`
	Events []models.DownloadEvent `yaml:"downloadEvents,omitempty"`
}

// FileStore keeps the whole catalog in one YAML file. Every write rewrites the
// file through a temp file and rename.
type FileStore struct {
	path string

	mu   sync.RWMutex
	data fileData
}

// OpenFileStore loads path, creating an empty catalog when it does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
		if err := s.flush(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read catalog file: %w", err)
	default:
		if err := yaml.Unmarshal(b, &s.data); err != nil {
			return nil, fmt.Errorf("parse catalog file: %w", err)
		}
	}
	return s, nil
}

// flush writes s.data; callers hold the write lock.
func (s *FileStore) flush() error {
	b, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

func (s *FileStore) indexOf(id string) int {
	for i, a := range s.data.Apps {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) GetApp(_ context.Context, id string) (*models.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	a := s.data.Apps[i].Clone()
	return &a, nil
}

func (s *FileStore) ListApps(_ context.Context, q ListQuery) ([]models.App, int, error) {
	s.mu.RLock()
	all := make([]models.App, len(s.data.Apps))
	for i, a := range s.data.Apps {
		all[i] = a.Clone()
	}
	s.mu.RUnlock()

	items, total := filterPage(all, q)
	return items, total, nil
}

func (s *FileStore) CreateApp(_ context.Context, app models.App) (string, error) {
	if err := validate(app); err != nil {
		return "", err
	}
	app = prepareNew(app)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(app.ID) >= 0 {
		return "", fmt.Errorf("create app: app %s already exists", app.ID)
	}
	s.data.Apps = append(s.data.Apps, app)
	if err := s.flush(); err != nil {
		s.data.Apps = s.data.Apps[:len(s.data.Apps)-1]
		return "", err
	}
	return app.ID, nil
}

func (s *FileStore) UpdateApp(_ context.Context, id string, app models.App) error {
	if err := validate(app); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.data.Apps[i]
	s.data.Apps[i] = prepareUpdate(prev, app)
	if err := s.flush(); err != nil {
		s.data.Apps[i] = prev
		return err
	}
	return nil
}

func (s *FileStore) RecordDownloadEvent(_ context.Context, id string, client models.ClientInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.data.Apps[i].Downloads++
	s.data.Events = append(s.data.Events, models.DownloadEvent{AppID: id, Client: client, At: now()})
	if n := len(s.data.Events); n > maxFileEvents {
		s.data.Events = s.data.Events[n-maxFileEvents:]
	}
	return s.flush()
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *FileStore) Close() error { return nil }
