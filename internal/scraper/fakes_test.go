package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vrstore/internal/catalog"
	appsync "vrstore/internal/sync"
	"vrstore/pkg/models"
)

// memStore is a map-backed catalog for Applier and Matcher tests.
type memStore struct {
	mu      sync.Mutex
	apps    map[string]models.App
	order   []string
	failOn  string
	updates int
}

func newMemStore(apps ...models.App) *memStore {
	s := &memStore{apps: map[string]models.App{}}
	for _, a := range apps {
		s.apps[a.ID] = a
		s.order = append(s.order, a.ID)
	}
	return s
}

var errStoreDown = errors.New("store down")

func (s *memStore) GetApp(_ context.Context, id string) (*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "get" {
		return nil, errStoreDown
	}
	a, ok := s.apps[id]
	if !ok {
		return nil, nil
	}
	a = a.Clone()
	return &a, nil
}

func (s *memStore) CreateApp(_ context.Context, app models.App) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "create" {
		return "", errStoreDown
	}
	app.ID = fmt.Sprintf("app-%d", len(s.apps)+1)
	s.apps[app.ID] = app
	s.order = append(s.order, app.ID)
	return app.ID, nil
}

func (s *memStore) UpdateApp(_ context.Context, id string, app models.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "update" {
		return errStoreDown
	}
	if _, ok := s.apps[id]; !ok {
		return catalog.ErrNotFound
	}
	app.ID = id
	s.apps[id] = app
	s.updates++
	return nil
}

func (s *memStore) ListApps(_ context.Context, q catalog.ListQuery) ([]models.App, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.order)
	if q.Offset >= total {
		return []models.App{}, total, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	out := make([]models.App, 0, end-q.Offset)
	for _, id := range s.order[q.Offset:end] {
		out = append(out, s.apps[id])
	}
	return out, total, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []appsync.AppEvent
}

func (p *recordingPublisher) Publish(ev appsync.AppEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}
