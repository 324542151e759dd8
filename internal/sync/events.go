package sync

import (
	"time"

	"vrstore/pkg/models"
)

const (
	EventAppCreated    = "app.created"
	EventAppUpdated    = "app.updated"
	EventAppMerged     = "app.merged"
	EventAppDownloaded = "app.downloaded"
)

// AppEvent is one line of the catalog change feed.
type AppEvent struct {
	Type      string    `json:"type"`
	AppID     string    `json:"appId"`
	Title     string    `json:"title,omitempty"`
	Source    string    `json:"source,omitempty"`
	Fields    []string  `json:"fields,omitempty"` // merged fields, app.merged only
	Downloads int64     `json:"downloads,omitempty"`
	At        time.Time `json:"at"`
}

func NewAppEvent(kind string, app models.App) AppEvent {
	return AppEvent{
		Type:      kind,
		AppID:     app.ID,
		Title:     app.Title,
		Source:    app.SourceStore,
		Downloads: app.Downloads,
		At:        time.Now().UTC(),
	}
}
