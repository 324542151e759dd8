package models

import "time"

// App is the authoritative catalog record for one VR application.
//
// Every backend (SQL, badger, YAML file) stores exactly this shape, and the
// scraper's merge engine produces new App values from an existing one.
type App struct {
	ID               string       `json:"id" yaml:"id"`
	Title            string       `json:"title" yaml:"title"`
	Developer        string       `json:"developer,omitempty" yaml:"developer,omitempty"`
	PackageName      string       `json:"packageName,omitempty" yaml:"packageName,omitempty"`
	Description      string       `json:"description,omitempty" yaml:"description,omitempty"`
	ShortDescription string       `json:"shortDescription,omitempty" yaml:"shortDescription,omitempty"`
	Category         string       `json:"category,omitempty" yaml:"category,omitempty"`
	Version          string       `json:"version,omitempty" yaml:"version,omitempty"`
	IconURL          string       `json:"iconUrl,omitempty" yaml:"iconUrl,omitempty"`
	DownloadURL      string       `json:"downloadUrl,omitempty" yaml:"downloadUrl,omitempty"`
	Screenshots      []Screenshot `json:"screenshots" yaml:"screenshots"`
	Rating           float64      `json:"rating,omitempty" yaml:"rating,omitempty"`
	FileSize         int64        `json:"fileSize,omitempty" yaml:"fileSize,omitempty"`
	Downloads        int64        `json:"downloads" yaml:"downloads"`
	SourceURL        string       `json:"sourceUrl,omitempty" yaml:"sourceUrl,omitempty"`
	SourceStore      string       `json:"sourceStore,omitempty" yaml:"sourceStore,omitempty"`
	CreatedAt        time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// Screenshot is one entry of an app's ordered gallery.
type Screenshot struct {
	URL     string `json:"url" yaml:"url"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

// Clone returns a copy that shares no slices with a.
func (a App) Clone() App {
	if a.Screenshots != nil {
		shots := make([]Screenshot, len(a.Screenshots))
		copy(shots, a.Screenshots)
		a.Screenshots = shots
	}
	return a
}
