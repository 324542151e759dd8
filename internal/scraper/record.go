package scraper

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"vrstore/pkg/models"
)

// Optional holds a value that an extraction rule may or may not have produced.
//
// Fallback marks a deliberate default (e.g. a storefront's fallback category):
// the value is present, but it was not read from the page.
type Optional[T any] struct {
	Value    T
	Set      bool
	Fallback bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func Default[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true, Fallback: true}
}

func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Field names a mergeable attribute of a scraped record. The string values
// are the wire names used in confidence maps and merge choices.
type Field string

const (
	FieldTitle            Field = "title"
	FieldDeveloper        Field = "developer"
	FieldPackageNameGuess Field = "packageNameGuess"
	FieldDescription      Field = "description"
	FieldShortDescription Field = "shortDescription"
	FieldCategory         Field = "category"
	FieldVersion          Field = "version"
	FieldIconURL          Field = "iconUrl"
	FieldScreenshots      Field = "screenshots"
	FieldRating           Field = "rating"
	FieldFileSize         Field = "fileSize"
)

// Fields lists every mergeable field in display order.
var Fields = []Field{
	FieldTitle,
	FieldDeveloper,
	FieldPackageNameGuess,
	FieldDescription,
	FieldShortDescription,
	FieldCategory,
	FieldVersion,
	FieldIconURL,
	FieldScreenshots,
	FieldRating,
	FieldFileSize,
}

// ScrapedApp is the best-effort record an extractor pulls out of one page.
// Every field is independently optional.
type ScrapedApp struct {
	Title            Optional[string]              `json:"title"`
	Developer        Optional[string]              `json:"developer"`
	PackageNameGuess Optional[string]              `json:"packageNameGuess"`
	Description      Optional[string]              `json:"description"`
	ShortDescription Optional[string]              `json:"shortDescription"`
	Category         Optional[string]              `json:"category"`
	Version          Optional[string]              `json:"version"`
	IconURL          Optional[string]              `json:"iconUrl"`
	Screenshots      Optional[[]models.Screenshot] `json:"screenshots"`
	Rating           Optional[float64]             `json:"rating"`
	FileSize         Optional[int64]               `json:"fileSize"`

	SourceURL   string    `json:"sourceUrl"`
	SourceStore string    `json:"sourceStore"`
	ScrapedAt   time.Time `json:"scrapedAt"`

	// Rules records, per extracted field, the index of the rule that matched.
	// Lower index means a more specific selector.
	Rules map[Field]int `json:"rules,omitempty"`
}

// Has reports whether f carries a value.
func (s *ScrapedApp) Has(f Field) bool {
	set, _ := s.state(f)
	return set
}

// IsFallback reports whether f holds a storefront default rather than a
// value read from the page.
func (s *ScrapedApp) IsFallback(f Field) bool {
	_, fallback := s.state(f)
	return fallback
}

func (s *ScrapedApp) state(f Field) (set, fallback bool) {
	if s == nil {
		return false, false
	}
	setp, fallbackp := s.flags(f)
	if setp == nil {
		return false, false
	}
	return *setp, *fallbackp
}

func (s *ScrapedApp) flags(f Field) (set, fallback *bool) {
	switch f {
	case FieldTitle:
		return &s.Title.Set, &s.Title.Fallback
	case FieldDeveloper:
		return &s.Developer.Set, &s.Developer.Fallback
	case FieldPackageNameGuess:
		return &s.PackageNameGuess.Set, &s.PackageNameGuess.Fallback
	case FieldDescription:
		return &s.Description.Set, &s.Description.Fallback
	case FieldShortDescription:
		return &s.ShortDescription.Set, &s.ShortDescription.Fallback
	case FieldCategory:
		return &s.Category.Set, &s.Category.Fallback
	case FieldVersion:
		return &s.Version.Set, &s.Version.Fallback
	case FieldIconURL:
		return &s.IconURL.Set, &s.IconURL.Fallback
	case FieldScreenshots:
		return &s.Screenshots.Set, &s.Screenshots.Fallback
	case FieldRating:
		return &s.Rating.Set, &s.Rating.Fallback
	case FieldFileSize:
		return &s.FileSize.Set, &s.FileSize.Fallback
	}
	return nil, nil
}

// Fallbacks lists the fields holding a storefront default, in Fields order.
func (s *ScrapedApp) Fallbacks() []Field {
	var out []Field
	for _, f := range Fields {
		if set, fallback := s.state(f); set && fallback {
			out = append(out, f)
		}
	}
	return out
}

// scrapedAppJSON has ScrapedApp's fields without its JSON methods.
type scrapedAppJSON ScrapedApp

// MarshalJSON adds a "fallbacks" list so a record sent back by a client
// classifies the same way it did when it was scraped.
func (s ScrapedApp) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		scrapedAppJSON
		Fallbacks []Field `json:"fallbacks,omitempty"`
	}{scrapedAppJSON(s), s.Fallbacks()})
}

// UnmarshalJSON restores fallback markers and applies the same emptiness
// rules as extraction: blank strings, empty galleries and out-of-range
// numbers are absent.
func (s *ScrapedApp) UnmarshalJSON(b []byte) error {
	var w struct {
		scrapedAppJSON
		Fallbacks []Field `json:"fallbacks"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = ScrapedApp(w.scrapedAppJSON)
	for _, f := range w.Fallbacks {
		if set, fallback := s.flags(f); set != nil && *set {
			*fallback = true
		}
	}
	s.normalize()
	return nil
}

func (s *ScrapedApp) normalize() {
	for _, o := range []*Optional[string]{
		&s.Title, &s.Developer, &s.PackageNameGuess, &s.Description,
		&s.ShortDescription, &s.Category, &s.Version, &s.IconURL,
	} {
		o.Value = strings.TrimSpace(o.Value)
		if o.Value == "" {
			*o = Optional[string]{}
		}
	}

	if s.Screenshots.Set {
		shots := make([]models.Screenshot, 0, len(s.Screenshots.Value))
		for _, shot := range s.Screenshots.Value {
			shot.URL = strings.TrimSpace(shot.URL)
			if shot.URL != "" && len(shots) < maxScreenshots {
				shots = append(shots, shot)
			}
		}
		if len(shots) == 0 {
			s.Screenshots = Optional[[]models.Screenshot]{}
		} else {
			s.Screenshots.Value = shots
		}
	}

	if r := s.Rating.Value; s.Rating.Set && (math.IsNaN(r) || r < 0 || r > 5) {
		s.Rating = Optional[float64]{}
	}
	if s.FileSize.Set && s.FileSize.Value < 0 {
		s.FileSize = Optional[int64]{}
	}
}

// Present returns the fields that carry a value, in Fields order.
func (s *ScrapedApp) Present() []Field {
	out := make([]Field, 0, len(Fields))
	for _, f := range Fields {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
