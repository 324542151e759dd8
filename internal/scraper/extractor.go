package scraper

import (
	"context"
	"net/url"
	"regexp"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"vrstore/pkg/models"
)

var tracer = otel.Tracer("vrstore/internal/scraper")

const (
	maxScreenshots      = 5
	shortDescriptionLen = 500
)

// StoreID identifies a supported storefront.
type StoreID string

const (
	StoreMeta      StoreID = "meta"
	StoreSideQuest StoreID = "sidequest"
	StoreSteam     StoreID = "steam"
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Extractor turns one storefront's HTML into a ScrapedApp.
//
// Each field has an ordered rule list; earlier rules are more specific and
// more trustworthy. The first rule that yields a non-empty value wins.
type Extractor struct {
	ID      StoreID
	Name    string
	Example string

	// Patterns are matched against the normalized input URL by the Router.
	Patterns []*regexp.Regexp

	// FallbackCategory is assigned when no category rule matches.
	FallbackCategory string

	Title       []Rule[string]
	Developer   []Rule[string]
	Description []Rule[string]
	Category    []Rule[string]
	Version     []Rule[string]
	IconURL     []Rule[string]
	Screenshots []Rule[[]models.Screenshot]
	Rating      []Rule[float64]
	FileSize    []Rule[int64]

	// PackageName derives a package guess from URL structure only.
	PackageName func(u *url.URL) (string, bool)
}

// Matches reports whether any of the extractor's patterns match u.
func (e *Extractor) Matches(u string) bool {
	for _, p := range e.Patterns {
		if p.MatchString(u) {
			return true
		}
	}
	return false
}

// Extract never fails: unmatched fields are simply left unset.
func (e *Extractor) Extract(html, sourceURL string) *ScrapedApp {
	return e.ExtractContext(context.Background(), html, sourceURL)
}

func (e *Extractor) ExtractContext(ctx context.Context, html, sourceURL string) *ScrapedApp {
	_, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("store", string(e.ID)),
		attribute.Int("html_length", len(html)),
	)

	page := NewPage(html, sourceURL)
	rec := &ScrapedApp{
		SourceURL:   sourceURL,
		SourceStore: e.Name,
		ScrapedAt:   now(),
		Rules:       make(map[Field]int),
	}

	rec.Title = pick(page, rec, FieldTitle, e.Title)
	rec.Developer = pick(page, rec, FieldDeveloper, e.Developer)
	rec.Description = pick(page, rec, FieldDescription, e.Description)
	rec.Version = pick(page, rec, FieldVersion, e.Version)
	rec.IconURL = pick(page, rec, FieldIconURL, e.IconURL)
	rec.Screenshots = pick(page, rec, FieldScreenshots, e.Screenshots)
	rec.Rating = pick(page, rec, FieldRating, e.Rating)
	rec.FileSize = pick(page, rec, FieldFileSize, e.FileSize)

	rec.Category = pick(page, rec, FieldCategory, e.Category)
	if !rec.Category.Set && e.FallbackCategory != "" {
		rec.Category = Default(e.FallbackCategory)
	}

	if d, ok := rec.Description.Get(); ok {
		rec.ShortDescription = Some(shorten(d, shortDescriptionLen))
	}

	if e.PackageName != nil && page.URL != nil {
		if guess, ok := e.PackageName(page.URL); ok && guess != "" {
			rec.PackageNameGuess = Some(guess)
		}
	}

	if s, ok := rec.Screenshots.Get(); ok && len(s) > maxScreenshots {
		rec.Screenshots = Some(s[:maxScreenshots])
	}

	span.SetAttributes(attribute.Int("fields", len(rec.Present())))
	return rec
}

func pick[T any](p *Page, rec *ScrapedApp, f Field, rules []Rule[T]) Optional[T] {
	v, idx, ok := firstMatch(p, guarded(rules))
	if !ok {
		return Optional[T]{}
	}
	rec.Rules[f] = idx
	return Some(v)
}

// guarded wraps rules so a panicking selector counts as a miss.
func guarded[T any](rules []Rule[T]) []Rule[T] {
	out := make([]Rule[T], len(rules))
	for i, r := range rules {
		out[i] = func(p *Page) (v T, ok bool) {
			defer func() {
				if recover() != nil {
					var zero T
					v, ok = zero, false
				}
			}()
			return r(p)
		}
	}
	return out
}

// shorten cuts s to n runes and appends an ellipsis when it was longer.
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
