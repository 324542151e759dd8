package scraper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"vrstore/internal/catalog"
	"vrstore/pkg/models"
)

const DefaultMatchThreshold = 0.85

// AppLister is the read side of the catalog the Matcher scans.
type AppLister interface {
	ListApps(ctx context.Context, q catalog.ListQuery) ([]models.App, int, error)
}

// Candidate is an existing catalog app that probably describes the same
// product as a scrape.
type Candidate struct {
	App   models.App `json:"app"`
	Score float64    `json:"score"`
	// Reason is "package" for an exact package-name hit, else "title".
	Reason string `json:"reason"`
}

// Matcher ranks catalog apps against a scraped record so an admin can pick
// which entry to merge into.
type Matcher struct {
	Apps      AppLister
	Threshold float64
	Max       int
}

func NewMatcher(apps AppLister) *Matcher {
	return &Matcher{Apps: apps, Threshold: DefaultMatchThreshold, Max: 5}
}

func (m *Matcher) Match(ctx context.Context, scraped *ScrapedApp) ([]Candidate, error) {
	if scraped == nil {
		return nil, errNoScrape
	}
	title, _ := scraped.Title.Get()
	pkg, _ := scraped.PackageNameGuess.Get()
	key := normalizeKey(title)

	var out []Candidate
	q := catalog.ListQuery{Limit: catalog.MaxLimit}
	for {
		page, total, err := m.Apps.ListApps(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list apps: %w", err)
		}
		for _, app := range page {
			if c, ok := m.score(app, key, pkg); ok {
				out = append(out, c)
			}
		}
		q.Offset += len(page)
		if len(page) == 0 || q.Offset >= total {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if m.Max > 0 && len(out) > m.Max {
		out = out[:m.Max]
	}
	return out, nil
}

func (m *Matcher) score(app models.App, titleKey, pkg string) (Candidate, bool) {
	if pkg != "" && strings.EqualFold(app.PackageName, pkg) {
		return Candidate{App: app, Score: 1, Reason: "package"}, true
	}
	if titleKey == "" {
		return Candidate{}, false
	}
	s := matchr.JaroWinkler(titleKey, normalizeKey(app.Title), false)
	if s < m.Threshold {
		return Candidate{}, false
	}
	return Candidate{App: app, Score: s, Reason: "title"}, true
}

// normalizeKey lowercases s, turns every non letter/digit run into one space
// and trims, so "Beat Saber™ - VR" and "beat saber vr" compare equal.
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
