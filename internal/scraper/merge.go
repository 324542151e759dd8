package scraper

import (
	"strings"

	"vrstore/pkg/models"
)

// Decision is the per-field policy applied when merging a scrape into an
// existing catalog record.
type Decision string

const (
	// DecisionOverwrite replaces the existing value.
	DecisionOverwrite Decision = "overwrite"
	// DecisionMerge combines both values where the field supports it.
	DecisionMerge Decision = "merge"
	// DecisionKeep discards the scraped value.
	DecisionKeep Decision = "keep"
	// DecisionSuggest fills the field only when it is empty.
	DecisionSuggest Decision = "suggest"
)

// ParseDecision maps s to a Decision; anything unrecognized is suggest.
func ParseDecision(s string) Decision {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionOverwrite, DecisionMerge, DecisionKeep, DecisionSuggest:
		return d
	}
	return DecisionSuggest
}

// DefaultDecision is the decision implied by a confidence tier.
func DefaultDecision(t Tier) Decision {
	switch t {
	case TierHigh, TierMedium:
		return DecisionOverwrite
	}
	return DecisionSuggest
}

const descriptionSeparator = "\n\n"

// fieldMerger describes how one scraped field lands on a catalog record.
type fieldMerger struct {
	isEmpty func(a *models.App) bool
	take    func(a *models.App, s *ScrapedApp)
	// combine implements DecisionMerge; nil means merge acts as overwrite.
	combine func(a *models.App, s *ScrapedApp)
}

func scalar[T comparable](get func(*ScrapedApp) Optional[T], ptr func(*models.App) *T) fieldMerger {
	return fieldMerger{
		isEmpty: func(a *models.App) bool {
			var zero T
			return *ptr(a) == zero
		},
		take: func(a *models.App, s *ScrapedApp) { *ptr(a) = get(s).Value },
	}
}

var fieldMergers = map[Field]fieldMerger{
	FieldTitle: scalar(
		func(s *ScrapedApp) Optional[string] { return s.Title },
		func(a *models.App) *string { return &a.Title }),
	FieldDeveloper: scalar(
		func(s *ScrapedApp) Optional[string] { return s.Developer },
		func(a *models.App) *string { return &a.Developer }),
	FieldPackageNameGuess: scalar(
		func(s *ScrapedApp) Optional[string] { return s.PackageNameGuess },
		func(a *models.App) *string { return &a.PackageName }),
	FieldDescription: {
		isEmpty: func(a *models.App) bool { return strings.TrimSpace(a.Description) == "" },
		take:    func(a *models.App, s *ScrapedApp) { a.Description = s.Description.Value },
		combine: func(a *models.App, s *ScrapedApp) {
			if strings.TrimSpace(a.Description) == "" {
				a.Description = s.Description.Value
				return
			}
			a.Description = a.Description + descriptionSeparator + s.Description.Value
		},
	},
	FieldShortDescription: scalar(
		func(s *ScrapedApp) Optional[string] { return s.ShortDescription },
		func(a *models.App) *string { return &a.ShortDescription }),
	FieldCategory: scalar(
		func(s *ScrapedApp) Optional[string] { return s.Category },
		func(a *models.App) *string { return &a.Category }),
	FieldVersion: scalar(
		func(s *ScrapedApp) Optional[string] { return s.Version },
		func(a *models.App) *string { return &a.Version }),
	FieldIconURL: scalar(
		func(s *ScrapedApp) Optional[string] { return s.IconURL },
		func(a *models.App) *string { return &a.IconURL }),
	FieldScreenshots: {
		isEmpty: func(a *models.App) bool { return len(a.Screenshots) == 0 },
		take: func(a *models.App, s *ScrapedApp) {
			a.Screenshots = append([]models.Screenshot(nil), s.Screenshots.Value...)
		},
		combine: func(a *models.App, s *ScrapedApp) {
			out := make([]models.Screenshot, 0, len(a.Screenshots)+len(s.Screenshots.Value))
			out = append(out, a.Screenshots...)
			a.Screenshots = append(out, s.Screenshots.Value...)
		},
	},
	FieldRating: scalar(
		func(s *ScrapedApp) Optional[float64] { return s.Rating },
		func(a *models.App) *float64 { return &a.Rating }),
	FieldFileSize: scalar(
		func(s *ScrapedApp) Optional[int64] { return s.FileSize },
		func(a *models.App) *int64 { return &a.FileSize }),
}

// Merge reconciles a scraped record with an existing catalog record and
// returns the result as a new value; existing is not modified.
//
// For every field present in scraped, the decision is the explicit choice
// when one is given, else the default for its confidence tier, else suggest.
// Fields absent from scraped always pass through unchanged.
func Merge(existing models.App, scraped *ScrapedApp, confidence ConfidenceMap, choices map[Field]Decision) models.App {
	out := existing.Clone()
	if scraped == nil {
		return out
	}

	for _, f := range Fields {
		if !scraped.Has(f) {
			continue
		}
		m, ok := fieldMergers[f]
		if !ok {
			continue
		}
		switch effectiveDecision(f, confidence, choices) {
		case DecisionOverwrite:
			m.take(&out, scraped)
		case DecisionMerge:
			if m.combine != nil {
				m.combine(&out, scraped)
			} else {
				m.take(&out, scraped)
			}
		case DecisionKeep:
		default:
			if m.isEmpty(&out) {
				m.take(&out, scraped)
			}
		}
	}

	if out.SourceURL == "" {
		out.SourceURL = scraped.SourceURL
	}
	if out.SourceStore == "" {
		out.SourceStore = scraped.SourceStore
	}
	return out
}

func effectiveDecision(f Field, confidence ConfidenceMap, choices map[Field]Decision) Decision {
	if d, ok := choices[f]; ok {
		return ParseDecision(string(d))
	}
	if t, ok := confidence[f]; ok {
		return DefaultDecision(t)
	}
	return DecisionSuggest
}

// OverwriteAll returns a choice map that takes every present field of s.
// Used when a scrape seeds a brand new catalog entry.
func OverwriteAll(s *ScrapedApp) map[Field]Decision {
	out := make(map[Field]Decision)
	for _, f := range s.Present() {
		out[f] = DecisionOverwrite
	}
	return out
}
