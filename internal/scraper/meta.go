package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"vrstore/pkg/models"
)

var (
	metaRatingText = regexp.MustCompile(`(?i)([0-5](?:\.\d+)?)\s*(?:out of 5|/\s*5)`)
	metaSize       = regexp.MustCompile(`(?is)(?:Space Required|Download Size|App Size)\s*(?:</[^>]+>\s*<[^>]+>)*\s*:?\s*([\d.,]+\s*[KMG]?B)`)
	metaVersion    = regexp.MustCompile(`(?is)>\s*Version\s*(?:</[^>]+>\s*<[^>]+>)*\s*:?\s*v?(\d+(?:\.\d+)+[^<\s]*)`)
	metaAppID      = regexp.MustCompile(`^\d{6,}$`)
)

// MetaQuest extracts apps from the Meta Quest Store (meta.com, oculus.com).
func MetaQuest() *Extractor {
	return &Extractor{
		ID:      StoreMeta,
		Name:    "Meta Quest Store",
		Example: "https://www.meta.com/experiences/beat-saber/2448060205267927/",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://(?:www\.)?meta\.com/(?:[a-z]{2}(?:-[a-z]{2})?/)?experiences/`),
			regexp.MustCompile(`(?i)^https?://(?:www\.)?oculus\.com/experiences/`),
			regexp.MustCompile(`(?i)^https?://store\.facebook\.com/quest/`),
		},
		FallbackCategory: "Games",

		Title: []Rule[string]{
			textOf(`[data-testid="app-details-title"]`),
			textOf(`[class*="app-details__title"], [class*="AppTitle"]`),
			textOf("h1"),
			metaContent("og:title"),
			titleWithout(" | Meta Quest", " | Oculus", " on Oculus", " | Meta Store"),
		},
		Developer: []Rule[string]{
			textOf(`[data-testid="app-details-developer"]`),
			textOf(`[class*="app-details__developer"], [class*="DeveloperName"]`),
			textOf(`a[href*="/developer/"], a[href*="/publisher/"]`),
		},
		Description: []Rule[string]{
			blockOf(`[data-testid="app-details-description"]`),
			blockOf(`[class*="app-description"], [class*="AppDescription"]`),
			metaContent("og:description"),
			metaContent("description"),
			readabilityExcerpt(),
		},
		Category: []Rule[string]{
			textOf(`[data-testid="app-details-genre"]`),
			textOf(`[class*="app-details__genre"], a[href*="/genre/"]`),
		},
		Version: []Rule[string]{
			textOf(`[data-testid="app-details-version"]`),
			regexText(metaVersion),
		},
		IconURL: []Rule[string]{
			urlAttrOf(`img[data-testid="app-icon"]`, "src"),
			urlAttrOf(`[class*="app-icon"] img, img[class*="AppIcon"]`, "src"),
			func(p *Page) (string, bool) {
				v, ok := metaContent("og:image")(p)
				return p.Resolve(v), ok
			},
		},
		Screenshots: []Rule[[]models.Screenshot]{
			screenshotsOf(`[data-testid="app-screenshot"] img, img[data-testid="app-screenshot"]`, "src"),
			screenshotsOf(`[class*="carousel"] img, [class*="Carousel"] img`, "src"),
		},
		Rating: []Rule[float64]{
			ratingFrom(textOf(`[data-testid="app-rating-average"]`)),
			ratingFrom(attrOf(`[aria-label*="out of 5"]`, "aria-label")),
			ratingFrom(regexText(metaRatingText)),
		},
		FileSize: []Rule[int64]{
			sizeIn(textOf(`[data-testid="app-details-size"]`)),
			sizeIn(regexText(metaSize)),
		},
		PackageName: func(u *url.URL) (string, bool) {
			// /experiences/<slug>/<id>/ or /experiences/<id>/
			segs := pathSegments(u)
			for i := len(segs) - 1; i >= 0; i-- {
				if metaAppID.MatchString(segs[i]) {
					return "meta." + segs[i], true
				}
			}
			return "", false
		},
	}
}

// ratingFrom reads a 0-5 star value from the first number in rule's output.
func ratingFrom(rule Rule[string]) Rule[float64] {
	return func(p *Page) (float64, bool) {
		s, ok := rule(p)
		if !ok {
			return 0, false
		}
		m := firstNumber.FindString(s)
		if m == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || v < 0 || v > 5 {
			return 0, false
		}
		return v, true
	}
}

var firstNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

func pathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
