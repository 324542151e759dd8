package scraper

import (
	"net/url"
	"regexp"

	"vrstore/pkg/models"
)

var (
	sideQuestVersion = regexp.MustCompile(`(?is)Version\s*(?:</[^>]+>\s*<[^>]+>)*\s*:?\s*v?(\d+(?:\.\d+)+[^<\s]*)`)
	sideQuestSize    = regexp.MustCompile(`(?is)(?:File Size|Size|Download)\s*(?:</[^>]+>\s*<[^>]+>)*\s*:?\s*([\d.,]+\s*[KMG]?B)\b`)
	sideQuestAppPath = regexp.MustCompile(`^/app/(\d+)`)
)

// SideQuest extracts apps from sidequestvr.com.
func SideQuest() *Extractor {
	return &Extractor{
		ID:      StoreSideQuest,
		Name:    "SideQuest",
		Example: "https://sidequestvr.com/app/1234/example-app",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://(?:www\.)?sidequestvr\.com/app/`),
			regexp.MustCompile(`(?i)^https?://(?:www\.)?sidequest\.com/app/`),
		},
		FallbackCategory: "Games",

		Title: []Rule[string]{
			textOf(`[data-testid="app-title"]`),
			textOf(`.app-title, [class*="app-title"], [class*="AppTitle"]`),
			textOf("h1"),
			metaContent("og:title"),
			titleWithout(" - SideQuest", " | SideQuest"),
		},
		Developer: []Rule[string]{
			textOf(`[data-testid="app-developer"]`),
			textOf(`.app-developer, [class*="developer-name"]`),
			textOf(`a[href*="/user/"]`),
		},
		Description: []Rule[string]{
			blockOf(`[data-testid="app-description"]`),
			blockOf(`.app-description, [class*="app-description"]`),
			metaContent("og:description"),
			metaContent("description"),
			readabilityExcerpt(),
		},
		Category: []Rule[string]{
			textOf(`[data-testid="app-category"]`),
			textOf(`.app-tags a, [class*="app-category"]`),
		},
		Version: []Rule[string]{
			textOf(`[data-testid="app-version"]`),
			regexText(sideQuestVersion),
		},
		IconURL: []Rule[string]{
			urlAttrOf(`img[data-testid="app-icon"]`, "src"),
			urlAttrOf(`img.app-icon, [class*="app-icon"] img`, "src"),
			func(p *Page) (string, bool) {
				v, ok := metaContent("og:image")(p)
				return p.Resolve(v), ok
			},
		},
		Screenshots: []Rule[[]models.Screenshot]{
			screenshotsOf(`[data-testid="app-screenshot"] img, img[data-testid="app-screenshot"]`, "src"),
			screenshotsOf(`.app-screenshots img, [class*="screenshot"] img`, "src"),
		},
		Rating: []Rule[float64]{
			ratingFrom(textOf(`[data-testid="app-rating"]`)),
			ratingFrom(textOf(`.app-rating, [class*="rating-value"]`)),
		},
		FileSize: []Rule[int64]{
			sizeIn(textOf(`[data-testid="app-size"]`)),
			sizeIn(regexText(sideQuestSize)),
		},
		PackageName: func(u *url.URL) (string, bool) {
			m := sideQuestAppPath.FindStringSubmatch(u.Path)
			if m == nil {
				return "", false
			}
			return "sidequest." + m[1], true
		},
	}
}
