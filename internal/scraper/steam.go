package scraper

import (
	"net/url"
	"regexp"
	"strconv"

	"vrstore/pkg/models"
)

var (
	steamReviews = regexp.MustCompile(`(?i)(\d{1,3})%\s+of\s+the\s+[\d,]+\s+user\s+reviews`)
	steamStorage = regexp.MustCompile(`(?is)(?:Storage|Hard Drive|Hard Disk Space)\s*:?\s*(?:</[^>]+>)?\s*([\d.,]+\s*[KMG]?B)\b`)
	steamAppPath = regexp.MustCompile(`^/app/(\d+)`)
)

// Steam extracts apps from store.steampowered.com.
func Steam() *Extractor {
	return &Extractor{
		ID:      StoreSteam,
		Name:    "Steam",
		Example: "https://store.steampowered.com/app/438100/VRChat/",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^https?://store\.steampowered\.com/app/`),
		},
		FallbackCategory: "Games",

		Title: []Rule[string]{
			textOf(`#appHubAppName`),
			textOf(`.apphub_AppName`),
			metaContent("og:title"),
			titleWithout(" on Steam"),
		},
		Developer: []Rule[string]{
			textOf(`#developers_list a`),
			textOf(`.dev_row a[href*="developer"]`),
			textOf(`.dev_row a`),
		},
		Description: []Rule[string]{
			blockOf(`#game_area_description`),
			textOf(`.game_description_snippet`),
			metaContent("og:description"),
			metaContent("description"),
			readabilityExcerpt(),
		},
		Category: []Rule[string]{
			textOf(`#genresAndManufacturer a[href*="/genre/"]`),
			textOf(`.details_block a[href*="/genre/"]`),
		},
		IconURL: []Rule[string]{
			urlAttrOf(`.apphub_AppIcon img`, "src"),
			urlAttrOf(`link[rel="image_src"]`, "href"),
			urlAttrOf(`img.game_header_image_full`, "src"),
			func(p *Page) (string, bool) {
				v, ok := metaContent("og:image")(p)
				return p.Resolve(v), ok
			},
		},
		Screenshots: []Rule[[]models.Screenshot]{
			screenshotsOf(`a.highlight_screenshot_link`, "href"),
			screenshotsOf(`.highlight_strip_screenshot img`, "src"),
		},
		Rating: []Rule[float64]{
			steamPercentRating(),
		},
		FileSize: []Rule[int64]{
			sizeIn(regexText(steamStorage)),
		},
		PackageName: func(u *url.URL) (string, bool) {
			m := steamAppPath.FindStringSubmatch(u.Path)
			if m == nil {
				return "", false
			}
			return "steam." + m[1], true
		},
	}
}

// steamPercentRating rescales "92% of the 500 user reviews" to a 0-5 value.
func steamPercentRating() Rule[float64] {
	return func(p *Page) (float64, bool) {
		m := steamReviews.FindStringSubmatch(p.HTML)
		if m == nil {
			return 0, false
		}
		pct, err := strconv.Atoi(m[1])
		if err != nil || pct > 100 {
			return 0, false
		}
		return float64(pct) / 20, true
	}
}
