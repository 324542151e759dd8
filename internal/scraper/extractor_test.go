package scraper

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"vrstore/pkg/models"
)

const steamPage = `<!DOCTYPE html>
<html><head>
<title>VRChat on Steam</title>
<meta property="og:description" content="Join our growing community as you explore, play, and help craft the future of social VR.">
<link rel="image_src" href="https://cdn.akamai.steamstatic.com/steam/apps/438100/capsule_231x87.jpg">
</head><body>
<div class="apphub_AppIcon"><img src="/steam/apps/438100/icon.jpg"></div>
<div id="appHubAppName" class="apphub_AppName">  VRChat </div>
<div class="dev_row"><div id="developers_list"><a href="https://store.steampowered.com/developer/vrchat">VRChat Inc.</a></div></div>
<div class="user_reviews_summary_row" data-tooltip-html="92% of the 500 user reviews for this game are positive.">Very Positive</div>
<div class="highlight_strip_screenshot"><img src="https://cdn.example.com/ss_1.116x65.jpg" alt="Hub world"></div>
<div class="highlight_strip_screenshot"><img src="https://cdn.example.com/ss_2.116x65.jpg"></div>
<div id="game_area_description" class="game_area_description">
  <h2>About This Game</h2>
  <p>Play and create with millions of people.</p>
</div>
<div class="sysreq_contents"><ul><li><strong>Storage:</strong> 2 GB available space</li></ul></div>
</body></html>`

func TestSteamExtractVRChat(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	u, ex, err := NewRouter().Route("store.steampowered.com/app/438100/VRChat/")
	require.NoError(t, err)
	rec := ex.Extract(steamPage, u)

	rating, ok := rec.Rating.Get()
	require.True(t, ok)
	require.Equal(t, 4.6, rating)

	require.Equal(t, Some("VRChat"), rec.Title)
	require.Equal(t, Some("VRChat Inc."), rec.Developer)
	require.Equal(t, Some("steam.438100"), rec.PackageNameGuess)
	require.Equal(t, Some("https://store.steampowered.com/steam/apps/438100/icon.jpg"), rec.IconURL)
	require.Equal(t, Some(int64(2*1024*1024*1024)), rec.FileSize)
	require.False(t, rec.Version.Set)

	desc, ok := rec.Description.Get()
	require.True(t, ok)
	require.Contains(t, desc, "About This Game")
	require.Contains(t, desc, "Play and create with millions of people.")
	require.Equal(t, Some(desc), rec.ShortDescription)

	require.Equal(t, Default("Games"), rec.Category)
	require.True(t, rec.IsFallback(FieldCategory))

	want := []models.Screenshot{
		{URL: "https://cdn.example.com/ss_1.116x65.jpg", Caption: "Hub world"},
		{URL: "https://cdn.example.com/ss_2.116x65.jpg"},
	}
	if diff := cmp.Diff(want, rec.Screenshots.Value); diff != "" {
		t.Fatalf("screenshots mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, "Steam", rec.SourceStore)
	require.Equal(t, "https://store.steampowered.com/app/438100/VRChat/", rec.SourceURL)
	require.Equal(t, fixed, rec.ScrapedAt)
	require.Equal(t, 0, rec.Rules[FieldTitle])
	require.Equal(t, 0, rec.Rules[FieldDescription])
	require.Equal(t, 1, rec.Rules[FieldScreenshots])
}

func TestMetaExtractRuleOrder(t *testing.T) {
	page := `<html><head>
<title>Beat Saber | Meta Quest</title>
<meta property="og:title" content="Beat Saber on Meta Quest">
<meta property="og:description" content="Slash the beats.">
</head><body>
<h1>Beat Saber</h1>
<img data-testid="app-icon" src="/icons/beat-saber.png">
<a href="/developer/beat-games/">Beat Games</a>
<div data-testid="app-rating-average">4.8</div>
<span>Version</span><span>1.37.0</span>
<span>Space Required</span><span>1.23 GB</span>
</body></html>`
	src := "https://www.meta.com/experiences/beat-saber/2448060205267927/"
	rec := MetaQuest().Extract(page, src)

	require.Equal(t, Some("Beat Saber"), rec.Title)
	require.Equal(t, 2, rec.Rules[FieldTitle])
	require.Equal(t, Some("Beat Games"), rec.Developer)
	require.Equal(t, Some("Slash the beats."), rec.Description)
	require.Equal(t, Some("https://www.meta.com/icons/beat-saber.png"), rec.IconURL)
	require.Equal(t, Some(4.8), rec.Rating)
	require.Equal(t, Some("1.37.0"), rec.Version)
	require.Equal(t, Some(int64(1320702444)), rec.FileSize)
	require.Equal(t, Some("meta.2448060205267927"), rec.PackageNameGuess)
	require.Equal(t, "Meta Quest Store", rec.SourceStore)
}

func TestMetaTitleFallsBackToDocumentTitle(t *testing.T) {
	page := `<html><head><title>Superhot VR | Meta Quest</title></head><body></body></html>`
	rec := MetaQuest().Extract(page, "https://www.oculus.com/experiences/quest/1921533091289407/")
	require.Equal(t, Some("Superhot VR"), rec.Title)
	require.Equal(t, 4, rec.Rules[FieldTitle])
}

func TestSideQuestCategoryFallback(t *testing.T) {
	page := `<html><body>
<h1 class="app-title">Gorilla Tag Mods</h1>
<div class="app-description"><p>First paragraph.</p><p>Second paragraph.</p></div>
</body></html>`
	rec := SideQuest().Extract(page, "https://sidequestvr.com/app/1234/gorilla-tag-mods")

	require.Equal(t, Some("Gorilla Tag Mods"), rec.Title)
	require.Equal(t, Some("sidequest.1234"), rec.PackageNameGuess)
	require.Equal(t, Default("Games"), rec.Category)

	desc, _ := rec.Description.Get()
	require.Contains(t, desc, "First paragraph.")
	require.Contains(t, desc, "Second paragraph.")
	require.NotContains(t, desc, "First paragraph.Second")

	conf := DefaultPolicy().Classify(rec)
	require.Equal(t, TierLow, conf[FieldCategory])

	empty := Merge(models.App{Title: "Gorilla Tag Mods"}, rec, conf, nil)
	require.Equal(t, "Games", empty.Category)

	filled := Merge(models.App{Title: "Gorilla Tag Mods", Category: "Tools"}, rec, conf, nil)
	require.Equal(t, "Tools", filled.Category)
}

func TestExtractEmptyAndMalformedHTML(t *testing.T) {
	for _, page := range []string{"", "<html><body><div><p>unclosed", "not html at all <<<>>>"} {
		for _, ex := range []*Extractor{MetaQuest(), SideQuest(), Steam()} {
			rec := ex.Extract(page, ex.Example)
			require.False(t, rec.Title.Set, "%s %q", ex.ID, page)
			require.False(t, rec.Rating.Set)
			require.False(t, rec.Screenshots.Set)
			require.Equal(t, Default("Games"), rec.Category)
		}
	}
}

func TestScreenshotsCappedAtFive(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><h1>Shots</h1>`)
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, `<div data-testid="app-screenshot"><img src="/shot-%d.jpg"></div>`, i)
	}
	// duplicates do not count toward the cap
	b.WriteString(`<div data-testid="app-screenshot"><img src="/shot-0.jpg"></div></body></html>`)

	rec := SideQuest().Extract(b.String(), "https://sidequestvr.com/app/9/shots")
	shots, ok := rec.Screenshots.Get()
	require.True(t, ok)
	require.Len(t, shots, maxScreenshots)
	require.Equal(t, "https://sidequestvr.com/shot-0.jpg", shots[0].URL)
	require.Equal(t, "https://sidequestvr.com/shot-4.jpg", shots[4].URL)
}

func TestShortDescriptionTruncation(t *testing.T) {
	long := strings.Repeat("é", 650)
	page := `<html><head><meta name="description" content="` + long + `"></head><body></body></html>`
	rec := Steam().Extract(page, "https://store.steampowered.com/app/1/")

	short, ok := rec.ShortDescription.Get()
	require.True(t, ok)
	require.Equal(t, strings.Repeat("é", 500)+"...", short)

	require.Equal(t, "short", shorten("short", 500))
}

func TestWhitespaceOnlyFieldsAreAbsent(t *testing.T) {
	page := `<html><body><div id="appHubAppName">   </div><div id="developers_list"><a> 
	</a></div></body></html>`
	rec := Steam().Extract(page, "https://store.steampowered.com/app/1/")
	require.False(t, rec.Title.Set)
	require.False(t, rec.Developer.Set)
}

func TestPanickingRuleCountsAsMiss(t *testing.T) {
	ex := Steam()
	ex.Title = []Rule[string]{
		func(*Page) (string, bool) { panic("bad selector") },
		textOf("#appHubAppName"),
	}
	rec := ex.Extract(steamPage, ex.Example)
	require.Equal(t, Some("VRChat"), rec.Title)
	require.Equal(t, 1, rec.Rules[FieldTitle])
}

func TestReadabilityExcerptRule(t *testing.T) {
	page := NewPage(`<html><head><title>Moss</title>
<meta name="description" content="A storybook adventure in virtual reality.">
</head><body><article>
<p>Join Quill, a young mouse with dreams of adventure, in a world of magic and danger. Guide her through ancient ruins, forests and castles.</p>
<p>Solve puzzles by reaching into the world, moving pieces of the scenery and taking control of enemies to clear a path for Quill.</p>
<p>Face the serpent Sarffog and his army in real-time combat, and uncover the secrets of the Moonstone kingdom along the way.</p>
</article></body></html>`,
		"https://sidequestvr.com/app/77/moss")

	got, ok := readabilityExcerpt()(page)
	require.True(t, ok)
	require.NotEmpty(t, got)

	_, ok = readabilityExcerpt()(NewPage("   ", "https://sidequestvr.com/app/77/moss"))
	require.False(t, ok)
}
