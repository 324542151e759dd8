package scraper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"vrstore/pkg/models"
)

func TestScrapedAppJSONKeepsFallback(t *testing.T) {
	rec := SideQuest().Extract(sideQuestNoCategory, sideQuestURL)
	require.True(t, rec.IsFallback(FieldCategory))

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	require.Contains(t, string(b), `"fallbacks":["category"]`)
	require.Contains(t, string(b), `"category":"Games"`)

	var back ScrapedApp
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, Default("Games"), back.Category)
	require.Equal(t, TierLow, DefaultPolicy().Classify(&back)[FieldCategory])
	require.Equal(t, rec.Present(), back.Present())
}

func TestScrapedAppJSONOmitsEmptyFallbacks(t *testing.T) {
	b, err := json.Marshal(&ScrapedApp{Title: Some("Beat Saber")})
	require.NoError(t, err)
	require.NotContains(t, string(b), "fallbacks")
}

func TestScrapedAppJSONNormalizesValues(t *testing.T) {
	var rec ScrapedApp
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": " \t ",
		"developer": "  Beat Games ",
		"version": "",
		"category": "Games",
		"screenshots": [{"url": " "}, {"url": "a"}, {"url": "b"}, {"url": "c"}, {"url": "d"}, {"url": "e"}, {"url": "f"}],
		"rating": -1,
		"fileSize": -20,
		"fallbacks": ["category", "version", "nonsense"]
	}`), &rec))

	require.False(t, rec.Title.Set)
	require.False(t, rec.Version.Set)
	require.Equal(t, Some("Beat Games"), rec.Developer)
	require.Equal(t, Default("Games"), rec.Category)
	require.False(t, rec.Rating.Set)
	require.False(t, rec.FileSize.Set)

	shots, ok := rec.Screenshots.Get()
	require.True(t, ok)
	require.Equal(t, []models.Screenshot{{URL: "a"}, {URL: "b"}, {URL: "c"}, {URL: "d"}, {URL: "e"}}, shots)

	var empty ScrapedApp
	require.NoError(t, json.Unmarshal([]byte(`{"screenshots": []}`), &empty))
	require.Empty(t, empty.Present())
}
