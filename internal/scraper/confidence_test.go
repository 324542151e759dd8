package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vrstore/pkg/models"
)

func fullRecord() *ScrapedApp {
	return &ScrapedApp{
		Title:            Some("Title"),
		Developer:        Some("Dev"),
		PackageNameGuess: Some("steam.1"),
		Description:      Some("Desc"),
		ShortDescription: Some("Desc"),
		Category:         Some("Action"),
		Version:          Some("1.0"),
		IconURL:          Some("https://x/icon.png"),
		Screenshots:      Some([]models.Screenshot{{URL: "https://x/1.png"}}),
		Rating:           Some(4.5),
		FileSize:         Some(int64(1024)),
	}
}

func TestClassifyTiers(t *testing.T) {
	conf := DefaultPolicy().Classify(fullRecord())
	require.Equal(t, ConfidenceMap{
		FieldTitle:            TierHigh,
		FieldDeveloper:        TierHigh,
		FieldIconURL:          TierHigh,
		FieldDescription:      TierMedium,
		FieldShortDescription: TierMedium,
		FieldCategory:         TierMedium,
		FieldPackageNameGuess: TierLow,
		FieldVersion:          TierLow,
		FieldScreenshots:      TierLow,
		FieldRating:           TierLow,
		FieldFileSize:         TierLow,
	}, conf)
}

func TestClassifyOneEntryPerPresentField(t *testing.T) {
	recs := []*ScrapedApp{
		{},
		{Title: Some("Only title")},
		{Category: Default("Games"), Rating: Some(3.0)},
		fullRecord(),
		Steam().Extract(steamPage, Steam().Example),
	}
	p := DefaultPolicy()
	for _, rec := range recs {
		conf := p.Classify(rec)
		require.Len(t, conf, len(rec.Present()))
		for _, f := range Fields {
			_, ok := conf[f]
			require.Equal(t, rec.Has(f), ok, f)
		}
	}
}

func TestClassifyFallbackIsLow(t *testing.T) {
	conf := DefaultPolicy().Classify(&ScrapedApp{Category: Default("Games")})
	require.Equal(t, ConfidenceMap{FieldCategory: TierLow}, conf)
}

func TestPolicyIsData(t *testing.T) {
	p := DefaultPolicy()
	p.Tiers[FieldRating] = TierHigh
	require.Equal(t, TierHigh, p.Classify(&ScrapedApp{Rating: Some(4.0)})[FieldRating])

	// a fresh default is unaffected
	require.Equal(t, TierLow, DefaultPolicy().Classify(&ScrapedApp{Rating: Some(4.0)})[FieldRating])

	existing := models.App{Rating: 2}
	merged := Merge(existing, &ScrapedApp{Rating: Some(4.0)}, p.Classify(&ScrapedApp{Rating: Some(4.0)}), nil)
	require.Equal(t, 4.0, merged.Rating)
}

func TestRecommend(t *testing.T) {
	ms := Recommend(DefaultPolicy().Classify(fullRecord()))
	require.Equal(t, DecisionOverwrite, ms.Recommendations[FieldTitle])
	require.Equal(t, DecisionOverwrite, ms.Recommendations[FieldDescription])
	require.Equal(t, DecisionSuggest, ms.Recommendations[FieldVersion])
	require.Equal(t, DecisionSuggest, ms.Recommendations[FieldScreenshots])
	require.Len(t, ms.Recommendations, len(Fields))
	require.Equal(t, []Field{
		FieldPackageNameGuess, FieldVersion, FieldScreenshots, FieldRating, FieldFileSize,
	}, ms.Review)
}
