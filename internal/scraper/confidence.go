package scraper

// Tier is a qualitative reliability label for a scraped field.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// ConfidenceMap holds one tier per present field of a ScrapedApp.
type ConfidenceMap map[Field]Tier

// Policy assigns tiers by field identity. It is plain data: adding a field to
// Tiers changes classification and default merge decisions without touching
// the merge engine.
type Policy struct {
	Tiers map[Field]Tier
	// Default applies to present fields that Tiers does not list.
	Default Tier
}

// DefaultPolicy returns a fresh copy of the built-in tier table.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: map[Field]Tier{
			FieldTitle:            TierHigh,
			FieldDeveloper:        TierHigh,
			FieldIconURL:          TierHigh,
			FieldDescription:      TierMedium,
			FieldShortDescription: TierMedium,
			FieldCategory:         TierMedium,
			FieldPackageNameGuess: TierLow,
			FieldVersion:          TierLow,
		},
		Default: TierLow,
	}
}

// Classify returns exactly one tier for every present field of rec and none
// for absent fields. Fallback values are always low.
func (p Policy) Classify(rec *ScrapedApp) ConfidenceMap {
	out := make(ConfidenceMap)
	for _, f := range rec.Present() {
		switch {
		case rec.IsFallback(f):
			out[f] = TierLow
		case p.Tiers[f] != "":
			out[f] = p.Tiers[f]
		case p.Default != "":
			out[f] = p.Default
		default:
			out[f] = TierLow
		}
	}
	return out
}

// MergeStrategy is the advice attached to every successful scrape.
type MergeStrategy struct {
	Recommendations map[Field]Decision `json:"recommendations"`
	Confidence      ConfidenceMap      `json:"confidence"`
	// Review lists low-confidence fields worth a human look, in Fields order.
	Review []Field `json:"review"`
}

// Recommend derives the default decision for every classified field.
func Recommend(confidence ConfidenceMap) MergeStrategy {
	ms := MergeStrategy{
		Recommendations: make(map[Field]Decision, len(confidence)),
		Confidence:      confidence,
		Review:          []Field{},
	}
	for _, f := range Fields {
		tier, ok := confidence[f]
		if !ok {
			continue
		}
		ms.Recommendations[f] = DefaultDecision(tier)
		if tier == TierLow {
			ms.Review = append(ms.Review, f)
		}
	}
	return ms
}
