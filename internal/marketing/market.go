package marketing

// Positioning bounds shared by every matrix axis.
const (
	MinAxis = 1
	MaxAxis = 10
)

// MarketAnalysis is the landscape record: position and trends come from a
// single model answer.
type MarketAnalysis struct {
	Position MarketPosition `json:"position"`
	Trends   TrendAnalysis  `json:"trends"`
	Profile  *BookProfile   `json:"book_profile,omitempty"`
}

type MarketPosition struct {
	Genre               string            `json:"genre" validate:"required"`
	SubGenres           []string          `json:"sub_genres"`
	CompetitorTitles    []CompetitorTitle `json:"competitor_titles" validate:"dive"`
	UniqueSellingPoints []string          `json:"unique_selling_points"`
	TargetNiches        []string          `json:"target_niches"`
	Positioning         PositioningMatrix `json:"positioning"`
}

type CompetitorTitle struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author"`
	Reason string `json:"reason"`
}

// PositioningMatrix scores the book on four axes, each in [MinAxis, MaxAxis].
type PositioningMatrix struct {
	Tone               int `json:"tone" validate:"min=1,max=10"`
	Complexity         int `json:"complexity" validate:"min=1,max=10"`
	Pacing             int `json:"pacing" validate:"min=1,max=10"`
	EmotionalIntensity int `json:"emotional_intensity" validate:"min=1,max=10"`
}

type TrendAnalysis struct {
	GeneralTrends []string `json:"general_trends"`
	BookTrends    []string `json:"book_trends"`
	MarketGaps    []string `json:"market_gaps"`
	Opportunities []string `json:"opportunities"`
}

// BookProfile is optional book metadata the landscape step may infer.
type BookProfile struct {
	Themes         []string `json:"themes"`
	CharacterTypes []string `json:"character_types"`
	Setting        string   `json:"setting"`
	NarrativeStyle string   `json:"narrative_style"`
}
