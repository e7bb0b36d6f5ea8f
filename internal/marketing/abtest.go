package marketing

// ABTestResult is a simulated head-to-head between two options.
type ABTestResult struct {
	TestType        ArtifactType     `json:"test_type" validate:"oneof=title cover blurb"`
	OptionA         string           `json:"option_a" validate:"required"`
	OptionB         string           `json:"option_b" validate:"required"`
	Winner          string           `json:"winner" validate:"oneof=A B"`
	Confidence      float64          `json:"confidence" validate:"min=0,max=100"`
	Metrics         FunnelMetrics    `json:"metrics"`
	Reasoning       string           `json:"reasoning"`
	PersonaInsights []PersonaInsight `json:"persona_insights" validate:"dive"`
}

// FunnelMetrics are percentages in [0,100].
type FunnelMetrics struct {
	ClickThroughRate float64 `json:"click_through_rate" validate:"min=0,max=100"`
	EngagementRate   float64 `json:"engagement_rate" validate:"min=0,max=100"`
	ConversionRate   float64 `json:"conversion_rate" validate:"min=0,max=100"`
}

type PersonaInsight struct {
	PersonaID       string `json:"persona_id" validate:"required"`
	PreferredOption string `json:"preferred_option" validate:"oneof=A B"`
	Insight         string `json:"insight"`
}

// WinningOption returns the text of the winning option.
func (r ABTestResult) WinningOption() string {
	if r.Winner == "B" {
		return r.OptionB
	}
	return r.OptionA
}

func (r ABTestResult) PersonaRefs() []string {
	refs := make([]string, len(r.PersonaInsights))
	for i, in := range r.PersonaInsights {
		refs[i] = in.PersonaID
	}
	return refs
}
