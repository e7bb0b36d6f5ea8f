package marketing

// ArtifactType names the kind of artifact a feedback round or A/B test covers.
type ArtifactType string

const (
	ArtifactTitle ArtifactType = "title"
	ArtifactCover ArtifactType = "cover"
	ArtifactBlurb ArtifactType = "blurb"
)

// FeedbackSummary aggregates all persona assessments of one artifact.
type FeedbackSummary struct {
	OverallScore   float64  `json:"overall_score" validate:"min=0,max=10"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	Recommendation string   `json:"recommendation"`
}

type TitleFeedback struct {
	Title       string            `json:"title" validate:"required"`
	Assessments []TitleAssessment `json:"assessments" validate:"min=1,dive"`
	Summary     FeedbackSummary   `json:"summary"`
}

type TitleAssessment struct {
	PersonaID  string `json:"persona_id" validate:"required"`
	Appeal     int    `json:"appeal" validate:"min=1,max=10"`
	Clarity    int    `json:"clarity" validate:"min=1,max=10"`
	GenreFit   int    `json:"genre_fit" validate:"min=1,max=10"`
	Commentary string `json:"commentary"`
}

type CoverFeedback struct {
	Concept     string            `json:"concept" validate:"required"`
	Assessments []CoverAssessment `json:"assessments" validate:"min=1,dive"`
	Summary     FeedbackSummary   `json:"summary"`
}

type CoverAssessment struct {
	PersonaID    string `json:"persona_id" validate:"required"`
	VisualAppeal int    `json:"visual_appeal" validate:"min=1,max=10"`
	GenreSignal  int    `json:"genre_signal" validate:"min=1,max=10"`
	Memorability int    `json:"memorability" validate:"min=1,max=10"`
	Commentary   string `json:"commentary"`
}

type BlurbFeedback struct {
	Blurb       string            `json:"blurb" validate:"required"`
	Assessments []BlurbAssessment `json:"assessments" validate:"min=1,dive"`
	Summary     FeedbackSummary   `json:"summary"`
}

type BlurbAssessment struct {
	PersonaID  string `json:"persona_id" validate:"required"`
	Hook       int    `json:"hook" validate:"min=1,max=10"`
	Clarity    int    `json:"clarity" validate:"min=1,max=10"`
	Intrigue   int    `json:"intrigue" validate:"min=1,max=10"`
	Commentary string `json:"commentary"`
}

// PersonaRefs returns the persona ids a record refers to.
func (f TitleFeedback) PersonaRefs() []string {
	refs := make([]string, len(f.Assessments))
	for i, a := range f.Assessments {
		refs[i] = a.PersonaID
	}
	return refs
}

func (f CoverFeedback) PersonaRefs() []string {
	refs := make([]string, len(f.Assessments))
	for i, a := range f.Assessments {
		refs[i] = a.PersonaID
	}
	return refs
}

func (f BlurbFeedback) PersonaRefs() []string {
	refs := make([]string, len(f.Assessments))
	for i, a := range f.Assessments {
		refs[i] = a.PersonaID
	}
	return refs
}

// MeanScore averages every sub-score across assessments, on the 1-10 scale.
func (f TitleFeedback) MeanScore() float64 {
	var sum, n int
	for _, a := range f.Assessments {
		sum += a.Appeal + a.Clarity + a.GenreFit
		n += 3
	}
	return mean(sum, n)
}

func (f CoverFeedback) MeanScore() float64 {
	var sum, n int
	for _, a := range f.Assessments {
		sum += a.VisualAppeal + a.GenreSignal + a.Memorability
		n += 3
	}
	return mean(sum, n)
}

func (f BlurbFeedback) MeanScore() float64 {
	var sum, n int
	for _, a := range f.Assessments {
		sum += a.Hook + a.Clarity + a.Intrigue
		n += 3
	}
	return mean(sum, n)
}

func mean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
