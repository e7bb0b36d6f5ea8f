package modules

import (
	"fmt"
	"strings"

	"github.com/vampirenirmal/bookmarketer/internal/extract"
	"github.com/vampirenirmal/bookmarketer/internal/marketing"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

var templateNames = []string{"landscape", "audience", "feedback", "testing", "strategy"}

// modelStep implements Adapter for one record type.
type modelStep[T any] struct {
	step     workflow.StepID
	inputs   []workflow.StepID
	shape    string
	template string
	prompts  *PromptCache

	checkInputs func(Inputs) error
	// data adds step specific fields to the template data.
	data func(rc RequestContext, d *promptData) error
	// check runs after tag validation with the request that produced rec.
	check func(rc RequestContext, rec *T) error
}

func (m *modelStep[T]) Step() workflow.StepID { return m.step }

func (m *modelStep[T]) Inputs() []workflow.StepID {
	return append([]workflow.StepID(nil), m.inputs...)
}

func (m *modelStep[T]) Shape() string { return m.shape }

func (m *modelStep[T]) CheckInputs(in Inputs) error {
	if m.checkInputs == nil {
		return nil
	}
	return m.checkInputs(in)
}

func (m *modelStep[T]) BuildRequest(rc RequestContext) (string, error) {
	if err := m.CheckInputs(rc.Inputs); err != nil {
		return "", err
	}
	d := promptData{RequestContext: rc, Retry: rc.Attempt > 0}
	if m.data != nil {
		if err := m.data(rc, &d); err != nil {
			return "", err
		}
	}
	return m.prompts.Render(m.template, d)
}

func (m *modelStep[T]) Extract(e *extract.Engine, raw string, rc RequestContext) (any, extract.Method, error) {
	shape := extract.Shape[T]{Name: m.shape}
	if m.check != nil {
		shape.Check = func(rec *T) error { return m.check(rc, rec) }
	}
	rec, method, err := extract.Extract(e, raw, shape)
	if err != nil {
		return nil, method, err
	}
	return rec, method, nil
}

// promptData is the value templates are executed against.
type promptData struct {
	RequestContext
	Retry       bool
	Count       int
	Kind        marketing.ArtifactType
	Field       string
	Criteria    []string
	Personas    []marketing.ReaderPersona
	PriorScores []string
}

func modelAdapters(prompts *PromptCache) []Adapter {
	return []Adapter{
		&modelStep[marketing.MarketAnalysis]{
			step:     workflow.Landscape,
			shape:    "market_analysis",
			template: "landscape",
			prompts:  prompts,
		},
		&modelStep[marketing.PersonaSet]{
			step:        workflow.Audience,
			inputs:      []workflow.StepID{workflow.Landscape, workflow.Audience},
			shape:       "persona_set",
			template:    "audience",
			prompts:     prompts,
			checkInputs: checkCount,
			data: func(rc RequestContext, d *promptData) error {
				d.Count = personaCount(rc.Inputs)
				return nil
			},
		},
		&modelStep[marketing.TitleFeedback]{
			step:        workflow.Titles,
			inputs:      []workflow.StepID{workflow.Landscape, workflow.Audience},
			shape:       "title_feedback",
			template:    "feedback",
			prompts:     prompts,
			checkInputs: requireArtifact("title"),
			data:        feedbackData(marketing.ArtifactTitle, "title", "appeal", "clarity", "genre_fit"),
			check: func(rc RequestContext, rec *marketing.TitleFeedback) error {
				return checkRefs(rc, *rec, "assessments")
			},
		},
		&modelStep[marketing.CoverFeedback]{
			step:        workflow.Covers,
			inputs:      []workflow.StepID{workflow.Landscape, workflow.Audience},
			shape:       "cover_feedback",
			template:    "feedback",
			prompts:     prompts,
			checkInputs: requireArtifact("cover concept"),
			data:        feedbackData(marketing.ArtifactCover, "concept", "visual_appeal", "genre_signal", "memorability"),
			check: func(rc RequestContext, rec *marketing.CoverFeedback) error {
				return checkRefs(rc, *rec, "assessments")
			},
		},
		&modelStep[marketing.BlurbFeedback]{
			step:        workflow.Blurbs,
			inputs:      []workflow.StepID{workflow.Landscape, workflow.Audience},
			shape:       "blurb_feedback",
			template:    "feedback",
			prompts:     prompts,
			checkInputs: requireArtifact("blurb"),
			data:        feedbackData(marketing.ArtifactBlurb, "blurb", "hook", "clarity", "intrigue"),
			check: func(rc RequestContext, rec *marketing.BlurbFeedback) error {
				return checkRefs(rc, *rec, "assessments")
			},
		},
		&modelStep[marketing.ABTestResult]{
			step:        workflow.Testing,
			inputs:      []workflow.StepID{workflow.Audience, workflow.Titles, workflow.Covers, workflow.Blurbs},
			shape:       "ab_test_result",
			template:    "testing",
			prompts:     prompts,
			checkInputs: checkTest,
			data: func(rc RequestContext, d *promptData) error {
				d.Personas = rc.Upstream.Personas
				d.PriorScores = feedbackLines(rc.Upstream, marketing.ArtifactType(rc.Inputs.TestType))
				return nil
			},
			check: func(rc RequestContext, rec *marketing.ABTestResult) error {
				if string(rec.TestType) != rc.Inputs.TestType {
					return extract.Violation("test_type", fmt.Sprintf("is %q, requested %q", rec.TestType, rc.Inputs.TestType))
				}
				return checkRefs(rc, *rec, "persona_insights")
			},
		},
		&modelStep[marketing.MarketingStrategy]{
			step:     workflow.Strategy,
			inputs:   []workflow.StepID{workflow.Landscape, workflow.Audience, workflow.Titles, workflow.Covers, workflow.Blurbs, workflow.Testing},
			shape:    "marketing_strategy",
			template: "strategy",
			prompts:  prompts,
			data: func(rc RequestContext, d *promptData) error {
				d.Personas = rc.Upstream.Personas
				d.PriorScores = append(feedbackLines(rc.Upstream, ""), testLines(rc.Upstream.Tests)...)
				return nil
			},
			check: func(rc RequestContext, rec *marketing.MarketingStrategy) error {
				return checkRefs(rc, *rec, "angles")
			},
		},
	}
}

func personaCount(in Inputs) int {
	if in.Count == 0 {
		return DefaultPersonaCount
	}
	return in.Count
}

func checkCount(in Inputs) error {
	if in.Count < 0 || in.Count > MaxPersonaCount {
		return inputError("persona count %d outside 1-%d", in.Count, MaxPersonaCount)
	}
	return nil
}

func requireArtifact(what string) func(Inputs) error {
	return func(in Inputs) error {
		if strings.TrimSpace(in.Artifact) == "" {
			return inputError("a %s is required", what)
		}
		return nil
	}
}

func checkTest(in Inputs) error {
	switch marketing.ArtifactType(in.TestType) {
	case marketing.ArtifactTitle, marketing.ArtifactCover, marketing.ArtifactBlurb:
	default:
		return inputError("test type %q must be title, cover or blurb", in.TestType)
	}
	a, b := strings.TrimSpace(in.OptionA), strings.TrimSpace(in.OptionB)
	if a == "" || b == "" {
		return inputError("both options are required")
	}
	if a == b {
		return inputError("options must differ")
	}
	return nil
}

func feedbackData(kind marketing.ArtifactType, field string, criteria ...string) func(RequestContext, *promptData) error {
	return func(rc RequestContext, d *promptData) error {
		personas, err := selectPersonas(rc)
		if err != nil {
			return err
		}
		d.Kind = kind
		d.Field = field
		d.Criteria = criteria
		d.Personas = personas
		return nil
	}
}

// selectPersonas returns the requested personas, or the whole pool when the
// request names none.
func selectPersonas(rc RequestContext) ([]marketing.ReaderPersona, error) {
	pool := rc.Upstream.Personas
	if len(rc.Inputs.PersonaIDs) == 0 {
		return pool, nil
	}
	byID := make(map[string]marketing.ReaderPersona, len(pool))
	for _, p := range pool {
		byID[p.ID] = p
	}
	out := make([]marketing.ReaderPersona, 0, len(rc.Inputs.PersonaIDs))
	for _, id := range rc.Inputs.PersonaIDs {
		p, ok := byID[id]
		if !ok {
			return nil, inputError("unknown persona %q", id)
		}
		out = append(out, p)
	}
	return out, nil
}

func checkRefs(rc RequestContext, rec marketing.PersonaReferrer, field string) error {
	known := make(map[string]bool, len(rc.Upstream.Personas))
	for _, p := range rc.Upstream.Personas {
		known[p.ID] = true
	}
	if unknown := marketing.UnknownRefs(rec, known); len(unknown) > 0 {
		return extract.Violation(field, "reference unknown personas "+strings.Join(unknown, ", "))
	}
	return nil
}

// feedbackLines summarises prior feedback rounds, optionally for one kind.
func feedbackLines(up Upstream, only marketing.ArtifactType) []string {
	var lines []string
	add := func(kind marketing.ArtifactType, label string, score float64) {
		if only == "" || only == kind {
			lines = append(lines, fmt.Sprintf("%s %q scored %.1f/10", kind, label, score))
		}
	}
	for _, f := range up.Titles {
		add(marketing.ArtifactTitle, f.Title, f.MeanScore())
	}
	for _, f := range up.Covers {
		add(marketing.ArtifactCover, f.Concept, f.MeanScore())
	}
	for _, f := range up.Blurbs {
		add(marketing.ArtifactBlurb, firstLine(f.Blurb), f.MeanScore())
	}
	return lines
}

func testLines(tests []marketing.ABTestResult) []string {
	lines := make([]string, 0, len(tests))
	for _, t := range tests {
		lines = append(lines, winnerLine(t))
	}
	return lines
}

func winnerLine(t marketing.ABTestResult) string {
	return fmt.Sprintf("%s test: %q won with %.0f%% confidence", t.TestType, firstLine(t.WinningOption()), t.Confidence)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
