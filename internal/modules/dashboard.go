package modules

import (
	"github.com/vampirenirmal/bookmarketer/internal/marketing"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

// dashboard rolls up the session without asking the model.
type dashboard struct{}

func (dashboard) Step() workflow.StepID { return workflow.Dashboard }

func (dashboard) Inputs() []workflow.StepID {
	return []workflow.StepID{
		workflow.Landscape, workflow.Audience, workflow.Titles, workflow.Covers,
		workflow.Blurbs, workflow.Testing, workflow.Strategy,
	}
}

func (dashboard) Shape() string { return "dashboard_summary" }

func (dashboard) CheckInputs(Inputs) error { return nil }

func (dashboard) Compute(rc RequestContext) (any, error) {
	up := rc.Upstream
	s := marketing.DashboardSummary{
		GeneratedAt:    rc.Now.UTC(),
		CompletedSteps: make([]string, 0, len(up.Completed)),
		PersonaCount:   len(up.Personas),
		Artifacts:      []marketing.ArtifactScoreboard{},
		StrategyReady:  up.Strategy != nil,
	}
	for _, id := range up.Completed {
		s.CompletedSteps = append(s.CompletedSteps, string(id))
	}
	if up.Analysis != nil {
		s.Genre = up.Analysis.Position.Genre
	}

	if b, ok := scoreboard(marketing.ArtifactTitle, up.Titles, func(f marketing.TitleFeedback) string { return f.Title }); ok {
		s.Artifacts = append(s.Artifacts, b)
	}
	if b, ok := scoreboard(marketing.ArtifactCover, up.Covers, func(f marketing.CoverFeedback) string { return f.Concept }); ok {
		s.Artifacts = append(s.Artifacts, b)
	}
	if b, ok := scoreboard(marketing.ArtifactBlurb, up.Blurbs, func(f marketing.BlurbFeedback) string { return f.Blurb }); ok {
		s.Artifacts = append(s.Artifacts, b)
	}

	for _, t := range up.Tests {
		s.TestWinners = append(s.TestWinners, winnerLine(t))
	}
	return s, nil
}

type scored interface {
	MeanScore() float64
}

// scoreboard averages every round of one artifact type and keeps the first
// best-scoring artifact.
func scoreboard[T scored](kind marketing.ArtifactType, rounds []T, label func(T) string) (marketing.ArtifactScoreboard, bool) {
	if len(rounds) == 0 {
		return marketing.ArtifactScoreboard{}, false
	}
	b := marketing.ArtifactScoreboard{Type: kind, Rounds: len(rounds)}
	var total float64
	for i, r := range rounds {
		score := r.MeanScore()
		total += score
		if i == 0 || score > b.BestScore {
			b.Best = label(r)
			b.BestScore = score
		}
	}
	b.AverageScore = total / float64(len(rounds))
	return b, true
}
