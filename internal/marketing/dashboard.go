package marketing

import "time"

// DashboardSummary is computed locally from everything a session has produced.
type DashboardSummary struct {
	GeneratedAt    time.Time            `json:"generated_at"`
	CompletedSteps []string             `json:"completed_steps"`
	Genre          string               `json:"genre,omitempty"`
	PersonaCount   int                  `json:"persona_count"`
	Artifacts      []ArtifactScoreboard `json:"artifacts"`
	TestWinners    []string             `json:"test_winners,omitempty"`
	StrategyReady  bool                 `json:"strategy_ready"`
}

// ArtifactScoreboard rolls up all feedback rounds of one artifact type.
type ArtifactScoreboard struct {
	Type         ArtifactType `json:"type"`
	Rounds       int          `json:"rounds"`
	AverageScore float64      `json:"average_score"`
	Best         string       `json:"best,omitempty"`
	BestScore    float64      `json:"best_score,omitempty"`
}
