package marketing

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"High", LevelHigh, false},
		{" medium ", LevelMedium, false},
		{"MED", LevelMedium, false},
		{"low", LevelLow, false},
		{"extreme", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, %v", tt.in, got, err)
		}
	}
	if !(LevelLow.Rank() < LevelMedium.Rank() && LevelMedium.Rank() < LevelHigh.Rank()) {
		t.Error("levels are not ordered")
	}
	if Level("Huge").Rank() != 0 {
		t.Error("unknown level should rank 0")
	}
}

func TestLevelUnmarshalJSON(t *testing.T) {
	var ch ChannelRecommendation
	if err := json.Unmarshal([]byte(`{"channel":"Podcasts","reach":"high","cost":"LOW","difficulty":"Enormous"}`), &ch); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ch.Reach != LevelHigh || ch.Cost != LevelLow {
		t.Errorf("levels = %q %q", ch.Reach, ch.Cost)
	}
	if ch.Difficulty != "Enormous" {
		t.Errorf("unknown level rewritten to %q", ch.Difficulty)
	}
	if err := json.Unmarshal([]byte(`{"reach": 3}`), &ch); err == nil {
		t.Error("numeric level should fail")
	}
}

func TestNewBookContext(t *testing.T) {
	b := NewBookContext("  Tidewater ", "The storm came\nin off the water.")
	if b.Title != "Tidewater" || b.WordCount != 7 {
		t.Errorf("book = %+v", b)
	}

	tests := []struct {
		limit int
		want  string
	}{
		{0, "The storm came\nin off the water."},
		{100, "The storm came\nin off the water."},
		{12, "The storm"},
		{3, "The"},
	}
	for _, tt := range tests {
		if got := b.Excerpt(tt.limit); got != tt.want {
			t.Errorf("Excerpt(%d) = %q, want %q", tt.limit, got, tt.want)
		}
	}
}

func TestWithProfileCopies(t *testing.T) {
	profile := &BookProfile{Themes: []string{"grief"}, Setting: "harbor"}
	b := NewBookContext("Tidewater", "text").WithProfile("Literary Fiction", profile)
	profile.Themes[0] = "changed"

	want := BookMetadata{Genre: "Literary Fiction", Themes: []string{"grief"}, Setting: "harbor"}
	if diff := cmp.Diff(want, b.Metadata); diff != "" {
		t.Errorf("metadata (-want +got):\n%s", diff)
	}
	if got := NewBookContext("x", "y").WithProfile("Thriller", nil).Metadata; got.Genre != "Thriller" || got.Themes != nil {
		t.Errorf("nil profile metadata = %+v", got)
	}
}

func TestMeanScore(t *testing.T) {
	title := TitleFeedback{Assessments: []TitleAssessment{
		{PersonaID: "a", Appeal: 8, Clarity: 7, GenreFit: 9},
		{PersonaID: "b", Appeal: 6, Clarity: 6, GenreFit: 6},
	}}
	if got := title.MeanScore(); got != 7 {
		t.Errorf("title mean = %v", got)
	}
	cover := CoverFeedback{Assessments: []CoverAssessment{{PersonaID: "a", VisualAppeal: 10, GenreSignal: 5, Memorability: 6}}}
	if got := cover.MeanScore(); got != 7 {
		t.Errorf("cover mean = %v", got)
	}
	if got := (BlurbFeedback{}).MeanScore(); got != 0 {
		t.Errorf("empty blurb mean = %v", got)
	}
}

func TestUnknownRefs(t *testing.T) {
	known := map[string]bool{"persona-1": true, "persona-2": true}
	tests := []struct {
		name string
		rec  PersonaReferrer
		want []string
	}{
		{"title", TitleFeedback{Assessments: []TitleAssessment{{PersonaID: "persona-1"}, {PersonaID: "ghost"}}}, []string{"ghost"}},
		{"blurb all known", BlurbFeedback{Assessments: []BlurbAssessment{{PersonaID: "persona-2"}}}, nil},
		{"ab test", ABTestResult{PersonaInsights: []PersonaInsight{{PersonaID: "x"}, {PersonaID: "y"}}}, []string{"x", "y"}},
		{"strategy", MarketingStrategy{Angles: []MarketingAngle{
			{TargetPersonas: []string{"persona-1", "persona-9"}},
			{TargetPersonas: []string{"persona-2"}},
		}}, []string{"persona-9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, UnknownRefs(tt.rec, known)); diff != "" {
				t.Errorf("UnknownRefs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWinningOption(t *testing.T) {
	r := ABTestResult{OptionA: "Tidewater", OptionB: "Undertow", Winner: "B"}
	if got := r.WinningOption(); got != "Undertow" {
		t.Errorf("winner B = %q", got)
	}
	r.Winner = "A"
	if got := r.WinningOption(); got != "Tidewater" {
		t.Errorf("winner A = %q", got)
	}
}
