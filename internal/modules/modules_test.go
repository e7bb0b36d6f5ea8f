package modules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vampirenirmal/bookmarketer/internal/agent"
	"github.com/vampirenirmal/bookmarketer/internal/extract"
	"github.com/vampirenirmal/bookmarketer/internal/marketing"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func testBook() marketing.BookContext {
	return marketing.NewBookContext("Tidewater", "The storm came in off the water the night her grandmother died.")
}

func TestPromptCache(t *testing.T) {
	fsys := fstest.MapFS{
		"greet.tmpl": {Data: []byte(`Hello {{.Name}}{{range .Items}} {{inc 0}}{{.}}{{end}}`)},
		"bad.tmpl":   {Data: []byte(`{{.Name`)},
	}
	pc := NewPromptCache(fsys)

	out, err := pc.Render("greet", map[string]any{"Name": "Ana", "Items": []string{"x"}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Hello Ana 1x" {
		t.Errorf("Render = %q", out)
	}
	if _, err := pc.Render("greet", map[string]any{"Items": nil}); err == nil {
		t.Error("missing key should fail")
	}
	if pc.Len() != 1 {
		t.Errorf("Len = %d, want 1", pc.Len())
	}
	if err := pc.Preload("bad"); err == nil {
		t.Error("Preload(bad) should fail")
	}
	if _, err := pc.Template("absent"); err == nil {
		t.Error("absent template should fail")
	}
}

func TestRegistryCoversCatalog(t *testing.T) {
	r := newRegistry(t)
	for _, id := range workflow.DefaultCatalog().Order() {
		d, ok := r.Descriptor(id)
		if !ok {
			t.Errorf("no adapter for %s", id)
			continue
		}
		if d.Step() != id {
			t.Errorf("adapter for %s reports %s", id, d.Step())
		}
	}
	if _, ok := r.Local(workflow.Dashboard); !ok {
		t.Error("dashboard should be local")
	}
	if _, ok := r.Adapter(workflow.Dashboard); ok {
		t.Error("dashboard should not be model backed")
	}
}

func TestCheckInputs(t *testing.T) {
	r := newRegistry(t)
	tests := []struct {
		name    string
		step    workflow.StepID
		in      Inputs
		wantErr bool
	}{
		{"landscape without focus", workflow.Landscape, Inputs{}, false},
		{"default persona count", workflow.Audience, Inputs{}, false},
		{"max persona count", workflow.Audience, Inputs{Count: 8}, false},
		{"too many personas", workflow.Audience, Inputs{Count: 9}, true},
		{"negative count", workflow.Audience, Inputs{Count: -1}, true},
		{"title", workflow.Titles, Inputs{Artifact: "Tidewater"}, false},
		{"blank title", workflow.Titles, Inputs{Artifact: "  "}, true},
		{"missing cover", workflow.Covers, Inputs{}, true},
		{"test", workflow.Testing, Inputs{TestType: "cover", OptionA: "a", OptionB: "b"}, false},
		{"bad test type", workflow.Testing, Inputs{TestType: "font", OptionA: "a", OptionB: "b"}, true},
		{"same options", workflow.Testing, Inputs{TestType: "title", OptionA: "a", OptionB: "a"}, true},
		{"missing option", workflow.Testing, Inputs{TestType: "title", OptionA: "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := r.Descriptor(tt.step)
			err := d.CheckInputs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckInputs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error %v does not wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestBuildRequest(t *testing.T) {
	r := newRegistry(t)
	a, _ := r.Adapter(workflow.Blurbs)
	rc := RequestContext{
		Step:   workflow.Blurbs,
		Book:   testBook(),
		Inputs: Inputs{Artifact: "Some tides\nbring things back."},
		Upstream: Upstream{Personas: []marketing.ReaderPersona{
			{ID: "persona-1", Name: "Maren"},
			{ID: "persona-2", Name: "Theo"},
		}},
	}

	first, err := a.BuildRequest(rc)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if !strings.HasPrefix(first, agent.StepHeader+"blurbs\n") {
		t.Errorf("request does not start with the step header:\n%s", first)
	}
	if !strings.Contains(first, agent.ArtifactHeader+"Some tides bring things back.\n") {
		t.Errorf("artifact header not folded onto one line:\n%s", first)
	}
	for _, want := range []string{"persona-1: Maren", "persona-2: Theo", `"hook": 1`} {
		if !strings.Contains(first, want) {
			t.Errorf("request missing %q", want)
		}
	}
	if strings.Contains(first, "IMPORTANT") {
		t.Error("first attempt should not carry the retry reminder")
	}

	rc.Attempt = 1
	retry, err := a.BuildRequest(rc)
	if err != nil {
		t.Fatalf("BuildRequest retry: %v", err)
	}
	if retry == first || !strings.Contains(retry, "IMPORTANT") {
		t.Error("retry request should be perturbed")
	}

	rc.Attempt = 0
	rc.Inputs.PersonaIDs = []string{"persona-2"}
	only, err := a.BuildRequest(rc)
	if err != nil {
		t.Fatalf("BuildRequest selection: %v", err)
	}
	if strings.Contains(only, "persona-1") || !strings.Contains(only, "persona-2") {
		t.Errorf("persona selection not applied:\n%s", only)
	}

	rc.Inputs.PersonaIDs = []string{"persona-9"}
	if _, err := a.BuildRequest(rc); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown persona selection error = %v", err)
	}
}

// TestCannedResponsesExtract runs every model step against the mock client
// and checks each answer survives extraction by the expected stage.
func TestCannedResponsesExtract(t *testing.T) {
	r := newRegistry(t)
	engine := extract.NewEngine()
	mock := agent.NewMockClient()
	ctx := context.Background()

	up := Upstream{}
	steps := []struct {
		step   workflow.StepID
		in     Inputs
		method extract.Method
	}{
		{workflow.Landscape, Inputs{Focus: "book clubs"}, extract.MethodFenced},
		{workflow.Audience, Inputs{Count: 3}, extract.MethodBracket},
		{workflow.Titles, Inputs{Artifact: "Tidewater"}, extract.MethodFenced},
		{workflow.Covers, Inputs{Artifact: "A lighthouse in fog"}, extract.MethodFenced},
		{workflow.Blurbs, Inputs{Artifact: "Some tides bring things back."}, extract.MethodFenced},
		{workflow.Testing, Inputs{TestType: "title", OptionA: "Tidewater", OptionB: "The Salt House"}, extract.MethodFenced},
		{workflow.Strategy, Inputs{Goals: "launch in autumn"}, extract.MethodRepair},
	}
	for _, s := range steps {
		a, _ := r.Adapter(s.step)
		rc := RequestContext{Step: s.step, Book: testBook(), Inputs: s.in, Upstream: up}
		prompt, err := a.BuildRequest(rc)
		if err != nil {
			t.Fatalf("%s: BuildRequest: %v", s.step, err)
		}
		raw, err := mock.Ask(ctx, prompt, 1024)
		if err != nil {
			t.Fatalf("%s: Ask: %v", s.step, err)
		}
		rec, method, err := a.Extract(engine, raw, rc)
		if err != nil {
			t.Fatalf("%s: Extract: %v", s.step, err)
		}
		if method != s.method {
			t.Errorf("%s: method = %s, want %s", s.step, method, s.method)
		}

		switch v := rec.(type) {
		case marketing.MarketAnalysis:
			up.Analysis = &v
		case marketing.PersonaSet:
			up.Personas = append(up.Personas, v.Personas...)
		case marketing.TitleFeedback:
			if v.Title != "Tidewater" {
				t.Errorf("title = %q", v.Title)
			}
			up.Titles = append(up.Titles, v)
		case marketing.CoverFeedback:
			up.Covers = append(up.Covers, v)
		case marketing.BlurbFeedback:
			up.Blurbs = append(up.Blurbs, v)
		case marketing.ABTestResult:
			if v.WinningOption() != "Tidewater" {
				t.Errorf("winning option = %q", v.WinningOption())
			}
			up.Tests = append(up.Tests, v)
		case marketing.MarketingStrategy:
			if v.Channels[0].Reach != marketing.LevelMedium {
				t.Errorf("reach = %q, want normalised Medium", v.Channels[0].Reach)
			}
		default:
			t.Fatalf("%s: unexpected record %T", s.step, rec)
		}
	}
	if diff := cmp.Diff([]string{"persona-1", "persona-2", "persona-3"}, marketing.PersonaSet{Personas: up.Personas}.IDs()); diff != "" {
		t.Errorf("persona ids (-want +got):\n%s", diff)
	}
}

func TestExtractRejectsUnknownPersonas(t *testing.T) {
	r := newRegistry(t)
	engine := extract.NewEngine()
	rc := RequestContext{
		Step:     workflow.Titles,
		Inputs:   Inputs{Artifact: "Tidewater"},
		Upstream: Upstream{Personas: []marketing.ReaderPersona{{ID: "persona-1"}}},
	}
	raw := `{"title": "Tidewater", "assessments": [
		{"persona_id": "persona-1", "appeal": 8, "clarity": 7, "genre_fit": 8},
		{"persona_id": "persona-7", "appeal": 8, "clarity": 7, "genre_fit": 8}
	]}`
	a, _ := r.Adapter(workflow.Titles)
	_, _, err := a.Extract(engine, raw, rc)
	var sv *extract.SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("error = %v, want SchemaViolationError", err)
	}
	if sv.Field != "assessments" || !strings.Contains(sv.Reason, "persona-7") {
		t.Errorf("violation = %+v", sv)
	}
	if sv.Shape != "title_feedback" {
		t.Errorf("shape = %q", sv.Shape)
	}
}

func TestExtractRejectsWrongTestType(t *testing.T) {
	r := newRegistry(t)
	rc := RequestContext{
		Step:   workflow.Testing,
		Inputs: Inputs{TestType: "cover", OptionA: "a", OptionB: "b"},
	}
	raw := `{"test_type": "title", "option_a": "a", "option_b": "b", "winner": "B", "confidence": 60}`
	a, _ := r.Adapter(workflow.Testing)
	_, _, err := a.Extract(extract.NewEngine(), raw, rc)
	var sv *extract.SchemaViolationError
	if !errors.As(err, &sv) || sv.Field != "test_type" {
		t.Fatalf("error = %v, want test_type violation", err)
	}
}

func TestDashboardCompute(t *testing.T) {
	r := newRegistry(t)
	local, _ := r.Local(workflow.Dashboard)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	title := func(name string, score int) marketing.TitleFeedback {
		return marketing.TitleFeedback{Title: name, Assessments: []marketing.TitleAssessment{
			{PersonaID: "persona-1", Appeal: score, Clarity: score, GenreFit: score},
		}}
	}
	rc := RequestContext{
		Step: workflow.Dashboard,
		Now:  now,
		Upstream: Upstream{
			Analysis: &marketing.MarketAnalysis{Position: marketing.MarketPosition{Genre: "Literary Fiction"}},
			Personas: []marketing.ReaderPersona{{ID: "persona-1"}, {ID: "persona-2"}},
			Titles:   []marketing.TitleFeedback{title("Tidewater", 6), title("The Salt House", 9), title("Undertow", 9)},
			Tests: []marketing.ABTestResult{
				{TestType: marketing.ArtifactTitle, OptionA: "Tidewater", OptionB: "The Salt House", Winner: "B", Confidence: 71},
			},
			Completed: []workflow.StepID{workflow.Landscape, workflow.Audience, workflow.Titles},
		},
	}

	got, err := local.Compute(rc)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := marketing.DashboardSummary{
		GeneratedAt:    now,
		CompletedSteps: []string{"landscape", "audience", "titles"},
		Genre:          "Literary Fiction",
		PersonaCount:   2,
		Artifacts: []marketing.ArtifactScoreboard{
			{Type: marketing.ArtifactTitle, Rounds: 3, AverageScore: 8, Best: "The Salt House", BestScore: 9},
		},
		TestWinners:   []string{`title test: "The Salt House" won with 71% confidence`},
		StrategyReady: false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dashboard mismatch (-want +got):\n%s", diff)
	}
}
