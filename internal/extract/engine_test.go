package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/vampirenirmal/bookmarketer/internal/marketing"
)

type keywordRecord struct {
	Keywords []string `json:"keywords"`
}

var abShape = Shape[marketing.ABTestResult]{Name: "ab_test"}

func TestExtractABTestAcrossWrappers(t *testing.T) {
	const body = `{"test_type":"title","option_a":"Night Tide","option_b":"Salt Lines","winner":"A","confidence":82}`
	want := marketing.ABTestResult{
		TestType:   marketing.ArtifactTitle,
		OptionA:    "Night Tide",
		OptionB:    "Salt Lines",
		Winner:     "A",
		Confidence: 82,
	}

	tests := []struct {
		name   string
		raw    string
		method Method
	}{
		{"bare object", body, MethodDirect},
		{"padded object", "\n\n  " + body + "\n", MethodDirect},
		{"fenced with prose", "Here is the result:\n```json\n" + body + "\n```\nLet me know if you need changes.", MethodFenced},
		{"tilde fence", "~~~\n" + body + "\n~~~", MethodFenced},
		{"unterminated fence", "Sure.\n```json\n" + body + "\n", MethodFenced},
		{"fence info on same line", "```json" + body + "```", MethodFenced},
		{"non-json fence first", "```text\nsee below\n```\n" + body, MethodBracket},
		{"prose around object", "My verdict: " + body + " Hope this helps!", MethodBracket},
		{"brace-y prose before object", "Format is {winner}. Answer: " + body, MethodBracket},
		{"trailing comma", strings.TrimSuffix(body, "}") + ",}", MethodRepair},
		{"brace-y prose before broken object", "Format is {winner}. Answer: " + strings.TrimSuffix(body, "}") + ",}", MethodRepair},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, method, err := Extract(e, tt.raw, abShape)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if method != tt.method {
				t.Errorf("method = %q, want %q", method, tt.method)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractTruncatedArray(t *testing.T) {
	e := NewEngine()
	got, method, err := Extract(e, `{"keywords": ["a", "b"`, Shape[keywordRecord]{Name: "keywords"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if method != MethodRepair {
		t.Errorf("method = %q, want %q", method, MethodRepair)
	}
	if diff := cmp.Diff(keywordRecord{Keywords: []string{"a", "b"}}, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRepairSkipsPlaceholderBraces(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"placeholder then trailing commas", `Use {placeholders}. Answer: {"keywords": ["a",],}`, []string{"a"}},
		{"placeholders then truncated", `Fill {one} and {two}: {"keywords": ["a", "b"`, []string{"a", "b"}},
		{"partial unicode escape", `{"keywords": ["a", "b\u00`, []string{"a", "b"}},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, method, err := Extract(e, tt.raw, Shape[keywordRecord]{Name: "keywords"})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if method != MethodRepair {
				t.Errorf("method = %q, want %q", method, MethodRepair)
			}
			if diff := cmp.Diff(keywordRecord{Keywords: tt.want}, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractMarketAnalysisRoundTrip(t *testing.T) {
	want := marketing.MarketAnalysis{
		Position: marketing.MarketPosition{
			Genre:     "Literary Fiction",
			SubGenres: []string{"coastal gothic", "family saga"},
			CompetitorTitles: []marketing.CompetitorTitle{
				{Title: "The Lighthouse Keeper", Author: "M. Reyes", Reason: "same setting"},
				{Title: "Undertow", Author: "J. Okafor", Reason: "grief narrative"},
			},
			UniqueSellingPoints: []string{"tidal structure", "unreliable narrator"},
			TargetNiches:        []string{"book clubs"},
			Positioning: marketing.PositioningMatrix{
				Tone:               marketing.MinAxis,
				Complexity:         7,
				Pacing:             4,
				EmotionalIntensity: marketing.MaxAxis,
			},
		},
		Trends: marketing.TrendAnalysis{
			GeneralTrends: []string{"quiet literary"},
			BookTrends:    []string{"climate settings"},
			MarketGaps:    []string{"working-class coastal stories"},
			Opportunities: []string{"regional festivals"},
		},
		Profile: &marketing.BookProfile{
			Themes:         []string{"grief", "inheritance"},
			CharacterTypes: []string{"estranged siblings"},
			Setting:        "Cornish fishing village",
			NarrativeStyle: "first person, alternating timelines",
		},
	}
	body, err := json.MarshalIndent(want, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	raw := "Here's my analysis of the market:\n```json\n" + string(body) + "\n```\nSorry if this is longer than you wanted."

	got, method, err := Extract(NewEngine(), raw, Shape[marketing.MarketAnalysis]{Name: "market_analysis"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if method != MethodFenced {
		t.Errorf("method = %q, want %q", method, MethodFenced)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractBracesInsideStrings(t *testing.T) {
	raw := `Result: {"title": "The {Curly} Road", "assessments": [{"persona_id": "p1", "appeal": 7, "clarity": 8, "genre_fit": 6, "commentary": "a } in text"}], "summary": {"overall_score": 7}} done`
	got, method, err := Extract(NewEngine(), raw, Shape[marketing.TitleFeedback]{Name: "title_feedback"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if method != MethodBracket {
		t.Errorf("method = %q, want %q", method, MethodBracket)
	}
	if got.Title != "The {Curly} Road" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Assessments) != 1 || got.Assessments[0].Commentary != "a } in text" {
		t.Errorf("assessments = %+v", got.Assessments)
	}
}

func TestExtractPositioningBounds(t *testing.T) {
	shape := Shape[marketing.MarketAnalysis]{Name: "market_analysis"}
	doc := func(tone int) string {
		return fmt.Sprintf(`{"position":{"genre":"Literary","positioning":{"tone":%d,"complexity":5,"pacing":5,"emotional_intensity":5}}}`, tone)
	}

	tests := []struct {
		tone    int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{10, false},
		{11, true},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("tone=%d", tt.tone), func(t *testing.T) {
			got, _, err := Extract(e, doc(tt.tone), shape)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Extract() error = %v", err)
				}
				if got.Position.Positioning.Tone != tt.tone {
					t.Errorf("tone = %d, want %d", got.Position.Positioning.Tone, tt.tone)
				}
				return
			}
			var sv *SchemaViolationError
			if !errors.As(err, &sv) {
				t.Fatalf("error = %v, want SchemaViolationError", err)
			}
			if sv.Field != "position.positioning.tone" {
				t.Errorf("field = %q, want position.positioning.tone", sv.Field)
			}
			if sv.Shape != "market_analysis" {
				t.Errorf("shape = %q", sv.Shape)
			}
		})
	}
}

func TestExtractSchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"wrong type", `{"position":{"genre":42}}`, "position.genre"},
		{"missing genre", `{"position":{"positioning":{"tone":1,"complexity":1,"pacing":1,"emotional_intensity":1}}}`, "position.genre"},
		{"fenced wrong type", "```json\n{\"position\":{\"genre\":[]}}\n```", "position.genre"},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(e, tt.raw, Shape[marketing.MarketAnalysis]{Name: "market_analysis"})
			var sv *SchemaViolationError
			if !errors.As(err, &sv) {
				t.Fatalf("error = %v, want SchemaViolationError", err)
			}
			if sv.Field != tt.field {
				t.Errorf("field = %q, want %q", sv.Field, tt.field)
			}
			if IsMalformed(err) {
				t.Error("schema violation reported as malformed")
			}
		})
	}
}

func TestExtractLengthReasons(t *testing.T) {
	type pitch struct {
		Name string   `json:"name" validate:"min=3"`
		Tags []string `json:"tags" validate:"max=1"`
	}
	shape := Shape[pitch]{Name: "pitch"}

	tests := []struct {
		name   string
		raw    string
		field  string
		reason string
	}{
		{"short string", `{"name": "ab"}`, "name", "must have at least 3 characters"},
		{"long slice", `{"name": "abc", "tags": ["x", "y"]}`, "tags", "must have at most 1 entries"},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(e, tt.raw, shape)
			var sv *SchemaViolationError
			if !errors.As(err, &sv) {
				t.Fatalf("error = %v, want SchemaViolationError", err)
			}
			if sv.Field != tt.field {
				t.Errorf("field = %q, want %q", sv.Field, tt.field)
			}
			if sv.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", sv.Reason, tt.reason)
			}
		})
	}
}

func TestExtractShapeCheck(t *testing.T) {
	shape := Shape[marketing.ABTestResult]{
		Name: "ab_test",
		Check: func(r *marketing.ABTestResult) error {
			if r.OptionA == r.OptionB {
				return Violation("option_b", "must differ from option_a")
			}
			return nil
		},
	}
	raw := `{"test_type":"cover","option_a":"Same","option_b":"Same","winner":"B","confidence":50}`
	_, _, err := Extract(NewEngine(), raw, shape)
	var sv *SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("error = %v, want SchemaViolationError", err)
	}
	if sv.Shape != "ab_test" || sv.Field != "option_b" {
		t.Errorf("violation = %+v", sv)
	}
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"refusal", "I'm sorry, I can't help with that."},
		{"array only", `["a", "b"]`},
		{"key cut off", `{"ke`},
	}

	e := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(e, tt.raw, Shape[keywordRecord]{Name: "keywords"})
			var mo *MalformedOutputError
			if !errors.As(err, &mo) {
				t.Fatalf("error = %v, want MalformedOutputError", err)
			}
			if mo.Preview != tt.raw {
				t.Errorf("preview = %q, want %q", mo.Preview, tt.raw)
			}
			if IsSchemaViolation(err) {
				t.Error("malformed output reported as schema violation")
			}
		})
	}
}

func TestPreviewIsBounded(t *testing.T) {
	raw := strings.Repeat("é", 400)
	_, _, err := Extract(NewEngine(WithPreviewLimit(101)), raw, Shape[keywordRecord]{Name: "keywords"})
	var mo *MalformedOutputError
	if !errors.As(err, &mo) {
		t.Fatalf("error = %v, want MalformedOutputError", err)
	}
	if !utf8.ValidString(mo.Preview) {
		t.Errorf("preview split a rune: %q", mo.Preview)
	}
	if len(mo.Preview) > 101+len("...") {
		t.Errorf("preview length = %d", len(mo.Preview))
	}
	if mo.Length != len(raw) {
		t.Errorf("length = %d, want %d", mo.Length, len(raw))
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"truncated array", `{"keywords": ["a", "b"`, `{"keywords": ["a", "b"]}`, true},
		{"dangling comma", `{"a": 1, "b": [1, 2,`, `{"a": 1, "b": [1, 2]}`, true},
		{"open string value", `{"name": "Ali`, `{"name": "Ali"}`, true},
		{"open key", `{"name": "Ali", "ag`, `{"name": "Ali"}`, true},
		{"partial scalar", `{"a": tru`, "", false},
		{"partial scalar after value", `{"a": 1, "b": tru`, `{"a": 1}`, true},
		{"mismatched closer", `{"a": [1, 2}`, `{"a": [1, 2]}`, true},
		{"trailing commas", `{"a": [1, 2,], "b": 3,}`, `{"a": [1, 2], "b": 3}`, true},
		{"raw newline", "{\"text\": \"one\ntwo\"}", `{"text": "one\ntwo"}`, true},
		{"dangling escape", `{"a": "x\`, `{"a": "x"}`, true},
		{"partial unicode escape", `{"a": "x\u00e`, `{"a": "x"}`, true},
		{"complete unicode escape", `{"a": "x\u00e9`, `{"a": "x\u00e9"}`, true},
		{"text after object", `{"a": 1} and more {`, `{"a": 1}`, true},
		{"prose prefix", `ok: {"a": {"b": [true`, `{"a": {"b": []}}`, true},
		{"no object", `nothing here`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := repair(tt.in)
			if ok != tt.ok {
				t.Fatalf("repair() ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("repair() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFencedBlocks(t *testing.T) {
	raw := "a\n```json\n{\"x\":1}\n```\nb\n~~~\nplain\n~~~\n```\n{\"y\":"
	want := []string{"\n{\"x\":1}\n", "\nplain\n", "\n{\"y\":"}
	if diff := cmp.Diff(want, fencedBlocks(raw)); diff != "" {
		t.Errorf("fencedBlocks mismatch (-want +got):\n%s", diff)
	}
}
