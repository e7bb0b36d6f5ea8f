package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// Prompt header lines the mock reads to pick and fill a canned response.
const (
	StepHeader     = "Step: "
	ArtifactHeader = "Artifact: "
	OptionAHeader  = "Option A: "
	OptionBHeader  = "Option B: "
	TestTypeHeader = "Test type: "
)

// MockClient returns canned responses keyed by the prompt's step header.
// The responses are wrapped in prose and fences the way real models answer,
// so offline runs still go through every extraction stage.
type MockClient struct {
	mu        sync.Mutex
	responses map[string]string
	failures  []mockFailure
	calls     []string
}

type mockFailure struct {
	match string
	err   error
}

func NewMockClient() *MockClient {
	responses := make(map[string]string, len(cannedResponses))
	for step, raw := range cannedResponses {
		responses[step] = raw
	}
	return &MockClient{responses: responses}
}

// SetResponse replaces the canned response for step.
func (m *MockClient) SetResponse(step, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[step] = raw
}

// FailOn makes every prompt containing match fail with err.
func (m *MockClient) FailOn(match string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, mockFailure{match: match, err: err})
}

// Calls returns the step header of every prompt received, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockClient) Ask(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	headers := promptHeaders(prompt)
	step := headers[StepHeader]

	m.mu.Lock()
	m.calls = append(m.calls, step)
	for _, f := range m.failures {
		if strings.Contains(prompt, f.match) {
			m.mu.Unlock()
			return "", f.err
		}
	}
	raw, ok := m.responses[step]
	m.mu.Unlock()

	if !ok {
		return `{"message": "Mock response"}`, nil
	}

	testType := headers[TestTypeHeader]
	if testType == "" {
		testType = "title"
	}
	return strings.NewReplacer(
		"__ARTIFACT__", jsonEscape(headers[ArtifactHeader]),
		"__OPTION_A__", jsonEscape(headers[OptionAHeader]),
		"__OPTION_B__", jsonEscape(headers[OptionBHeader]),
		"__TEST_TYPE__", jsonEscape(testType),
	).Replace(raw), nil
}

func promptHeaders(prompt string) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(prompt))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, h := range []string{StepHeader, ArtifactHeader, OptionAHeader, OptionBHeader, TestTypeHeader} {
			if _, seen := out[h]; !seen && strings.HasPrefix(line, h) {
				out[h] = strings.TrimSpace(strings.TrimPrefix(line, h))
			}
		}
	}
	return out
}

// jsonEscape returns s encoded for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

var cannedResponses = map[string]string{
	"landscape": "Here is my analysis of where the book sits in the market.\n\n```json\n" + `{
  "position": {
    "genre": "Literary Fiction",
    "sub_genres": ["Coastal Gothic", "Family Saga"],
    "competitor_titles": [
      {"title": "The Lighthouse Keeper", "author": "A. Marsh", "reason": "Isolated coastal setting and buried family history"},
      {"title": "Salt and Bone", "author": "R. Ilves", "reason": "Similar lyrical register"}
    ],
    "unique_selling_points": ["Lyrical, weather-driven prose", "Three generations told in braided timelines"],
    "target_niches": ["Book clubs", "Atmospheric fiction readers"],
    "positioning": {"tone": 7, "complexity": 6, "pacing": 4, "emotional_intensity": 8}
  },
  "trends": {
    "general_trends": ["Quiet literary fiction finding audiences through social reading"],
    "book_trends": ["Climate-touched settings"],
    "market_gaps": ["Maritime family sagas with a contemporary frame"],
    "opportunities": ["Seasonal book club promotions"]
  },
  "book_profile": {
    "themes": ["inheritance", "grief", "the sea as memory"],
    "character_types": ["estranged daughter", "keeper of secrets"],
    "setting": "A fishing town on a northern coast",
    "narrative_style": "Close third person, alternating timelines"
  }
}` + "\n```\n\nLet me know if you want a deeper competitor breakdown.",

	"audience": `Based on the landscape, these are the readers most likely to pick the book up: {
  "personas": [
    {
      "id": "persona-1",
      "name": "Maren, the Book Club Organizer",
      "summary": "Runs a monthly club and chooses books that spark long conversations.",
      "demographics": {"age_range": "45-60", "gender": "female", "location": "Suburban", "occupation": "Librarian", "education": "Masters", "income": "Middle"},
      "reading_habits": {"books_per_year": 40, "formats": ["hardcover", "ebook"], "discovery_channels": ["library newsletters", "book club forums"], "favorite_genres": ["literary fiction", "historical fiction"]},
      "psychographics": {"values": ["community", "depth"], "interests": ["local history"], "motivations": ["shared discussion"], "pain_points": ["books that resolve too neatly"]},
      "connection_points": ["Multi-generational secrets give the club plenty to debate"]
    },
    {
      "id": "persona-2",
      "name": "Theo, the Atmospheric Reader",
      "summary": "Reads for mood and place more than plot.",
      "demographics": {"age_range": "25-35", "gender": "male", "location": "Urban", "occupation": "Designer", "education": "Bachelors", "income": "Middle"},
      "reading_habits": {"books_per_year": 25, "formats": ["paperback", "audiobook"], "discovery_channels": ["BookTok", "independent bookstores"], "favorite_genres": ["gothic", "literary fiction"]},
      "psychographics": {"values": ["beauty", "solitude"], "interests": ["photography", "coastal travel"], "motivations": ["escape"], "pain_points": ["rushed pacing"]},
      "connection_points": ["The weather-driven prose", "The northern coastal setting"]
    },
    {
      "id": "persona-3",
      "name": "Ines, the Family Saga Devotee",
      "summary": "Loves stories that span generations.",
      "demographics": {"age_range": "60+", "gender": "female", "location": "Rural", "occupation": "Retired teacher", "education": "Bachelors", "income": "Fixed"},
      "reading_habits": {"books_per_year": 60, "formats": ["large print", "ebook"], "discovery_channels": ["newspaper reviews"], "favorite_genres": ["family saga"]},
      "psychographics": {"values": ["family", "memory"], "interests": ["genealogy"], "motivations": ["recognition of her own family stories"], "pain_points": ["small fonts"]},
      "connection_points": ["Braided timelines across three generations"]
    }
  ]
}`,

	"titles": "Here's how the personas reacted to the title.\n```json\n" + `{
  "title": "__ARTIFACT__",
  "assessments": [
    {"persona_id": "persona-1", "appeal": 8, "clarity": 7, "genre_fit": 8, "commentary": "Evocative and easy to recommend."},
    {"persona_id": "persona-2", "appeal": 9, "clarity": 6, "genre_fit": 8, "commentary": "Strong mood."},
    {"persona_id": "persona-3", "appeal": 7, "clarity": 8, "genre_fit": 7, "commentary": "Would pick it up."}
  ],
  "summary": {"overall_score": 7.8, "strengths": ["mood", "memorability"], "weaknesses": ["slightly generic"], "recommendation": "Keep, test against a more specific variant."}
}` + "\n```",

	"covers": "Cover feedback below.\n~~~\n" + `{
  "concept": "__ARTIFACT__",
  "assessments": [
    {"persona_id": "persona-1", "visual_appeal": 7, "genre_signal": 8, "memorability": 6, "commentary": "Signals literary fiction clearly."},
    {"persona_id": "persona-2", "visual_appeal": 9, "genre_signal": 7, "memorability": 8, "commentary": "Would stop scrolling for this."}
  ],
  "summary": {"overall_score": 7.5, "strengths": ["palette"], "weaknesses": ["title placement"], "recommendation": "Enlarge the title for thumbnails."}
}` + "\n~~~\nHappy to iterate.",

	"blurbs": "```json\n" + `{
  "blurb": "__ARTIFACT__",
  "assessments": [
    {"persona_id": "persona-1", "hook": 7, "clarity": 8, "intrigue": 8, "commentary": "The secret in the first line works."},
    {"persona_id": "persona-3", "hook": 8, "clarity": 7, "intrigue": 9, "commentary": "Feels like my kind of saga."}
  ],
  "summary": {"overall_score": 8.1, "strengths": ["hook"], "weaknesses": ["long second paragraph"], "recommendation": "Trim the middle."}
}` + "\n```",

	"testing": "Here is the result:\n```json\n" + `{
  "test_type": "__TEST_TYPE__",
  "option_a": "__OPTION_A__",
  "option_b": "__OPTION_B__",
  "winner": "A",
  "confidence": 82,
  "metrics": {"click_through_rate": 4.2, "engagement_rate": 37.5, "conversion_rate": 2.1},
  "reasoning": "Option A leans into the setting the personas responded to.",
  "persona_insights": [
    {"persona_id": "persona-1", "preferred_option": "A", "insight": "Easier to pitch to the club."},
    {"persona_id": "persona-2", "preferred_option": "B", "insight": "B feels more modern."}
  ]
}` + "\n```\nLet me know if you need changes.",

	"strategy": "Strategy draft:\n```json\n" + `{
  "angles": [
    {"name": "The Book Club Pick", "description": "Lead with discussion questions and family secrets.", "target_personas": ["persona-1", "persona-3"]},
    {"name": "Weather You Can Feel", "description": "Mood-led visual campaign.", "target_personas": ["persona-2"]}
  ],
  "channels": [
    {"channel": "Library newsletters", "reach": "medium", "cost": "low", "difficulty": "low", "rationale": "Direct line to organizers."},
    {"channel": "BookTok", "reach": "High", "cost": "Low", "difficulty": "High", "rationale": "Atmospheric clips travel well."}
  ],
  "keywords": ["coastal gothic", "family saga", "book club fiction"],
  "taglines": ["Some tides bring things back."],
  "campaign_ideas": [
    {"name": "Storm Season Readalong", "description": "Four-week readalong timed with autumn storms.", "timeline": "October"},
  ],
}` + "\n```",
}
