// Package session owns the state of one marketing session: the book, the
// workflow controller and typed views over the stored records.
package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/bookmarketer/internal/marketing"
	"github.com/vampirenirmal/bookmarketer/internal/modules"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

// catalog is shared by every session; it carries the persona id hook.
var catalog = mustCatalog()

func mustCatalog() *workflow.Catalog {
	steps := workflow.DefaultSteps()
	for i := range steps {
		if steps[i].ID == workflow.Audience {
			steps[i].Merge = assignPersonaIDs
		}
	}
	c, err := workflow.NewCatalog(steps...)
	if err != nil {
		panic(fmt.Sprintf("session: catalog: %v", err))
	}
	return c
}

// Catalog returns the step catalog sessions are built on.
func Catalog() *workflow.Catalog {
	return catalog
}

// Session is safe for concurrent use. All writes go through Complete and
// SetCurrentStep.
type Session struct {
	id        string
	createdAt time.Time
	book      marketing.BookContext
	ctrl      *workflow.Controller
	logger    *slog.Logger

	// writeMu pairs each completion with a read of what was stored.
	writeMu sync.Mutex
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithCreatedAt overrides the creation time.
func WithCreatedAt(t time.Time) Option {
	return func(s *Session) {
		s.createdAt = t
	}
}

func New(book marketing.BookContext, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		book:      book,
		logger:    slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctrl = workflow.NewController(catalog, workflow.WithLogger(s.logger))
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Book returns the book context with metadata from the latest landscape
// analysis, when there is one.
func (s *Session) Book() marketing.BookContext {
	if a, ok := s.Analysis(); ok {
		return s.book.WithProfile(a.Position.Genre, a.Profile)
	}
	return s.book
}

func (s *Session) IsAccessible(id workflow.StepID) bool {
	return s.ctrl.IsAccessible(id)
}

func (s *Session) BlockedBy(id workflow.StepID) ([]string, error) {
	return s.ctrl.BlockedBy(id)
}

func (s *Session) Accessible() []workflow.StepID {
	return s.ctrl.Accessible()
}

func (s *Session) Completed(id workflow.StepID) bool {
	return s.ctrl.Completed(id)
}

func (s *Session) Progress() []workflow.StepID {
	return s.ctrl.Progress()
}

func (s *Session) CurrentStep() workflow.StepID {
	return s.ctrl.CurrentStep()
}

func (s *Session) SetCurrentStep(id workflow.StepID) error {
	return s.ctrl.SetCurrentStep(id)
}

// StepData returns the latest record of id.
func (s *Session) StepData(id workflow.StepID) (any, bool) {
	return s.ctrl.StepData(id)
}

// Rounds counts the records stored for id.
func (s *Session) Rounds(id workflow.StepID) int {
	return len(s.ctrl.History(id))
}

// Complete records rec for id and returns the value stored, which for the
// audience step carries the assigned persona ids.
func (s *Session) Complete(id workflow.StepID, rec any) (any, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ctrl.MarkComplete(id, rec); err != nil {
		return nil, err
	}
	rounds := s.ctrl.History(id)
	return rounds[len(rounds)-1], nil
}

// RequestContext builds the adapter view of the records of reads from one
// snapshot. Records of steps outside reads are left empty.
func (s *Session) RequestContext(id workflow.StepID, reads []workflow.StepID, in modules.Inputs) (modules.RequestContext, error) {
	if _, ok := catalog.Step(id); !ok {
		return modules.RequestContext{}, fmt.Errorf("%w: %s", workflow.ErrUnknownStep, id)
	}
	snap := s.ctrl.Snapshot()
	wanted := make(map[workflow.StepID]bool, len(reads))
	for _, r := range reads {
		wanted[r] = true
	}
	history := make(map[workflow.StepID][]any, len(reads))
	for step, rounds := range snap.History {
		if wanted[step] {
			history[step] = rounds
		}
	}

	up := upstream(history)
	up.Completed = snap.Progress

	book := s.book
	if up.Analysis != nil {
		book = book.WithProfile(up.Analysis.Position.Genre, up.Analysis.Profile)
	} else if a, ok := latest[marketing.MarketAnalysis](snap.History[workflow.Landscape]); ok {
		book = book.WithProfile(a.Position.Genre, a.Profile)
	}

	return modules.RequestContext{
		Step:     id,
		Book:     book,
		Inputs:   in,
		Upstream: up,
	}, nil
}

func upstream(history map[workflow.StepID][]any) modules.Upstream {
	var up modules.Upstream
	if a, ok := latest[marketing.MarketAnalysis](history[workflow.Landscape]); ok {
		up.Analysis = &a
	}
	for _, set := range all[marketing.PersonaSet](history[workflow.Audience]) {
		up.Personas = append(up.Personas, set.Personas...)
	}
	up.Titles = all[marketing.TitleFeedback](history[workflow.Titles])
	up.Covers = all[marketing.CoverFeedback](history[workflow.Covers])
	up.Blurbs = all[marketing.BlurbFeedback](history[workflow.Blurbs])
	up.Tests = all[marketing.ABTestResult](history[workflow.Testing])
	if st, ok := latest[marketing.MarketingStrategy](history[workflow.Strategy]); ok {
		up.Strategy = &st
	}
	return up
}

// Analysis returns the latest landscape record.
func (s *Session) Analysis() (marketing.MarketAnalysis, bool) {
	return latest[marketing.MarketAnalysis](s.ctrl.History(workflow.Landscape))
}

// Personas returns the persona pool: every audience round in insertion order.
func (s *Session) Personas() []marketing.ReaderPersona {
	var out []marketing.ReaderPersona
	for _, set := range all[marketing.PersonaSet](s.ctrl.History(workflow.Audience)) {
		out = append(out, set.Personas...)
	}
	return out
}

// Persona looks a persona up by id.
func (s *Session) Persona(id string) (marketing.ReaderPersona, bool) {
	for _, p := range s.Personas() {
		if p.ID == id {
			return p, true
		}
	}
	return marketing.ReaderPersona{}, false
}

func (s *Session) TitleFeedback() []marketing.TitleFeedback {
	return all[marketing.TitleFeedback](s.ctrl.History(workflow.Titles))
}

func (s *Session) CoverFeedback() []marketing.CoverFeedback {
	return all[marketing.CoverFeedback](s.ctrl.History(workflow.Covers))
}

func (s *Session) BlurbFeedback() []marketing.BlurbFeedback {
	return all[marketing.BlurbFeedback](s.ctrl.History(workflow.Blurbs))
}

func (s *Session) ABTests() []marketing.ABTestResult {
	return all[marketing.ABTestResult](s.ctrl.History(workflow.Testing))
}

func (s *Session) Strategy() (marketing.MarketingStrategy, bool) {
	return latest[marketing.MarketingStrategy](s.ctrl.History(workflow.Strategy))
}

func (s *Session) Dashboard() (marketing.DashboardSummary, bool) {
	return latest[marketing.DashboardSummary](s.ctrl.History(workflow.Dashboard))
}

func all[T any](rounds []any) []T {
	out := make([]T, 0, len(rounds))
	for _, r := range rounds {
		if v, ok := r.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func latest[T any](rounds []any) (T, bool) {
	for i := len(rounds) - 1; i >= 0; i-- {
		if v, ok := rounds[i].(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// assignPersonaIDs gives every incoming persona an id unique across all
// audience rounds of the session.
func assignPersonaIDs(history []any, data any) (any, error) {
	set, ok := data.(marketing.PersonaSet)
	if !ok {
		return nil, fmt.Errorf("audience record has type %T", data)
	}
	seen := make(map[string]bool)
	for _, prev := range all[marketing.PersonaSet](history) {
		for _, p := range prev.Personas {
			seen[p.ID] = true
		}
	}
	out := marketing.PersonaSet{Personas: make([]marketing.ReaderPersona, len(set.Personas))}
	for i, p := range set.Personas {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" || seen[p.ID] {
			p.ID = "persona-" + uuid.NewString()
		}
		seen[p.ID] = true
		out.Personas[i] = p
	}
	return out, nil
}
