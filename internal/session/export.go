package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/bookmarketer/internal/marketing"
	"github.com/vampirenirmal/bookmarketer/internal/storage"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

// DocumentVersion is written into every export.
const DocumentVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported document version")
	ErrUnknownFormat      = errors.New("unknown export format")
)

// Document is the flat, self-contained form of a session. It is both the
// checkpoint payload and the export artifact.
type Document struct {
	Version     int                   `json:"version"`
	SessionID   string                `json:"session_id"`
	CreatedAt   time.Time             `json:"created_at"`
	GeneratedAt time.Time             `json:"generated_at"`
	Book        marketing.BookContext `json:"book"`
	Completed   []workflow.StepID     `json:"completed"`
	Current     workflow.StepID       `json:"current,omitempty"`
	Records     Records               `json:"records"`
}

// Records holds every stored round, keyed by step.
type Records struct {
	Landscape *marketing.MarketAnalysis    `json:"landscape,omitempty"`
	Audience  []marketing.PersonaSet       `json:"audience,omitempty"`
	Titles    []marketing.TitleFeedback    `json:"titles,omitempty"`
	Covers    []marketing.CoverFeedback    `json:"covers,omitempty"`
	Blurbs    []marketing.BlurbFeedback    `json:"blurbs,omitempty"`
	Testing   []marketing.ABTestResult     `json:"testing,omitempty"`
	Strategy  *marketing.MarketingStrategy `json:"strategy,omitempty"`
	Dashboard *marketing.DashboardSummary  `json:"dashboard,omitempty"`
}

// Export captures the session as of now.
func (s *Session) Export(now time.Time) Document {
	snap := s.ctrl.Snapshot()
	h := snap.History

	var rec Records
	if v, ok := latest[marketing.MarketAnalysis](h[workflow.Landscape]); ok {
		rec.Landscape = &v
	}
	rec.Audience = nilIfEmpty(all[marketing.PersonaSet](h[workflow.Audience]))
	rec.Titles = nilIfEmpty(all[marketing.TitleFeedback](h[workflow.Titles]))
	rec.Covers = nilIfEmpty(all[marketing.CoverFeedback](h[workflow.Covers]))
	rec.Blurbs = nilIfEmpty(all[marketing.BlurbFeedback](h[workflow.Blurbs]))
	rec.Testing = nilIfEmpty(all[marketing.ABTestResult](h[workflow.Testing]))
	if v, ok := latest[marketing.MarketingStrategy](h[workflow.Strategy]); ok {
		rec.Strategy = &v
	}
	if v, ok := latest[marketing.DashboardSummary](h[workflow.Dashboard]); ok {
		rec.Dashboard = &v
	}

	book := s.book
	if rec.Landscape != nil {
		book = book.WithProfile(rec.Landscape.Position.Genre, rec.Landscape.Profile)
	}

	return Document{
		Version:     DocumentVersion,
		SessionID:   s.id,
		CreatedAt:   s.createdAt,
		GeneratedAt: now.UTC(),
		Book:        book,
		Completed:   snap.Progress,
		Current:     snap.Current,
		Records:     rec,
	}
}

// Restore rebuilds a session from doc. The controller validates the
// restored progress against the catalog.
func Restore(doc Document, opts ...Option) (*Session, error) {
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", workflow.ErrInvalidRestore)
	}

	book := doc.Book
	book.Metadata = marketing.BookMetadata{}
	s := New(book, append([]Option{WithID(doc.SessionID), WithCreatedAt(doc.CreatedAt)}, opts...)...)

	r := doc.Records
	history := make(map[workflow.StepID][]any)
	if r.Landscape != nil {
		history[workflow.Landscape] = []any{*r.Landscape}
	}
	addAll(history, workflow.Audience, r.Audience)
	addAll(history, workflow.Titles, r.Titles)
	addAll(history, workflow.Covers, r.Covers)
	addAll(history, workflow.Blurbs, r.Blurbs)
	addAll(history, workflow.Testing, r.Testing)
	if r.Strategy != nil {
		history[workflow.Strategy] = []any{*r.Strategy}
	}
	if r.Dashboard != nil {
		history[workflow.Dashboard] = []any{*r.Dashboard}
	}

	err := s.ctrl.Restore(workflow.Snapshot{
		Progress: doc.Completed,
		Current:  doc.Current,
		History:  history,
	})
	if err != nil {
		return nil, fmt.Errorf("restoring session %s: %w", doc.SessionID, err)
	}
	return s, nil
}

func addAll[T any](history map[workflow.StepID][]any, id workflow.StepID, rounds []T) {
	for _, r := range rounds {
		history[id] = append(history[id], r)
	}
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

// Encode renders doc as indented JSON or as YAML. YAML keys match the JSON
// field names and keep their order.
func Encode(doc Document, format string) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}
	switch format {
	case "", "json":
		return append(data, '\n'), nil
	case "yaml", "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("converting document: %w", err)
		}
		blockStyle(&node)
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Decode parses a document written by Encode in either format.
func Decode(data []byte) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return Document{}, fmt.Errorf("decoding document: %w", err)
		}
		return doc, nil
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Document{}, fmt.Errorf("decoding yaml document: %w", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return Document{}, fmt.Errorf("decoding yaml document: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// blockStyle drops the flow and quoting styles a JSON source leaves on
// the node tree so the encoder chooses plain YAML.
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		n.Style &^= yaml.FlowStyle
	case yaml.ScalarNode:
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Save checkpoints s under its id.
func Save(ctx context.Context, cm *storage.CheckpointManager, s *Session) error {
	doc := s.Export(time.Now())
	step := ""
	if n := len(doc.Completed); n > 0 {
		step = string(doc.Completed[n-1])
	}
	return cm.Save(ctx, s.ID(), step, doc)
}

// Read restores the session checkpointed under id without touching the
// checkpoint.
func Read(ctx context.Context, cm *storage.CheckpointManager, id string, opts ...Option) (*Session, error) {
	var doc Document
	if _, err := cm.LoadState(ctx, id, &doc); err != nil {
		return nil, err
	}
	return Restore(doc, opts...)
}

// Load restores the session checkpointed under id and records the resume.
func Load(ctx context.Context, cm *storage.CheckpointManager, id string, opts ...Option) (*Session, error) {
	s, err := Read(ctx, cm, id, opts...)
	if err != nil {
		return nil, err
	}
	if err := cm.MarkAsResumed(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}
