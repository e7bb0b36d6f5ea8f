// Package modules binds each workflow step to the request it sends, the
// record it expects back and the upstream data it reads.
package modules

import (
	"errors"
	"fmt"
	"time"

	"github.com/vampirenirmal/bookmarketer/internal/extract"
	"github.com/vampirenirmal/bookmarketer/internal/marketing"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

// ErrInvalidInput is wrapped by every input check failure.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultPersonaCount = 3
	MaxPersonaCount     = 8
)

// Inputs are the user supplied values of one step invocation. Each step
// reads only the fields it documents.
type Inputs struct {
	Focus      string   `json:"focus,omitempty" yaml:"focus,omitempty"`
	Count      int      `json:"count,omitempty" yaml:"count,omitempty"`
	Artifact   string   `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	PersonaIDs []string `json:"persona_ids,omitempty" yaml:"persona_ids,omitempty"`
	TestType   string   `json:"test_type,omitempty" yaml:"test_type,omitempty"`
	OptionA    string   `json:"option_a,omitempty" yaml:"option_a,omitempty"`
	OptionB    string   `json:"option_b,omitempty" yaml:"option_b,omitempty"`
	Goals      string   `json:"goals,omitempty" yaml:"goals,omitempty"`
}

// Upstream is a typed view of the records a step may read.
type Upstream struct {
	Analysis  *marketing.MarketAnalysis
	Personas  []marketing.ReaderPersona
	Titles    []marketing.TitleFeedback
	Covers    []marketing.CoverFeedback
	Blurbs    []marketing.BlurbFeedback
	Tests     []marketing.ABTestResult
	Strategy  *marketing.MarketingStrategy
	Completed []workflow.StepID
}

// RequestContext is everything an adapter needs to build a request and
// check the answer. Attempt is zero on the first request.
type RequestContext struct {
	Step     workflow.StepID
	Book     marketing.BookContext
	Inputs   Inputs
	Upstream Upstream
	Attempt  int
	Now      time.Time
}

// Descriptor is shared by model backed and local steps.
type Descriptor interface {
	Step() workflow.StepID
	// Inputs lists the upstream steps whose records the adapter reads.
	Inputs() []workflow.StepID
	Shape() string
	CheckInputs(in Inputs) error
}

// Adapter is a step answered by the model.
type Adapter interface {
	Descriptor
	BuildRequest(rc RequestContext) (string, error)
	Extract(e *extract.Engine, raw string, rc RequestContext) (any, extract.Method, error)
}

// LocalAdapter is a step computed from session data alone.
type LocalAdapter interface {
	Descriptor
	Compute(rc RequestContext) (any, error)
}

func inputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Registry holds one adapter per step.
type Registry struct {
	prompts *PromptCache
	model   map[workflow.StepID]Adapter
	local   map[workflow.StepID]LocalAdapter
}

// NewRegistry builds the marketing adapters and parses their templates.
func NewRegistry(prompts *PromptCache) (*Registry, error) {
	if prompts == nil {
		prompts = NewPromptCache(nil)
	}
	r := &Registry{
		prompts: prompts,
		model:   make(map[workflow.StepID]Adapter),
		local:   make(map[workflow.StepID]LocalAdapter),
	}
	for _, a := range modelAdapters(prompts) {
		r.model[a.Step()] = a
	}
	r.local[workflow.Dashboard] = dashboard{}

	if err := prompts.Preload(templateNames...); err != nil {
		return nil, err
	}
	return r, nil
}

// Adapter returns the model backed adapter for id.
func (r *Registry) Adapter(id workflow.StepID) (Adapter, bool) {
	a, ok := r.model[id]
	return a, ok
}

// Local returns the local adapter for id.
func (r *Registry) Local(id workflow.StepID) (LocalAdapter, bool) {
	a, ok := r.local[id]
	return a, ok
}

// Descriptor returns whichever adapter handles id.
func (r *Registry) Descriptor(id workflow.StepID) (Descriptor, bool) {
	if a, ok := r.model[id]; ok {
		return a, true
	}
	if a, ok := r.local[id]; ok {
		return a, true
	}
	return nil, false
}
