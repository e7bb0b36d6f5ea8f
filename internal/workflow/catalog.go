// Package workflow gates analysis steps behind a declarative prerequisite
// graph and records which steps have completed.
package workflow

import (
	"fmt"
	"sort"
	"strings"
)

type StepID string

const (
	Landscape StepID = "landscape"
	Audience  StepID = "audience"
	Titles    StepID = "titles"
	Covers    StepID = "covers"
	Blurbs    StepID = "blurbs"
	Testing   StepID = "testing"
	Strategy  StepID = "strategy"
	Dashboard StepID = "dashboard"
)

// Retention decides what repeated completions of a step keep.
type Retention int

const (
	// RetainLatest replaces earlier data; history holds one entry.
	RetainLatest Retention = iota
	// RetainAll appends every round.
	RetainAll
)

func (r Retention) String() string {
	if r == RetainAll {
		return "all"
	}
	return "latest"
}

// MergeFunc runs under the controller's write lock before data is stored. It
// sees the step's prior rounds and returns the value to store.
type MergeFunc func(history []any, data any) (any, error)

// Step is a gated unit of work. A step is accessible when every Requires
// entry is complete and each AnyOf group has at least one complete member.
type Step struct {
	ID          StepID
	Description string
	Requires    []StepID
	AnyOf       [][]StepID
	Retention   Retention
	Merge       MergeFunc
}

// Catalog is an immutable, validated set of steps.
type Catalog struct {
	steps map[StepID]Step
	order []StepID
}

// DefaultSteps returns the marketing step descriptors. The slice is fresh on
// every call so callers can attach Merge hooks before building a catalog.
func DefaultSteps() []Step {
	return []Step{
		{ID: Landscape, Description: "market position and trends", Retention: RetainLatest},
		{ID: Audience, Description: "reader personas", Requires: []StepID{Landscape}, Retention: RetainAll},
		{ID: Titles, Description: "title feedback", Requires: []StepID{Audience}, Retention: RetainAll},
		{ID: Covers, Description: "cover concept feedback", Requires: []StepID{Audience}, Retention: RetainAll},
		{ID: Blurbs, Description: "blurb feedback", Requires: []StepID{Audience}, Retention: RetainAll},
		{ID: Testing, Description: "simulated A/B tests", Requires: []StepID{Titles, Covers, Blurbs}, Retention: RetainAll},
		{ID: Strategy, Description: "marketing strategy", Requires: []StepID{Titles, Audience}, Retention: RetainLatest},
		{
			ID:          Dashboard,
			Description: "results roll-up",
			Requires:    []StepID{Audience},
			AnyOf:       [][]StepID{{Titles, Covers, Blurbs}},
			Retention:   RetainLatest,
		},
	}
}

// DefaultCatalog builds the marketing catalog without hooks.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSteps()...)
	if err != nil {
		panic(fmt.Sprintf("workflow: default catalog: %v", err))
	}
	return c
}

// NewCatalog validates steps and computes a topological order. Unknown or
// self references, empty groups, duplicates and cycles are rejected.
func NewCatalog(steps ...Step) (*Catalog, error) {
	c := &Catalog{steps: make(map[StepID]Step, len(steps))}
	var declared []StepID
	for _, s := range steps {
		if s.ID == "" {
			return nil, &CatalogError{Reason: "empty step id", Err: ErrInvalidCatalog}
		}
		if _, dup := c.steps[s.ID]; dup {
			return nil, &CatalogError{Step: s.ID, Reason: "declared twice", Err: ErrInvalidCatalog}
		}
		c.steps[s.ID] = s
		declared = append(declared, s.ID)
	}

	for _, s := range steps {
		for _, dep := range s.dependencies() {
			if dep == s.ID {
				return nil, &CatalogError{Step: s.ID, Reason: "requires itself", Err: ErrInvalidCatalog}
			}
			if _, ok := c.steps[dep]; !ok {
				return nil, &CatalogError{Step: s.ID, Reason: fmt.Sprintf("requires unknown step %s", dep), Err: ErrInvalidCatalog}
			}
		}
		for _, group := range s.AnyOf {
			if len(group) == 0 {
				return nil, &CatalogError{Step: s.ID, Reason: "empty any-of group", Err: ErrInvalidCatalog}
			}
		}
	}

	order, err := c.topologicalSort(declared)
	if err != nil {
		return nil, err
	}
	c.order = order
	return c, nil
}

// topologicalSort runs Kahn's algorithm; ties keep declaration order.
func (c *Catalog) topologicalSort(declared []StepID) ([]StepID, error) {
	inDegree := make(map[StepID]int, len(declared))
	dependents := make(map[StepID][]StepID, len(declared))
	for _, id := range declared {
		deps := unique(c.steps[id].dependencies())
		inDegree[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	position := make(map[StepID]int, len(declared))
	for i, id := range declared {
		position[id] = i
	}

	var queue []StepID
	for _, id := range declared {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]StepID, 0, len(declared))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
		sort.SliceStable(queue, func(i, j int) bool { return position[queue[i]] < position[queue[j]] })
	}

	if len(order) != len(declared) {
		var stuck []string
		for _, id := range declared {
			if inDegree[id] > 0 {
				stuck = append(stuck, string(id))
			}
		}
		return nil, &CatalogError{
			Step:   StepID(stuck[0]),
			Reason: "cycle through " + strings.Join(stuck, ", "),
			Err:    ErrCycle,
		}
	}
	return order, nil
}

// Step returns the descriptor for id.
func (c *Catalog) Step(id StepID) (Step, bool) {
	s, ok := c.steps[id]
	return s, ok
}

// Order returns step ids in dependency order.
func (c *Catalog) Order() []StepID {
	return append([]StepID(nil), c.order...)
}

// Unmet lists the requirements of s not satisfied by done. Any-of groups are
// reported as "a|b|c".
func (s Step) Unmet(done func(StepID) bool) []string {
	var missing []string
	for _, dep := range s.Requires {
		if !done(dep) {
			missing = append(missing, string(dep))
		}
	}
	for _, group := range s.AnyOf {
		satisfied := false
		names := make([]string, 0, len(group))
		for _, dep := range group {
			names = append(names, string(dep))
			if done(dep) {
				satisfied = true
			}
		}
		if !satisfied {
			missing = append(missing, strings.Join(names, "|"))
		}
	}
	return missing
}

func (s Step) dependencies() []StepID {
	deps := append([]StepID(nil), s.Requires...)
	for _, group := range s.AnyOf {
		deps = append(deps, group...)
	}
	return deps
}

func unique(ids []StepID) []StepID {
	seen := make(map[StepID]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
