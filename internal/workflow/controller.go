package workflow

import (
	"fmt"
	"log/slog"
	"sync"
)

// Snapshot is a consistent copy of controller state, suitable for
// checkpointing. History values are the records passed to MarkComplete.
type Snapshot struct {
	Progress []StepID         `json:"progress"`
	Current  StepID           `json:"current_step,omitempty"`
	History  map[StepID][]any `json:"history,omitempty"`
}

// Controller owns session progress. MarkComplete and Restore are the only
// writers; every read returns a copy. Stored records are values and should
// be treated as immutable by callers.
type Controller struct {
	catalog *Catalog
	logger  *slog.Logger

	mu       sync.RWMutex
	progress []StepID
	done     map[StepID]bool
	current  StepID
	history  map[StepID][]any
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(catalog *Catalog, opts ...Option) *Controller {
	c := &Controller{
		catalog: catalog,
		logger:  slog.Default().With("component", "workflow"),
		done:    make(map[StepID]bool),
		history: make(map[StepID][]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Catalog() *Catalog {
	return c.catalog
}

// IsAccessible reports whether every prerequisite of id is complete.
// Unknown steps are never accessible.
func (c *Controller) IsAccessible(id StepID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	step, ok := c.catalog.Step(id)
	return ok && len(step.Unmet(c.isDone)) == 0
}

// BlockedBy lists the unmet requirements of id.
func (c *Controller) BlockedBy(id StepID) ([]string, error) {
	step, ok := c.catalog.Step(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return step.Unmet(c.isDone), nil
}

// Accessible returns the accessible steps in dependency order.
func (c *Controller) Accessible() []StepID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []StepID
	for _, id := range c.catalog.order {
		step := c.catalog.steps[id]
		if len(step.Unmet(c.isDone)) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// MarkComplete records a completed invocation of id. Progress gains id at
// most once; data is appended or replaced according to the step's
// retention. On error nothing changes.
func (c *Controller) MarkComplete(id StepID, data any) error {
	step, ok := c.catalog.Step(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if missing := step.Unmet(c.isDone); len(missing) > 0 {
		return &NotAccessibleError{Step: id, Missing: missing}
	}

	if step.Merge != nil {
		merged, err := step.Merge(append([]any(nil), c.history[id]...), data)
		if err != nil {
			return fmt.Errorf("merge %s: %w", id, err)
		}
		data = merged
	}

	if step.Retention == RetainAll {
		c.history[id] = append(c.history[id], data)
	} else {
		c.history[id] = []any{data}
	}

	first := !c.done[id]
	if first {
		c.done[id] = true
		c.progress = append(c.progress, id)
	}
	c.logger.Debug("step completed", "step", id, "first", first, "rounds", len(c.history[id]))
	return nil
}

// Completed reports whether id is in progress.
func (c *Controller) Completed(id StepID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done[id]
}

// Progress returns completed step ids in completion order.
func (c *Controller) Progress() []StepID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]StepID(nil), c.progress...)
}

func (c *Controller) CurrentStep() StepID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetCurrentStep moves the cursor to id if it is accessible.
func (c *Controller) SetCurrentStep(id StepID) error {
	step, ok := c.catalog.Step(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if missing := step.Unmet(c.isDone); len(missing) > 0 {
		return &NotAccessibleError{Step: id, Missing: missing}
	}
	c.current = id
	return nil
}

// StepData returns the latest record stored for id.
func (c *Controller) StepData(id StepID) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rounds := c.history[id]
	if len(rounds) == 0 {
		return nil, false
	}
	return rounds[len(rounds)-1], true
}

// History returns every stored round for id, oldest first.
func (c *Controller) History(id StepID) []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]any(nil), c.history[id]...)
}

// Inputs returns the latest record of each listed step that has one.
func (c *Controller) Inputs(ids ...StepID) map[StepID]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[StepID]any, len(ids))
	for _, id := range ids {
		if rounds := c.history[id]; len(rounds) > 0 {
			out[id] = rounds[len(rounds)-1]
		}
	}
	return out
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	history := make(map[StepID][]any, len(c.history))
	for id, rounds := range c.history {
		history[id] = append([]any(nil), rounds...)
	}
	return Snapshot{
		Progress: append([]StepID(nil), c.progress...),
		Current:  c.current,
		History:  history,
	}
}

// Restore replaces controller state with s after checking it against the
// catalog: every step must be known, completed steps must have their
// prerequisites completed, and history may only exist for completed steps.
// Merge hooks are not rerun.
func (c *Controller) Restore(s Snapshot) error {
	done := make(map[StepID]bool, len(s.Progress))
	for _, id := range s.Progress {
		if _, ok := c.catalog.Step(id); !ok {
			return fmt.Errorf("%w: %w: %s", ErrInvalidRestore, ErrUnknownStep, id)
		}
		if done[id] {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidRestore, id)
		}
		done[id] = true
	}
	isDone := func(id StepID) bool { return done[id] }
	for _, id := range s.Progress {
		step, _ := c.catalog.Step(id)
		if missing := step.Unmet(isDone); len(missing) > 0 {
			return fmt.Errorf("%w: %s completed without %v", ErrInvalidRestore, id, missing)
		}
	}
	for id := range s.History {
		if !done[id] {
			return fmt.Errorf("%w: data for incomplete step %s", ErrInvalidRestore, id)
		}
	}
	if s.Current != "" {
		step, ok := c.catalog.Step(s.Current)
		if !ok {
			return fmt.Errorf("%w: %w: %s", ErrInvalidRestore, ErrUnknownStep, s.Current)
		}
		if len(step.Unmet(isDone)) > 0 {
			return fmt.Errorf("%w: current step %s is not accessible", ErrInvalidRestore, s.Current)
		}
	}

	history := make(map[StepID][]any, len(s.History))
	for id, rounds := range s.History {
		history[id] = append([]any(nil), rounds...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = append([]StepID(nil), s.Progress...)
	c.done = done
	c.current = s.Current
	c.history = history
	c.logger.Debug("state restored", "completed", len(c.progress), "current", c.current)
	return nil
}

// isDone must be called with mu held.
func (c *Controller) isDone(id StepID) bool {
	return c.done[id]
}
