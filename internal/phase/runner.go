// Package phase runs workflow steps: it gates on accessibility, asks the
// model, extracts a typed record and completes the step.
package phase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vampirenirmal/bookmarketer/internal/agent"
	"github.com/vampirenirmal/bookmarketer/internal/extract"
	"github.com/vampirenirmal/bookmarketer/internal/metrics"
	"github.com/vampirenirmal/bookmarketer/internal/modules"
	"github.com/vampirenirmal/bookmarketer/internal/workflow"
)

const (
	DefaultMaxOutputTokens = 4096
	DefaultConcurrency     = 3
)

// Session is the state a runner reads from and completes into.
type Session interface {
	BlockedBy(id workflow.StepID) ([]string, error)
	// RequestContext returns a consistent view of the records of reads.
	RequestContext(id workflow.StepID, reads []workflow.StepID, in modules.Inputs) (modules.RequestContext, error)
	// Complete records rec and returns it as stored.
	Complete(id workflow.StepID, rec any) (any, error)
}

// Result describes one completed step invocation.
type Result struct {
	Step     workflow.StepID
	Record   any
	Method   extract.Method // empty for local steps
	Attempts int
	Duration time.Duration
}

// Runner is safe for concurrent use; RunEach relies on that.
type Runner struct {
	session  Session
	client   agent.AIClient
	registry *modules.Registry
	engine   *extract.Engine
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	maxOutputTokens  int
	malformedRetries int
	concurrency      int
	stepTimeout      time.Duration
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithEngine(e *extract.Engine) Option {
	return func(r *Runner) {
		r.engine = e
	}
}

// WithMalformedRetries re-asks up to n more times when no JSON object could
// be recovered. Each retry carries a higher attempt number.
func WithMalformedRetries(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.malformedRetries = n
		}
	}
}

// WithConcurrency bounds RunEach fan-out.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithMaxOutputTokens(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxOutputTokens = n
		}
	}
}

// WithStepTimeout bounds a single invocation, retries included.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.stepTimeout = d
	}
}

func NewRunner(session Session, client agent.AIClient, registry *modules.Registry, opts ...Option) *Runner {
	r := &Runner{
		session:         session,
		client:          client,
		registry:        registry,
		logger:          slog.Default().With("component", "phase"),
		now:             time.Now,
		maxOutputTokens: DefaultMaxOutputTokens,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		r.engine = extract.NewEngine(extract.WithMetrics(r.metrics))
	}
	return r
}

// Run invokes step once. On failure the session is unchanged and the error
// is a *StepError.
func (r *Runner) Run(ctx context.Context, step workflow.StepID, in modules.Inputs) (Result, error) {
	start := r.now()
	parent := ctx
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}

	res, err := r.run(ctx, step, in)
	res.Duration = r.now().Sub(start)
	if err != nil {
		// The step's own deadline is a slow provider, not a caller cancel.
		if r.stepTimeout > 0 && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && Classify(err) == ClassCanceled {
			err = &StepError{
				Step:     step,
				Class:    ClassTransport,
				Attempts: res.Attempts,
				Cause:    agent.NetworkError("runner", fmt.Errorf("step timed out after %s: %w", r.stepTimeout, ctx.Err())),
			}
		}
		r.metrics.ObserveStep(string(step), string(Classify(err)))
		r.logger.Warn("step failed",
			"step", step,
			"class", Classify(err),
			"attempts", res.Attempts,
			"error", err,
		)
		return res, err
	}

	r.metrics.ObserveStep(string(step), "ok")
	r.logger.Info("step completed",
		"step", step,
		"method", res.Method,
		"attempts", res.Attempts,
		"duration", res.Duration,
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, step workflow.StepID, in modules.Inputs) (Result, error) {
	res := Result{Step: step}

	desc, ok := r.registry.Descriptor(step)
	if !ok {
		return res, stepError(step, 0, fmt.Errorf("%w: %s", workflow.ErrUnknownStep, step))
	}
	if err := desc.CheckInputs(in); err != nil {
		return res, stepError(step, 0, err)
	}
	if err := r.gate(step); err != nil {
		return res, err
	}

	if local, ok := r.registry.Local(step); ok {
		return r.runLocal(ctx, local, in)
	}
	adapter, _ := r.registry.Adapter(step)

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1
		rc, err := r.session.RequestContext(step, adapter.Inputs(), in)
		if err != nil {
			return res, stepError(step, res.Attempts, err)
		}
		rc.Attempt = attempt
		rc.Now = r.now()

		prompt, err := adapter.BuildRequest(rc)
		if err != nil {
			return res, stepError(step, res.Attempts, err)
		}

		r.logger.Debug("asking model", "step", step, "attempt", attempt, "prompt_bytes", len(prompt))
		raw, err := r.client.Ask(ctx, prompt, r.maxOutputTokens)
		if err != nil {
			if ctx.Err() != nil {
				return res, canceled(step, res.Attempts, err)
			}
			return res, stepError(step, res.Attempts, err)
		}

		rec, method, err := adapter.Extract(r.engine, raw, rc)
		res.Method = method
		if extract.IsMalformed(err) && attempt < r.malformedRetries {
			r.logger.Warn("malformed model output, retrying with stricter request",
				"step", step,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		if err != nil {
			return res, stepError(step, res.Attempts, err)
		}

		return r.complete(ctx, res, rec)
	}
}

func (r *Runner) runLocal(ctx context.Context, local modules.LocalAdapter, in modules.Inputs) (Result, error) {
	res := Result{Step: local.Step(), Attempts: 1}
	rc, err := r.session.RequestContext(res.Step, local.Inputs(), in)
	if err != nil {
		return res, stepError(res.Step, 1, err)
	}
	rc.Now = r.now()
	rec, err := local.Compute(rc)
	if err != nil {
		return res, stepError(res.Step, 1, err)
	}
	return r.complete(ctx, res, rec)
}

// complete is the only place a step invocation writes to the session.
func (r *Runner) complete(ctx context.Context, res Result, rec any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return res, canceled(res.Step, res.Attempts, err)
	}
	stored, err := r.session.Complete(res.Step, rec)
	if err != nil {
		return res, stepError(res.Step, res.Attempts, err)
	}
	res.Record = stored
	return res, nil
}

func (r *Runner) gate(step workflow.StepID) error {
	missing, err := r.session.BlockedBy(step)
	if err != nil {
		return stepError(step, 0, err)
	}
	if len(missing) > 0 {
		return stepError(step, 0, &workflow.NotAccessibleError{Step: step, Missing: missing})
	}
	return nil
}
