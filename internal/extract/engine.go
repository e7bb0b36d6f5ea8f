// Package extract recovers structured records from free-form model output.
//
// Output is tried against an ordered chain of strategies: the whole payload
// as JSON, fenced code blocks, a string-aware bracket scan, and finally a
// conservative repair pass for truncated objects. The first candidate that
// parses wins and is then checked against the record shape.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/vampirenirmal/bookmarketer/internal/metrics"
)

// Method names the recovery stage that produced a record.
type Method string

const (
	MethodDirect  Method = "direct"
	MethodFenced  Method = "fenced"
	MethodBracket Method = "bracket"
	MethodRepair  Method = "repair"
)

// DefaultPreviewLimit bounds the payload excerpt carried by MalformedOutputError.
const DefaultPreviewLimit = 256

// Shape describes an expected record type. Check, when set, runs after the
// struct tags have been validated and enforces cross-field rules.
type Shape[T any] struct {
	Name  string
	Check func(*T) error
}

// Engine is safe for concurrent use.
type Engine struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	validate     *validator.Validate
	previewLimit int
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithPreviewLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.previewLimit = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:       slog.Default().With("component", "extract"),
		validate:     newValidator(),
		previewLimit: DefaultPreviewLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract recovers a T from raw and validates it against shape.
func Extract[T any](e *Engine, raw string, shape Shape[T]) (T, Method, error) {
	var out T
	method, err := e.Decode(shape.Name, raw, &out)
	if err != nil {
		var zero T
		return zero, method, err
	}
	if err := e.Validate(shape.Name, &out); err != nil {
		e.observe(shape.Name, method, "schema")
		var zero T
		return zero, method, err
	}
	if shape.Check != nil {
		if err := shape.Check(&out); err != nil {
			e.observe(shape.Name, method, "schema")
			var zero T
			return zero, method, withShape(shape.Name, err)
		}
	}
	e.observe(shape.Name, method, "ok")
	return out, method, nil
}

// Decode runs the recovery chain and unmarshals the first syntactically
// valid object into target. target is only written once a candidate has
// passed json.Valid, so a failed call leaves it untouched.
func (e *Engine) Decode(shape, raw string, target any) (Method, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return e.malformed(shape, raw, errors.New("empty output"))
	}

	if isObject(trimmed) {
		return e.unmarshal(shape, MethodDirect, trimmed, target)
	}

	blocks := fencedBlocks(raw)
	for _, block := range preferObjectBlocks(blocks) {
		body := strings.TrimSpace(block)
		if isObject(body) {
			return e.unmarshal(shape, MethodFenced, body, target)
		}
		for _, candidate := range bracketCandidates(body) {
			if isObject(candidate) {
				return e.unmarshal(shape, MethodFenced, candidate, target)
			}
		}
	}

	for _, candidate := range bracketCandidates(raw) {
		if isObject(candidate) {
			return e.unmarshal(shape, MethodBracket, candidate, target)
		}
	}

	for _, source := range repairSources(blocks, raw) {
		if fixed, ok := repair(source); ok && isObject(fixed) {
			e.logger.Debug("repaired model output", "shape", shape, "original_bytes", len(raw), "repaired_bytes", len(fixed))
			return e.unmarshal(shape, MethodRepair, fixed, target)
		}
	}

	return e.malformed(shape, raw, errors.New("no valid JSON object found"))
}

// Validate checks v's struct tags and reports the first failure.
func (e *Engine) Validate(shape string, v any) error {
	if err := e.validate.Struct(v); err != nil {
		return violationFromValidator(shape, err)
	}
	return nil
}

func (e *Engine) unmarshal(shape string, method Method, doc string, target any) (Method, error) {
	if err := json.Unmarshal([]byte(doc), target); err != nil {
		e.observe(shape, method, "schema")
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return method, &SchemaViolationError{
				Shape:  shape,
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			}
		}
		return method, &SchemaViolationError{Shape: shape, Reason: err.Error()}
	}
	if method != MethodDirect {
		e.logger.Debug("recovered model output", "shape", shape, "method", method)
	}
	return method, nil
}

func (e *Engine) malformed(shape, raw string, cause error) (Method, error) {
	e.observe(shape, "", "malformed")
	p := Preview(raw, e.previewLimit)
	e.logger.Warn("model output could not be parsed", "shape", shape, "bytes", len(raw), "preview", p)
	return "", &MalformedOutputError{Shape: shape, Preview: p, Length: len(raw), Cause: cause}
}

func (e *Engine) observe(shape string, method Method, outcome string) {
	e.metrics.ObserveExtraction(shape, string(method), outcome)
}

func withShape(shape string, err error) error {
	var sv *SchemaViolationError
	if errors.As(err, &sv) && sv.Shape == "" {
		sv.Shape = shape
	}
	return err
}

func isObject(s string) bool {
	return strings.HasPrefix(s, "{") && json.Valid([]byte(s))
}

// Preview returns at most limit bytes of s without splitting a rune.
func Preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
