package operation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/pkg/errors"
)

// Invocation outcomes, used as metric labels and span attributes.
const (
	outcomeOK         = "ok"
	outcomeValidation = "validation_error"
	outcomeNotFound   = "not_found"
	outcomeTransport  = "transport_error"
	outcomeAuth       = "auth_error"
	outcomeError      = "error"
)

// unknownOperation labels metrics for names that are not registered, so
// arbitrary caller input cannot create new series.
const unknownOperation = "unknown"

var tracer = otel.Tracer("github.com/tombee/connectkit/internal/operation")

// Handler runs one operation against validated input. creds may be nil for
// operations that need no authentication.
type Handler func(ctx context.Context, in Input, creds *oauth.Credentials) (*Envelope, error)

// Descriptor describes a registered operation.
type Descriptor struct {
	Name        string
	Description string
	Category    string
	Tags        []string

	// Input is the Object schema arguments are validated against.
	Input *Schema

	Handler Handler

	// ResultFilter is a jq expression applied to JSON results.
	ResultFilter string

	filter *resultFilter
}

func (d *Descriptor) clone() Descriptor {
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	return c
}

// Option configures a Descriptor at registration.
type Option func(*Descriptor)

func WithDescription(text string) Option {
	return func(d *Descriptor) { d.Description = text }
}

func WithCategory(category string) Option {
	return func(d *Descriptor) { d.Category = category }
}

func WithTags(tags ...string) Option {
	return func(d *Descriptor) { d.Tags = append([]string(nil), tags...) }
}

// WithResultFilter reshapes successful JSON results with a jq expression.
// The expression is compiled by Register.
func WithResultFilter(expression string) Option {
	return func(d *Descriptor) { d.ResultFilter = expression }
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry maps operation names to descriptors. Registration normally
// happens once at startup; Invoke is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]*Descriptor
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		ops:    make(map[string]*Descriptor),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.WithComponent(r.logger, "registry")
	return r
}

// Register adds an operation. A duplicate name is rejected and leaves the
// existing registration in place.
func (r *Registry) Register(name string, input *Schema, handler Handler, opts ...Option) error {
	key := "operation." + name
	if name == "" {
		return &errors.ConfigurationError{Key: "operation", Reason: "operation name is required"}
	}
	if handler == nil {
		return &errors.ConfigurationError{Key: key, Reason: "handler is required"}
	}
	if input == nil || input.Kind() != KindObject {
		return &errors.ConfigurationError{Key: key, Reason: "input schema must be an object"}
	}
	if path, err := input.checkDefaults(""); err != nil {
		return &errors.ConfigurationError{Key: joinPath(key, path), Reason: "default does not match its schema", Cause: err}
	}

	d := &Descriptor{Name: name, Input: input, Handler: handler}
	for _, opt := range opts {
		opt(d)
	}
	if d.ResultFilter != "" {
		f, err := compileFilter(d.ResultFilter)
		if err != nil {
			return &errors.ConfigurationError{Key: key + ".result_filter", Reason: "invalid jq expression", Cause: err}
		}
		d.filter = f
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return &errors.ConfigurationError{Key: key, Reason: "operation already registered"}
	}
	r.ops[name] = d
	return nil
}

// Get returns a copy of the named descriptor.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.ops[name]
	if !ok {
		return Descriptor{}, &errors.NotFoundError{Resource: "operation", ID: name}
	}
	return d.clone(), nil
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns copies of every descriptor, sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.ops))
	for _, d := range r.ops {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select returns the sorted names matching any of the glob patterns, for
// example "slack.*". With no patterns every name is returned.
func (r *Registry) Select(patterns ...string) ([]string, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &errors.ValidationError{Field: "pattern", Reason: fmt.Sprintf("invalid glob %q", p)}
		}
	}

	names := r.List()
	if len(patterns) == 0 {
		return names, nil
	}

	var out []string
	for _, name := range names {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				out = append(out, name)
				break
			}
		}
	}
	return out, nil
}

// Invoke validates rawArgs against the operation's schema and, only if they
// are valid, runs its handler.
//
// On failure both an error and an error envelope are returned: the envelope
// is ready to hand to the caller, and the error keeps its concrete type
// (ValidationError, TransportError, AuthError, NotFoundError) for callers
// that branch on it. A successful handler result is returned unchanged,
// except that a declared result filter is applied to its JSON blocks.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs map[string]any, creds *oauth.Credentials) (*Envelope, error) {
	start := time.Now()

	r.mu.RLock()
	d, ok := r.ops[name]
	r.mu.RUnlock()

	label := name
	if !ok {
		label = unknownOperation
	}

	ctx, span := tracer.Start(ctx, "operation.invoke",
		trace.WithAttributes(attribute.String("operation.name", label)),
	)
	defer span.End()

	logger := log.WithOperation(r.logger, label)
	logger.Debug("invoking operation")

	var (
		env *Envelope
		err error
	)
	if !ok {
		err = &errors.NotFoundError{Resource: "operation", ID: name}
	} else {
		env, err = r.invoke(ctx, d, rawArgs, creds)
	}

	outcome := outcomeFor(err)
	span.SetAttributes(attribute.String("operation.outcome", outcome))
	recordInvocation(label, outcome, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("operation failed",
			slog.String(log.ErrorTypeKey, outcome),
			slog.Bool("retryable", errors.Retryable(err)),
			log.Error(err),
			slog.Int64(log.DurationKey, time.Since(start).Milliseconds()),
		)
		return ErrorEnvelope(err), err
	}

	logger.Debug("operation completed",
		slog.Int64(log.DurationKey, time.Since(start).Milliseconds()),
	)
	return env, nil
}

func (r *Registry) invoke(ctx context.Context, d *Descriptor, rawArgs map[string]any, creds *oauth.Credentials) (*Envelope, error) {
	if rawArgs == nil {
		rawArgs = map[string]any{}
	}

	validated, err := d.Input.validateObject("", rawArgs)
	if err != nil {
		return nil, err
	}

	env, err := d.Handler(ctx, Input(validated), creds)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = &Envelope{}
	}

	if d.filter != nil && !env.IsError {
		return d.filter.apply(ctx, env)
	}
	return env, nil
}

func outcomeFor(err error) string {
	if err == nil {
		return outcomeOK
	}
	switch errors.Classify(err) {
	case errors.TypeValidation:
		return outcomeValidation
	case errors.TypeNotFound:
		return outcomeNotFound
	case errors.TypeTransport:
		return outcomeTransport
	case errors.TypeAuth:
		return outcomeAuth
	default:
		return outcomeError
	}
}
