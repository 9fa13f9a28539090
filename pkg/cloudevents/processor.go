package cloudevents

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jadehq/jade/pkg/eventsourcing"
	"github.com/jadehq/jade/pkg/multitenancy"
	"github.com/jadehq/jade/pkg/observability"
)

// Mode selects how accepted commands leave the ingress.
type Mode string

const (
	// ModeDirect decodes and dispatches the command synchronously.
	ModeDirect Mode = "direct"

	// ModeQueued enqueues the envelope untouched; a worker dispatches it
	// later.
	ModeQueued Mode = "queued"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeQueued:
		return Mode(s), nil
	default:
		return "", errors.New("mode must be \"direct\" or \"queued\"")
	}
}

// Publisher hands a validated envelope to a durable queue. Implemented by
// the queue package; declared here so the ingress does not depend on a
// particular engine.
type Publisher interface {
	Publish(ctx context.Context, ce *CloudEvent) error
}

// Processor validates CloudEvents envelopes and routes them: in direct
// mode to the command bus, in queued mode to a publisher. The same
// Dispatch procedure serves the HTTP ingress and the queue receivers.
type Processor struct {
	mode      Mode
	bus       *eventsourcing.Bus
	registry  *eventsourcing.Registry
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger for ingress diagnostics.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

// WithProcessorMetrics counts processed envelopes by outcome.
func WithProcessorMetrics(m *observability.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// WithPublisher enables queued mode with the given publisher.
func WithPublisher(pub Publisher) ProcessorOption {
	return func(p *Processor) {
		p.mode = ModeQueued
		p.publisher = pub
	}
}

// NewProcessor creates a direct-mode processor over a registry and its
// bus. Add WithPublisher to switch to queued mode.
func NewProcessor(registry *eventsourcing.Registry, bus *eventsourcing.Bus, opts ...ProcessorOption) *Processor {
	p := &Processor{
		mode:     ModeDirect,
		bus:      bus,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the configured ingress mode.
func (p *Processor) Mode() Mode {
	return p.mode
}

// Schemas returns the command schema URNs this processor can dispatch.
func (p *Processor) Schemas() []string {
	return p.registry.Schemas()
}

// Process validates an envelope and routes it per the configured mode.
// The returned Result always carries the envelope id and a transport
// status mapping.
func (p *Processor) Process(ctx context.Context, ce *CloudEvent) Result {
	result := p.process(ctx, ce)
	if p.metrics != nil {
		p.metrics.RecordIngress(ctx, string(result.Status))
	}
	return result
}

func (p *Processor) process(ctx context.Context, ce *CloudEvent) Result {
	if err := ce.Validate(); err != nil {
		return rejected(ce.ID, 400, err)
	}
	if _, err := ce.CommandSchema(); err != nil {
		return rejected(ce.ID, 422, err)
	}
	if len(ce.Data) == 0 {
		return rejected(ce.ID, 422, &EnvelopeInvalidError{Msg: "missing data"})
	}

	if p.mode == ModeQueued {
		if err := p.publisher.Publish(ctx, ce); err != nil {
			p.logger.Error("enqueue failed", "event_id", ce.ID, "error", err)
			return failed(ce.ID, err)
		}
		return accepted(ce.ID)
	}

	return p.Dispatch(ctx, ce)
}

// Dispatch decodes the command out of a validated envelope and sends it
// on the bus. Queue receivers call this directly; Process delegates to it
// in direct mode.
func (p *Processor) Dispatch(ctx context.Context, ce *CloudEvent) Result {
	cmd, err := p.registry.DeserializeCommand(ce.DataSchema, ce.Data)
	if err != nil {
		return rejected(ce.ID, 422, err)
	}

	ctx = p.annotate(ctx, ce, cmd)

	err = p.bus.Send(ctx, cmd)
	switch {
	case err == nil:
		return accepted(ce.ID)
	case errors.Is(err, eventsourcing.ErrNoHandler):
		return rejected(ce.ID, 422, err)
	default:
		p.logger.Error("command handling failed",
			"event_id", ce.ID,
			"schema", ce.DataSchema,
			"error", err,
		)
		return failed(ce.ID, err)
	}
}

// annotate copies envelope identity onto the command metadata and puts
// the tenant, when present, into the context.
func (p *Processor) annotate(ctx context.Context, ce *CloudEvent, cmd eventsourcing.Command) context.Context {
	meta := cmd.Meta()
	if meta.ID == "" {
		meta.ID = ce.ID
	}
	if !ce.Time.IsZero() && meta.Timestamp.IsZero() {
		meta.Timestamp = ce.Time
	}
	if ext := ce.Jade; ext != nil {
		if meta.CorrelationID == "" {
			meta.CorrelationID = ext.CorrelationID
		}
		if meta.CausationID == "" {
			meta.CausationID = ext.CausationID
		}
		if meta.UserID == "" {
			meta.UserID = ext.UserID
		}
		if ext.Tenant != "" {
			ctx = multitenancy.WithTenantID(ctx, ext.Tenant)
		}
	}
	meta.Fill()
	return ctx
}
