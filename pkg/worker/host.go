package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Host runs a set of receivers in parallel as one runner service. Stop
// cancels all receivers and waits for them to drain their in-flight
// message.
type Host struct {
	receivers []*Receiver
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the lifecycle logger.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) { h.logger = logger }
}

// NewHost creates a host over the given receivers.
func NewHost(receivers []*Receiver, opts ...HostOption) *Host {
	h := &Host{
		receivers: receivers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements runner.Service.
func (h *Host) Name() string { return "worker-host" }

// Start launches all receivers. The passed context only bounds startup;
// the receivers run on the host's own context until Stop.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, r := range h.receivers {
		wg.Add(1)
		go func(r *Receiver) {
			defer wg.Done()
			h.logger.Info("receiver started", "queue", r.QueueName())
			if err := r.Run(runCtx); err != nil {
				h.logger.Error("receiver exited", "queue", r.QueueName(), "error", err)
				return
			}
			h.logger.Info("receiver stopped", "queue", r.QueueName())
		}(r)
	}
	go func() {
		wg.Wait()
		close(h.done)
	}()
	return nil
}

// Stop signals all receivers and waits for them to return, bounded by
// the context.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
