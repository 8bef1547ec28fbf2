package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
)

// DefaultTTL is the TTL written with every upsert.
const DefaultTTL = 120

// Executor writes record sets.
type Executor struct {
	backend hosting.Backend
	ttl     int
	logger  *slog.Logger
}

// ExecutorOption is a functional option for configuring an Executor.
type ExecutorOption func(*Executor)

// WithTTL sets the TTL written with every upsert. Values <= 0 keep
// DefaultTTL.
func WithTTL(ttl int) ExecutorOption {
	return func(e *Executor) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithExecutorLogger sets a custom logger for the executor.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an Executor writing through backend.
func NewExecutor(backend hosting.Backend, opts ...ExecutorOption) *Executor {
	e := &Executor{
		backend: backend,
		ttl:     DefaultTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the TTL used for writes.
func (e *Executor) TTL() int {
	return e.ttl
}

// Apply creates or replaces the record set for name so that it holds
// exactly addr. It issues one upsert and never retries.
func (e *Executor) Apply(ctx context.Context, zoneID, name string, addr netip.Addr) error {
	addr = addr.Unmap()
	rs := hosting.RecordSet{
		Name:   name,
		Type:   hosting.RecordTypeFor(addr),
		Values: []string{addr.String()},
		TTL:    e.ttl,
	}

	if err := e.backend.UpsertRecordSet(ctx, zoneID, rs); err != nil {
		return fmt.Errorf("upserting %s %s in zone %s: %w", rs.Type, name, zoneID, err)
	}

	e.logger.Info("record set upserted",
		slog.String("backend", e.backend.Name()),
		slog.String("zone", zoneID),
		slog.String("name", name),
		slog.String("type", string(rs.Type)),
		slog.String("value", rs.Values[0]),
		slog.Int("ttl", rs.TTL),
	)
	return nil
}
