// Package reconciler brings DNS address records in line with the machine's
// current public IP address.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"sort"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ipweaver/pkg/dnscheck"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

// ErrNoTargets is returned by Run when there is nothing to reconcile.
var ErrNoTargets = errors.New("no targets to reconcile")

// Config holds reconciler configuration options.
type Config struct {
	// ZoneID is the hosted zone holding every target record.
	ZoneID string

	// TTL is written with every upsert. Zero selects DefaultTTL.
	TTL int

	// MaxPages bounds each scan. Zero selects DefaultMaxPages.
	MaxPages int

	// Force skips the pre-check and the comparison and always upserts.
	Force bool

	// DryRun if true, reports writes without applying them.
	DryRun bool
}

// Target is one record to keep in sync.
type Target struct {
	Family     iplookup.Family
	RecordName string
	// Provider is the preferred lookup service ID.
	Provider string
}

// AddressResolver looks up the public address.
type AddressResolver interface {
	Resolve(ctx context.Context, provider string) (iplookup.ResolvedAddress, error)
}

// Prechecker answers whether DNS already serves an address for a name.
type Prechecker interface {
	Check(ctx context.Context, name string, candidate netip.Addr) dnscheck.Result
}

// Reconciler resolves the public address for each target and upserts the
// record when the hosting API holds something else.
type Reconciler struct {
	backend  hosting.Backend
	resolver AddressResolver
	precheck Prechecker
	scanner  *Scanner
	executor *Executor
	config   Config
	out      io.Writer
	logger   *slog.Logger
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// WithOutput sets where report lines are written. io.Discard silences them.
func WithOutput(w io.Writer) Option {
	return func(r *Reconciler) {
		if w != nil {
			r.out = w
		}
	}
}

// WithPrechecker enables the local DNS pre-check.
func WithPrechecker(p Prechecker) Option {
	return func(r *Reconciler) {
		r.precheck = p
	}
}

// New creates a new Reconciler.
func New(backend hosting.Backend, resolver AddressResolver, opts ...Option) *Reconciler {
	r := &Reconciler{
		backend:  backend,
		resolver: resolver,
		out:      os.Stdout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.scanner = NewScanner(backend, WithMaxPages(r.config.MaxPages), WithScannerLogger(r.logger))
	r.executor = NewExecutor(backend, WithTTL(r.config.TTL), WithExecutorLogger(r.logger))
	return r
}

// Run reconciles every target once, IPv4 targets before IPv6 ones.
// A failing target does not stop the others; their errors are joined.
func (r *Reconciler) Run(ctx context.Context, targets []Target) (*Result, error) {
	result := NewResult(r.config.DryRun)
	defer result.Complete()

	if len(targets) == 0 {
		return result, ErrNoTargets
	}

	ordered := append([]Target(nil), targets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Family == iplookup.FamilyV4 && ordered[j].Family != iplookup.FamilyV4
	})

	r.logger.Info("starting reconciliation",
		slog.String("backend", r.backend.Name()),
		slog.String("zone", r.config.ZoneID),
		slog.Int("targets", len(ordered)),
		slog.Bool("force", r.config.Force),
		slog.Bool("dry_run", r.config.DryRun),
	)

	var errs []error
	for _, t := range ordered {
		action, err := r.reconcileTarget(ctx, t)
		result.AddAction(action)

		label := string(action.Outcome)
		if err != nil {
			label = "error"
			errs = append(errs, fmt.Errorf("%s record %s: %w", t.Family, t.RecordName, err))
			r.logger.Error("target failed",
				slog.String("family", t.Family.String()),
				slog.String("name", t.RecordName),
				slog.String("error", err.Error()),
			)
		}
		metrics.ReconciliationsTotal.WithLabelValues(t.Family.String(), label).Inc()
	}

	metrics.RecordRun(time.Now(), len(errs) == 0)

	r.logger.Info("reconciliation complete",
		slog.Int("targets", len(result.Actions)),
		slog.Int("written", len(result.Written())),
		slog.Int("failed", result.FailedCount()),
	)

	return result, errors.Join(errs...)
}

func (r *Reconciler) reconcileTarget(ctx context.Context, t Target) (Action, error) {
	action := Action{
		Type:       ActionSkip,
		Status:     StatusPending,
		Family:     t.Family.String(),
		RecordName: t.RecordName,
	}
	fail := func(err error) (Action, error) {
		action.Status = StatusFailed
		action.Error = err.Error()
		return action, err
	}

	resolved, err := r.resolver.Resolve(ctx, t.Provider)
	if err != nil {
		return fail(fmt.Errorf("resolving public address: %w", err))
	}
	addr := resolved.Addr.Unmap()
	if !t.Family.Contains(addr) {
		return fail(fmt.Errorf("provider %s returned %s for %s target", resolved.Provider, addr, t.Family))
	}

	action.Address = addr.String()
	action.Provider = resolved.Provider
	action.RecordType = string(hosting.RecordTypeFor(addr))

	fmt.Fprintf(r.out, "%s: %s\n", familyLabel(t.Family), addr)
	fmt.Fprintf(r.out, "Updating %q to %s\n", t.RecordName, addr)

	decision, err := r.decide(ctx, t, addr)
	if err != nil {
		return fail(err)
	}
	action.Outcome = decision.Outcome

	if !decision.NeedsWrite() {
		action.Status = StatusSuccess
		fmt.Fprintf(r.out, "   %s is already up to date.\n", t.RecordName)
		return action, nil
	}

	action.Type = ActionUpdate
	if decision.Outcome == OutcomeAbsent {
		action.Type = ActionCreate
	}

	if r.config.DryRun {
		action.Status = StatusSkipped
		fmt.Fprintf(r.out, "   %s would be updated (dry run).\n", t.RecordName)
		r.logger.Info("dry run, record not written",
			slog.String("name", t.RecordName),
			slog.String("outcome", string(decision.Outcome)),
			slog.String("value", action.Address),
		)
		return action, nil
	}

	if err := r.executor.Apply(ctx, r.config.ZoneID, t.RecordName, addr); err != nil {
		return fail(err)
	}
	metrics.RecordsUpdatedTotal.WithLabelValues(t.Family.String()).Inc()

	action.Status = StatusSuccess
	fmt.Fprintf(r.out, "   %s was updated.\n", t.RecordName)
	return action, nil
}

// decide runs the pre-check, falling back to the authoritative scan.
func (r *Reconciler) decide(ctx context.Context, t Target, addr netip.Addr) (Decision, error) {
	if r.config.Force {
		return Decide(ScanResult{}, true), nil
	}

	if r.precheck != nil {
		res := r.precheck.Check(ctx, t.RecordName, addr)
		switch {
		case res.Match:
			metrics.PrecheckTotal.WithLabelValues("match").Inc()
			r.logger.Debug("pre-check matched, skipping hosting API",
				slog.String("name", t.RecordName),
				slog.String("value", addr.String()),
			)
			return Decision{Outcome: OutcomeUpToDate}, nil
		case res.Inconclusive:
			metrics.PrecheckTotal.WithLabelValues("inconclusive").Inc()
		default:
			metrics.PrecheckTotal.WithLabelValues("mismatch").Inc()
		}
	}

	scan, err := r.scanner.Scan(ctx, r.config.ZoneID, t.RecordName, addr)
	if err != nil {
		return Decision{}, err
	}
	return Decide(scan, false), nil
}

func familyLabel(f iplookup.Family) string {
	if f == iplookup.FamilyV6 {
		return "IPv6"
	}
	return "IPv4"
}
