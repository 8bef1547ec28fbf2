// Package dnscheck compares what DNS currently answers for a record name
// against a candidate address, so that an up-to-date record can be detected
// without calling the hosting API.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
)

// DefaultTimeout bounds a single pre-check lookup.
const DefaultTimeout = 5 * time.Second

var (
	// ErrNoAnswer is returned when the name has no records of the wanted type.
	ErrNoAnswer = errors.New("no address records in answer")

	// ErrLookupFailed wraps resolver and transport failures.
	ErrLookupFailed = errors.New("dns lookup failed")
)

// Lookuper resolves the addresses of a name for one record type.
type Lookuper interface {
	LookupAddrs(ctx context.Context, name string, rtype hosting.RecordType) ([]netip.Addr, error)
}

// Result is the outcome of a pre-check.
// Inconclusive results must fall through to the authoritative scan.
type Result struct {
	Match        bool
	Inconclusive bool
	Addrs        []netip.Addr
	Err          error
}

// Checker runs pre-checks.
type Checker struct {
	lookuper Lookuper
	timeout  time.Duration
	logger   *slog.Logger
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithLookuper sets the lookup strategy.
func WithLookuper(l Lookuper) Option {
	return func(c *Checker) {
		if l != nil {
			c.lookuper = l
		}
	}
}

// WithTimeout sets the lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChecker creates a Checker using the system resolver unless overridden.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		lookuper: &SystemLookuper{},
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check resolves name for candidate's family and reports whether any
// answer equals candidate. The lookup runs on its own goroutine and is
// abandoned if ctx ends first.
func (c *Checker) Check(ctx context.Context, name string, candidate netip.Addr) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	candidate = candidate.Unmap()
	rtype := hosting.RecordTypeFor(candidate)

	type lookupResult struct {
		addrs []netip.Addr
		err   error
	}
	ch := make(chan lookupResult, 1)

	go func() {
		addrs, err := c.lookuper.LookupAddrs(ctx, name, rtype)
		ch <- lookupResult{addrs, err}
	}()

	var r lookupResult
	select {
	case <-ctx.Done():
		r.err = ctx.Err()
	case r = <-ch:
	}

	if r.err != nil {
		c.logger.Debug("pre-check inconclusive",
			slog.String("name", name),
			slog.String("type", string(rtype)),
			slog.String("error", r.err.Error()),
		)
		return Result{Inconclusive: true, Err: r.err}
	}

	res := Result{Addrs: r.addrs}
	for _, a := range r.addrs {
		if a.Unmap() == candidate {
			res.Match = true
			break
		}
	}

	c.logger.Debug("pre-check finished",
		slog.String("name", name),
		slog.String("type", string(rtype)),
		slog.String("candidate", candidate.String()),
		slog.Int("answers", len(r.addrs)),
		slog.Bool("match", res.Match),
	)
	return res
}

// SystemLookuper resolves through the operating system resolver.
type SystemLookuper struct {
	Resolver *net.Resolver
}

// LookupAddrs implements Lookuper.
func (s *SystemLookuper) LookupAddrs(ctx context.Context, name string, rtype hosting.RecordType) ([]netip.Addr, error) {
	resolver := s.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	network := "ip4"
	if rtype == hosting.RecordTypeAAAA {
		network = "ip6"
	}

	addrs, err := resolver.LookupNetIP(ctx, network, dns.CanonicalName(name))
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNoAnswer, name)
		}
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAnswer, name)
	}
	return addrs, nil
}

// NameserverLookuper queries one nameserver directly over UDP.
type NameserverLookuper struct {
	server string
	client *dns.Client
}

// NewNameserverLookuper creates a lookuper for server ("host" or "host:port").
func NewNameserverLookuper(server string, timeout time.Duration) *NameserverLookuper {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NameserverLookuper{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// Server returns the nameserver address.
func (n *NameserverLookuper) Server() string {
	return n.server
}

// LookupAddrs implements Lookuper.
func (n *NameserverLookuper) LookupAddrs(ctx context.Context, name string, rtype hosting.RecordType) ([]netip.Addr, error) {
	qtype := dns.TypeA
	if rtype == hosting.RecordTypeAAAA {
		qtype = dns.TypeAAAA
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.CanonicalName(name), qtype)
	msg.RecursionDesired = true

	resp, _, err := n.client.ExchangeContext(ctx, msg, n.server)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return nil, fmt.Errorf("%w: %s", ErrNoAnswer, name)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: server returned %s", ErrLookupFailed, dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		var ip net.IP
		switch v := rr.(type) {
		case *dns.A:
			ip = v.A
		case *dns.AAAA:
			ip = v.AAAA
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAnswer, name)
	}
	return addrs, nil
}
