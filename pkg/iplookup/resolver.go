package iplookup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/pkg/httputil"
)

// DefaultLookupTimeout bounds a single provider lookup.
const DefaultLookupTimeout = 15 * time.Second

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 4096

// ResolvedAddress is a public address and the provider that reported it.
type ResolvedAddress struct {
	Addr     netip.Addr
	Provider string
}

// ObserverFunc is called once per provider attempt. err is nil on success.
type ObserverFunc func(provider string, family Family, elapsed time.Duration, err error)

// Resolver resolves the public IP address with same-family failover.
type Resolver struct {
	registry   *Registry
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	observe    ObserverFunc
}

// Option is a functional option for configuring the Resolver.
type Option func(*Resolver)

// WithRegistry replaces the default provider table.
func WithRegistry(r *Registry) Option {
	return func(res *Resolver) {
		if r != nil {
			res.registry = r
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(res *Resolver) {
		if c != nil {
			res.httpClient = c
		}
	}
}

// WithTimeout sets the per-provider lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(res *Resolver) {
		if d > 0 {
			res.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(res *Resolver) {
		if logger != nil {
			res.logger = logger
		}
	}
}

// WithObserver registers a hook called after every provider attempt.
func WithObserver(fn ObserverFunc) Option {
	return func(res *Resolver) {
		res.observe = fn
	}
}

// NewResolver creates a Resolver using the default registry unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		registry: DefaultRegistry(),
		timeout:  DefaultLookupTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.httpClient == nil {
		r.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout: r.timeout,
			NoCache: true,
			Logger:  r.logger,
		})
	}
	return r
}

// Registry returns the provider table in use.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns the public address, trying the requested provider first
// and then every other provider of its family, one at a time.
func (r *Resolver) Resolve(ctx context.Context, provider string) (ResolvedAddress, error) {
	candidates, err := r.registry.Alternatives(provider)
	if err != nil {
		return ResolvedAddress{}, err
	}

	exhausted := &ExhaustedError{Family: candidates[0].Family}
	for _, d := range candidates {
		if err := ctx.Err(); err != nil {
			exhausted.Cause = err
			break
		}

		start := time.Now()
		addr, err := r.lookup(ctx, d)
		if r.observe != nil {
			r.observe(d.ID, d.Family, time.Since(start), err)
		}
		if err != nil {
			r.logger.Debug("IP lookup failed, trying next provider",
				slog.String("provider", d.ID),
				slog.String("family", d.Family.String()),
				slog.String("error", err.Error()),
			)
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Provider: d.ID, Err: err})
			continue
		}

		if d.ID != provider {
			r.logger.Info("resolved public address using fallback provider",
				slog.String("requested", provider),
				slog.String("provider", d.ID),
				slog.String("address", addr.String()),
			)
		} else {
			r.logger.Debug("resolved public address",
				slog.String("provider", d.ID),
				slog.String("address", addr.String()),
			)
		}
		return ResolvedAddress{Addr: addr, Provider: d.ID}, nil
	}

	return ResolvedAddress{}, exhausted
}

// lookup queries a single provider.
func (r *Resolver) lookup(ctx context.Context, d Descriptor) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("creating request: %w", err)
	}
	if d.Format == FormatJSON {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	raw, err := extract(io.LimitReader(resp.Body, maxBodySize), d)
	if err != nil {
		return netip.Addr{}, err
	}
	return parseAddr(raw, d.Family)
}

// extract pulls the raw address string out of a response body.
func extract(body io.Reader, d Descriptor) (string, error) {
	switch d.Format {
	case FormatJSON:
		var payload map[string]any
		if err := json.NewDecoder(body).Decode(&payload); err != nil {
			return "", fmt.Errorf("%w: decoding JSON: %v", ErrMalformedAddress, err)
		}
		v, ok := payload[d.Field].(string)
		if !ok {
			return "", fmt.Errorf("%w: field %q missing or not a string", ErrMalformedAddress, d.Field)
		}
		return v, nil
	default:
		line, err := bufio.NewReader(body).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading response body: %w", err)
		}
		return line, nil
	}
}

// parseAddr parses raw as an address of family f. Proxies may report a
// comma-separated chain (httpbin does); the first entry is the client.
func parseAddr(raw string, f Family) (netip.Addr, error) {
	raw = strings.TrimSpace(raw)
	if first, _, found := strings.Cut(raw, ","); found {
		raw = strings.TrimSpace(first)
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}
	addr = addr.Unmap()
	if !f.Contains(addr) {
		return netip.Addr{}, fmt.Errorf("%w: %s is not an %s address", ErrMalformedAddress, addr, f)
	}
	return addr.WithZone(""), nil
}
