package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"gitlab.bluewillows.net/root/ipweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

// DefaultMaxPages bounds how many listing pages a scan fetches.
const DefaultMaxPages = 100

// ScanResult describes what the zone holds for one name and type.
type ScanResult struct {
	// Present is true when a record set with the wanted name and type exists.
	Present bool

	// Matching is true when one of its values equals the candidate address.
	Matching bool

	// Values and TTL are copied from the matched record set.
	Values []string
	TTL    int

	// Pages is the number of listing pages fetched.
	Pages int

	// CapReached is true when the scan gave up at the page cap.
	CapReached bool
}

// Scanner searches a zone listing for a record set. It never writes.
type Scanner struct {
	backend  hosting.Backend
	maxPages int
	logger   *slog.Logger
}

// ScannerOption is a functional option for configuring a Scanner.
type ScannerOption func(*Scanner)

// WithMaxPages sets the page cap. Values <= 0 keep DefaultMaxPages.
func WithMaxPages(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithScannerLogger sets a custom logger for the scanner.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScanner creates a Scanner over backend.
func NewScanner(backend hosting.Backend, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		backend:  backend,
		maxPages: DefaultMaxPages,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pageIterator walks a listing lazily, forwarding each continuation cursor
// verbatim to the next request.
type pageIterator struct {
	backend hosting.Backend
	zoneID  string
	query   hosting.Query
	limit   int
	fetched int
	done    bool
}

// next returns the following page, or nil when the listing is exhausted or
// the limit is hit.
func (it *pageIterator) next(ctx context.Context) (*hosting.Page, error) {
	if it.done || it.fetched >= it.limit {
		return nil, nil
	}
	page, err := it.backend.ListRecordSets(ctx, it.zoneID, it.query)
	if err != nil {
		return nil, err
	}
	it.fetched++
	if !page.Truncated || page.Next == nil {
		it.done = true
	} else {
		cursor := *page.Next
		it.query.Cursor = &cursor
	}
	return page, nil
}

// capped reports whether iteration stopped at the limit with more pages left.
func (it *pageIterator) capped() bool {
	return !it.done && it.fetched >= it.limit
}

// Scan looks for the record set named name with the type of candidate's
// family. The scan stops at the first set with that name and type.
func (s *Scanner) Scan(ctx context.Context, zoneID, name string, candidate netip.Addr) (ScanResult, error) {
	candidate = candidate.Unmap()
	rtype := hosting.RecordTypeFor(candidate)
	family := iplookup.FamilyOf(candidate).String()

	it := &pageIterator{
		backend: s.backend,
		zoneID:  zoneID,
		query:   hosting.Query{Name: name, Type: rtype},
		limit:   s.maxPages,
	}

	var result ScanResult
	for {
		page, err := it.next(ctx)
		if err != nil {
			result.Pages = it.fetched
			return result, fmt.Errorf("listing record sets in zone %s: %w", zoneID, err)
		}
		if page == nil {
			break
		}
		metrics.ScanPagesTotal.WithLabelValues(family).Inc()

		for _, rs := range page.RecordSets {
			if rs.Type != rtype || !hosting.SameName(rs.Name, name) {
				continue
			}
			result.Present = true
			result.Values = append([]string(nil), rs.Values...)
			result.TTL = rs.TTL
			result.Matching = containsAddr(rs.Values, candidate)
			result.Pages = it.fetched

			s.logger.Debug("record set found",
				slog.String("zone", zoneID),
				slog.String("name", name),
				slog.String("type", string(rtype)),
				slog.Int("pages", result.Pages),
				slog.Bool("matching", result.Matching),
			)
			return result, nil
		}
	}

	result.Pages = it.fetched
	if it.capped() {
		result.CapReached = true
		s.logger.Warn("page limit reached before record set was found, treating as absent",
			slog.String("zone", zoneID),
			slog.String("name", name),
			slog.Int("max_pages", s.maxPages),
		)
	}
	return result, nil
}

func containsAddr(values []string, addr netip.Addr) bool {
	for _, v := range values {
		parsed, err := netip.ParseAddr(v)
		if err != nil {
			continue
		}
		if parsed.Unmap() == addr {
			return true
		}
	}
	return false
}
