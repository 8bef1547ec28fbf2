package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"

	"gitlab.bluewillows.net/root/ipweaver/pkg/dnscheck"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// In-memory hosting backend
// =============================================================================

// fakeBackend is a paged, single-zone hosting backend.
// Cursors name the first record set of the next page.
type fakeBackend struct {
	mu        sync.Mutex
	zoneID    string
	sets      []hosting.RecordSet
	pageSize  int
	listCalls int
	cursors   []*hosting.Cursor
	upserts   []hosting.RecordSet
	listErr   error
	upsertErr error
}

func newFakeBackend(zoneID string, pageSize int, sets ...hosting.RecordSet) *fakeBackend {
	return &fakeBackend{zoneID: zoneID, pageSize: pageSize, sets: sets}
}

func (f *fakeBackend) Name() string                 { return "fake" }
func (f *fakeBackend) Type() string                 { return "fake" }
func (f *fakeBackend) Ping(_ context.Context) error { return nil }

func (f *fakeBackend) ListHostedZones(_ context.Context) ([]hosting.HostedZone, error) {
	return []hosting.HostedZone{{ID: f.zoneID, Name: "example.com."}}, nil
}

func (f *fakeBackend) ListRecordSets(_ context.Context, zoneID string, q hosting.Query) (*hosting.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	f.cursors = append(f.cursors, q.Cursor)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if zoneID != f.zoneID {
		return nil, hosting.ErrZoneNotFound
	}

	start := 0
	if q.Cursor != nil {
		start = -1
		for i, rs := range f.sets {
			if rs.Name == q.Cursor.RecordName && string(rs.Type) == q.Cursor.RecordType {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, errors.New("invalid cursor")
		}
	}

	end := start + f.pageSize
	if end > len(f.sets) {
		end = len(f.sets)
	}

	page := &hosting.Page{RecordSets: append([]hosting.RecordSet(nil), f.sets[start:end]...)}
	if end < len(f.sets) {
		page.Truncated = true
		page.Next = &hosting.Cursor{RecordName: f.sets[end].Name, RecordType: string(f.sets[end].Type)}
	}
	return page, nil
}

func (f *fakeBackend) UpsertRecordSet(_ context.Context, zoneID string, rs hosting.RecordSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return f.upsertErr
	}
	if zoneID != f.zoneID {
		return hosting.ErrZoneNotFound
	}
	f.upserts = append(f.upserts, rs)

	for i, existing := range f.sets {
		if existing.Type == rs.Type && hosting.SameName(existing.Name, rs.Name) {
			f.sets[i] = rs
			return nil
		}
	}
	f.sets = append(f.sets, rs)
	return nil
}

func (f *fakeBackend) find(name string, rtype hosting.RecordType) []hosting.RecordSet {
	f.mu.Lock()
	defer f.mu.Unlock()

	var found []hosting.RecordSet
	for _, rs := range f.sets {
		if rs.Type == rtype && hosting.SameName(rs.Name, name) {
			found = append(found, rs)
		}
	}
	return found
}

func recordSet(name string, rtype hosting.RecordType, values ...string) hosting.RecordSet {
	return hosting.RecordSet{Name: name, Type: rtype, Values: values, TTL: 300}
}

// =============================================================================
// Resolver and pre-check stubs
// =============================================================================

type staticResolver struct {
	answers map[string]iplookup.ResolvedAddress
	errs    map[string]error
	calls   []string
}

func (s *staticResolver) Resolve(_ context.Context, provider string) (iplookup.ResolvedAddress, error) {
	s.calls = append(s.calls, provider)
	if err, ok := s.errs[provider]; ok {
		return iplookup.ResolvedAddress{}, err
	}
	if a, ok := s.answers[provider]; ok {
		return a, nil
	}
	return iplookup.ResolvedAddress{}, iplookup.ErrUnknownProvider
}

func resolverFor(provider, addr string) *staticResolver {
	return &staticResolver{
		answers: map[string]iplookup.ResolvedAddress{
			provider: {Addr: netip.MustParseAddr(addr), Provider: provider},
		},
	}
}

type staticPrechecker struct {
	result dnscheck.Result
	calls  int
}

func (s *staticPrechecker) Check(_ context.Context, _ string, _ netip.Addr) dnscheck.Result {
	s.calls++
	return s.result
}
