package reconciler

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
)

const recordTypeTXT hosting.RecordType = "TXT"

func TestScanner_MatchOnSecondPage(t *testing.T) {
	backend := newFakeBackend("Z1", 2,
		recordSet("a.example.com.", hosting.RecordTypeA, "192.0.2.1"),
		recordSet("b.example.com.", hosting.RecordTypeA, "192.0.2.2"),
		recordSet("c.example.com.", recordTypeTXT, "x"),
		recordSet("home.example.com.", hosting.RecordTypeA, "203.0.113.5"),
		recordSet("z.example.com.", hosting.RecordTypeA, "192.0.2.9"),
		recordSet("zz.example.com.", hosting.RecordTypeA, "192.0.2.10"),
	)
	s := NewScanner(backend, WithScannerLogger(testLogger()))

	got, err := s.Scan(context.Background(), "Z1", "home.example.com", netip.MustParseAddr("203.0.113.5"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !got.Present || !got.Matching {
		t.Errorf("expected present and matching, got %+v", got)
	}
	if got.Pages != 2 || backend.listCalls != 2 {
		t.Errorf("expected exactly 2 fetches, got pages=%d calls=%d", got.Pages, backend.listCalls)
	}
	if backend.cursors[0] != nil {
		t.Errorf("first request must start at the beginning, got %+v", backend.cursors[0])
	}
	if c := backend.cursors[1]; c == nil || c.RecordName != "c.example.com." || c.RecordType != "TXT" {
		t.Errorf("expected cursor forwarded verbatim, got %+v", c)
	}
	if got.TTL != 300 || len(got.Values) != 1 || got.Values[0] != "203.0.113.5" {
		t.Errorf("expected values copied, got %+v", got)
	}
}

func TestScanner_StopsAtFirstStructuralMatch(t *testing.T) {
	backend := newFakeBackend("Z1", 10,
		recordSet("HOME.example.com", hosting.RecordTypeA, "203.0.113.5"),
		recordSet("home.example.com.", hosting.RecordTypeA, "203.0.113.9"),
	)
	s := NewScanner(backend, WithScannerLogger(testLogger()))

	got, err := s.Scan(context.Background(), "Z1", "home.example.com.", netip.MustParseAddr("203.0.113.9"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !got.Present || got.Matching {
		t.Errorf("expected first set to win without a match, got %+v", got)
	}
}

func TestScanner_TypeMustMatchFamily(t *testing.T) {
	backend := newFakeBackend("Z1", 10,
		recordSet("home.example.com.", hosting.RecordTypeA, "203.0.113.5"),
		recordSet("home.example.com.", hosting.RecordTypeAAAA, "2001:db8::5"),
	)
	s := NewScanner(backend, WithScannerLogger(testLogger()))

	got, err := s.Scan(context.Background(), "Z1", "home.example.com", netip.MustParseAddr("2001:db8::5"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !got.Present || !got.Matching || got.Values[0] != "2001:db8::5" {
		t.Errorf("expected AAAA set matched, got %+v", got)
	}
}

func TestScanner_AbsentAfterFullListing(t *testing.T) {
	backend := newFakeBackend("Z1", 1,
		recordSet("a.example.com.", hosting.RecordTypeA, "192.0.2.1"),
		recordSet("b.example.com.", hosting.RecordTypeA, "192.0.2.2"),
		recordSet("home.example.com.", hosting.RecordTypeAAAA, "2001:db8::5"),
	)
	s := NewScanner(backend, WithScannerLogger(testLogger()))

	got, err := s.Scan(context.Background(), "Z1", "home.example.com", netip.MustParseAddr("203.0.113.5"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got.Present || got.CapReached {
		t.Errorf("expected absent without cap, got %+v", got)
	}
	if got.Pages != 3 {
		t.Errorf("expected every page fetched, got %d", got.Pages)
	}
}

func TestScanner_PageCap(t *testing.T) {
	backend := newFakeBackend("Z1", 1,
		recordSet("a.example.com.", hosting.RecordTypeA, "192.0.2.1"),
		recordSet("b.example.com.", hosting.RecordTypeA, "192.0.2.2"),
		recordSet("home.example.com.", hosting.RecordTypeA, "203.0.113.5"),
	)
	s := NewScanner(backend, WithMaxPages(2), WithScannerLogger(testLogger()))

	got, err := s.Scan(context.Background(), "Z1", "home.example.com", netip.MustParseAddr("203.0.113.5"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got.Present || !got.CapReached {
		t.Errorf("expected cap reached and absent, got %+v", got)
	}
	if backend.listCalls != 2 {
		t.Errorf("expected fetching to stop at the cap, got %d calls", backend.listCalls)
	}
	if Decide(got, false).Outcome != OutcomeAbsent {
		t.Error("capped scan must fall through to an upsert")
	}
}

func TestScanner_ListError(t *testing.T) {
	apiErr := hosting.WrapError("fake", "list_record_sets", hosting.ErrThrottled)
	backend := newFakeBackend("Z1", 10)
	backend.listErr = apiErr
	s := NewScanner(backend, WithScannerLogger(testLogger()))

	_, err := s.Scan(context.Background(), "Z1", "home.example.com", netip.MustParseAddr("203.0.113.5"))
	if !errors.Is(err, hosting.ErrThrottled) {
		t.Errorf("expected throttled error, got %v", err)
	}
	if !hosting.IsAPIError(err) {
		t.Errorf("expected hosting API error kind, got %T", err)
	}
	if len(backend.upserts) != 0 {
		t.Error("scan must never write")
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		scan  ScanResult
		force bool
		want  Outcome
		write bool
	}{
		{"present and matching", ScanResult{Present: true, Matching: true}, false, OutcomeUpToDate, false},
		{"present and stale", ScanResult{Present: true}, false, OutcomeNeedsUpsert, true},
		{"absent", ScanResult{}, false, OutcomeAbsent, true},
		{"forced over matching", ScanResult{Present: true, Matching: true}, true, OutcomeNeedsUpsert, true},
		{"forced over absent", ScanResult{}, true, OutcomeNeedsUpsert, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.scan, tt.force)
			if d.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", d.Outcome, tt.want)
			}
			if d.NeedsWrite() != tt.write {
				t.Errorf("NeedsWrite = %v, want %v", d.NeedsWrite(), tt.write)
			}
			if d.Forced != tt.force {
				t.Errorf("Forced = %v, want %v", d.Forced, tt.force)
			}
		})
	}
}
