// Package hosting defines the interface that DNS-hosting backends must implement.
package hosting

import (
	"context"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA    RecordType = "A"
	RecordTypeAAAA RecordType = "AAAA"
)

// RecordTypeFor returns the address record type for addr.
func RecordTypeFor(addr netip.Addr) RecordType {
	if addr.Unmap().Is4() {
		return RecordTypeA
	}
	return RecordTypeAAAA
}

// HostedZone is a zone the credentials can manage.
type HostedZone struct {
	ID   string
	Name string
}

// RecordSet is every value a zone holds for one name and type.
type RecordSet struct {
	Name   string
	Type   RecordType
	Values []string
	TTL    int
}

// Cursor is an opaque continuation position returned by a backend.
// Route53 fills the record fields; page-numbered backends use Page.
type Cursor struct {
	RecordIdentifier string
	RecordName       string
	RecordType       string
	Page             int
}

// Query narrows a listing. Backends that cannot filter ignore Name and Type.
// A nil Cursor starts from the beginning of the zone.
type Query struct {
	Name   string
	Type   RecordType
	Cursor *Cursor
}

// Page is one page of a record set listing.
type Page struct {
	RecordSets []RecordSet
	Truncated  bool
	Next       *Cursor
}

// Backend defines the interface for DNS-hosting APIs.
type Backend interface {
	// Name returns the backend instance name.
	Name() string

	// Type returns the backend type (e.g., "route53", "cloudflare").
	Type() string

	// Ping checks connectivity and credentials.
	Ping(ctx context.Context) error

	// ListHostedZones returns every zone visible to the credentials.
	ListHostedZones(ctx context.Context) ([]HostedZone, error)

	// ListRecordSets returns one page of record sets in a zone.
	ListRecordSets(ctx context.Context, zoneID string, q Query) (*Page, error)

	// UpsertRecordSet creates or replaces the record set with exactly rs.Values.
	UpsertRecordSet(ctx context.Context, zoneID string, rs RecordSet) error
}

// CanonicalName lowercases name and makes it fully qualified.
func CanonicalName(name string) string {
	return dns.CanonicalName(strings.TrimSpace(name))
}

// SameName reports whether two record names refer to the same owner,
// ignoring case and a trailing dot.
func SameName(a, b string) bool {
	return CanonicalName(a) == CanonicalName(b)
}
