// Package iplookup discovers the machine's public IP address using
// third-party lookup services, falling back across services of the same
// address family.
package iplookup

import (
	"fmt"
	"net/netip"
	"sort"
)

// Family is an IP address family.
type Family string

const (
	FamilyV4 Family = "v4"
	FamilyV6 Family = "v6"
)

// String returns the family name.
func (f Family) String() string {
	return string(f)
}

// Contains reports whether addr belongs to the family.
// IPv4-mapped IPv6 addresses count as IPv4.
func (f Family) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch f {
	case FamilyV4:
		return addr.Is4()
	case FamilyV6:
		return addr.Is6()
	default:
		return false
	}
}

// FamilyOf returns the family of addr.
func FamilyOf(addr netip.Addr) Family {
	if addr.Unmap().Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// Format describes how a lookup service encodes the address in its response.
type Format int

const (
	// FormatText is a bare address, optionally followed by a newline.
	FormatText Format = iota
	// FormatJSON is a JSON object with the address in a named field.
	FormatJSON
)

// Descriptor describes one IP lookup service.
type Descriptor struct {
	ID     string
	Family Family
	URL    string
	Format Format
	// Field names the JSON field holding the address. Only used with FormatJSON.
	Field string
}

// Default provider IDs.
const (
	DefaultV4 = "ipify"
	DefaultV6 = "ipify-v6"
)

// DefaultDescriptors is the built-in provider table, in failover order.
var DefaultDescriptors = []Descriptor{
	{ID: "ipify", Family: FamilyV4, URL: "https://api.ipify.org?format=json", Format: FormatJSON, Field: "ip"},
	{ID: "ipify-v6", Family: FamilyV6, URL: "https://api6.ipify.org?format=json", Format: FormatJSON, Field: "ip"},
	{ID: "httpbin", Family: FamilyV4, URL: "https://httpbin.org/ip", Format: FormatJSON, Field: "origin"},
	{ID: "identme", Family: FamilyV4, URL: "https://v4.ident.me/", Format: FormatText},
	{ID: "identme-v6", Family: FamilyV6, URL: "https://v6.ident.me/", Format: FormatText},
	{ID: "icanhazip", Family: FamilyV4, URL: "https://ipv4.icanhazip.com/", Format: FormatText},
	{ID: "icanhazip-v6", Family: FamilyV6, URL: "https://ipv6.icanhazip.com/", Format: FormatText},
	{ID: "checkip-aws", Family: FamilyV4, URL: "https://checkip.amazonaws.com/", Format: FormatText},
}

// Registry is an immutable, ordered table of lookup providers indexed by family.
type Registry struct {
	byID     map[string]Descriptor
	byFamily map[Family][]Descriptor
}

// NewRegistry builds a registry from descs. Order is preserved and used
// for failover. IDs must be unique and families valid.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		byID:     make(map[string]Descriptor, len(descs)),
		byFamily: make(map[Family][]Descriptor),
	}
	for _, d := range descs {
		if d.ID == "" {
			return nil, fmt.Errorf("provider descriptor without ID")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate provider ID %q", d.ID)
		}
		if d.Family != FamilyV4 && d.Family != FamilyV6 {
			return nil, fmt.Errorf("provider %q: invalid family %q", d.ID, d.Family)
		}
		if d.Format == FormatJSON && d.Field == "" {
			return nil, fmt.Errorf("provider %q: JSON format requires a field name", d.ID)
		}
		r.byID[d.ID] = d
		r.byFamily[d.Family] = append(r.byFamily[d.Family], d)
	}
	return r, nil
}

// DefaultRegistry returns a registry holding DefaultDescriptors.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDescriptors...)
	if err != nil {
		panic("iplookup: invalid default descriptors: " + err.Error())
	}
	return r
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// IDsByFamily returns the provider IDs of one family, sorted by name.
// Used for help and error messages.
func (r *Registry) IDsByFamily(f Family) []string {
	var out []string
	for _, d := range r.byFamily[f] {
		out = append(out, d.ID)
	}
	sort.Strings(out)
	return out
}

// Alternatives returns the requested provider followed by every other
// provider of the same family, in registry order.
func (r *Registry) Alternatives(id string) ([]Descriptor, error) {
	requested, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}

	family := r.byFamily[requested.Family]
	out := make([]Descriptor, 0, len(family))
	out = append(out, requested)
	for _, d := range family {
		if d.ID != requested.ID {
			out = append(out, d)
		}
	}
	return out, nil
}
