// Package cloudflare implements the ipweaver hosting backend for Cloudflare DNS.
package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cloudflare/cloudflare-go"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/httputil"
)

// TypeName is the registry key for this backend.
const TypeName = "cloudflare"

// maxUpsertPages bounds the listing done while replacing a record set.
const maxUpsertPages = 100

// Provider implements hosting.Backend for Cloudflare DNS.
type Provider struct {
	name       string
	comment    string
	perPage    int
	api        *cloudflare.API
	apiOpts    []cloudflare.Option
	httpClient *http.Client
	logger     *slog.Logger
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithLogger sets a custom logger for the provider.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client handed to cloudflare-go.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithAPIOptions passes extra options to cloudflare-go.
func WithAPIOptions(opts ...cloudflare.Option) ProviderOption {
	return func(p *Provider) {
		p.apiOpts = append(p.apiOpts, opts...)
	}
}

// New creates a new Cloudflare provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:    name,
		comment: config.Comment,
		perPage: config.PerPage,
		logger:  slog.Default(),
	}
	if p.perPage == 0 {
		p.perPage = DefaultPerPage
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: p.logger})
	}

	api, err := newAPI(config, p.httpClient, p.apiOpts...)
	if err != nil {
		return nil, err
	}
	p.api = api

	return p, nil
}

// NewFromMap creates a new Cloudflare provider from a settings map.
func NewFromMap(name string, settings map[string]string, opts ...ProviderOption) (*Provider, error) {
	cfg, err := ConfigFromMap(settings)
	if err != nil {
		return nil, err
	}
	return New(name, cfg, opts...)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "cloudflare".
func (p *Provider) Type() string {
	return TypeName
}

// Ping checks the token by listing zones.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.api.ListZones(ctx)
	return hosting.WrapError(p.name, "ping", classify(err))
}

// ListHostedZones returns every zone visible to the token.
func (p *Provider) ListHostedZones(ctx context.Context) ([]hosting.HostedZone, error) {
	zones, err := p.api.ListZones(ctx)
	if err != nil {
		return nil, hosting.WrapError(p.name, "list hosted zones", classify(err))
	}

	out := make([]hosting.HostedZone, 0, len(zones))
	for _, z := range zones {
		out = append(out, hosting.HostedZone{ID: z.ID, Name: z.Name})
	}
	return out, nil
}

// ListRecordSets returns one page of records filtered by name and type,
// grouped into record sets. The cursor carries the next page number.
func (p *Provider) ListRecordSets(ctx context.Context, zoneID string, q hosting.Query) (*hosting.Page, error) {
	pageNum := 1
	if q.Cursor != nil && q.Cursor.Page > 0 {
		pageNum = q.Cursor.Page
	}

	records, info, err := p.listPage(ctx, zoneID, q.Name, q.Type, pageNum)
	if err != nil {
		return nil, hosting.WrapError(p.name, "list record sets", classify(err))
	}

	page := &hosting.Page{RecordSets: groupRecordSets(records)}
	if info != nil && pageNum < info.TotalPages {
		page.Truncated = true
		page.Next = &hosting.Cursor{Page: pageNum + 1}
	}

	p.logger.Debug("listed record sets",
		slog.String("provider", p.name),
		slog.String("zone_id", zoneID),
		slog.Int("page", pageNum),
		slog.Int("records", len(records)),
		slog.Bool("truncated", page.Truncated),
	)

	return page, nil
}

// UpsertRecordSet makes the records for rs.Name/rs.Type equal rs.Values.
// Records already holding a wanted value are kept, with their TTL patched
// when it differs. Remaining wanted values are written over stale records
// first and created only when none are left; leftover stale records are
// deleted. Cloudflare refuses two records with identical content, so a
// wanted value is never created while a record holding it exists.
func (p *Provider) UpsertRecordSet(ctx context.Context, zoneID string, rs hosting.RecordSet) error {
	existing, err := p.listAll(ctx, zoneID, rs.Name, rs.Type)
	if err != nil {
		return hosting.WrapError(p.name, "upsert record set", classify(err))
	}

	want := make(map[string]bool, len(rs.Values))
	for _, v := range rs.Values {
		want[normalizeValue(v)] = true
	}

	kept := make(map[string]bool)
	var retime, stale []cloudflare.DNSRecord
	for _, r := range existing {
		v := normalizeValue(r.Content)
		if want[v] && !kept[v] {
			kept[v] = true
			if r.TTL != rs.TTL {
				retime = append(retime, r)
			}
			continue
		}
		stale = append(stale, r)
	}

	rc := cloudflare.ZoneIdentifier(zoneID)
	for _, r := range retime {
		if err := p.update(ctx, rc, r, r.Content, rs.TTL); err != nil {
			return err
		}
	}

	for _, v := range rs.Values {
		if kept[normalizeValue(v)] {
			continue
		}
		kept[normalizeValue(v)] = true

		if len(stale) > 0 {
			r := stale[0]
			stale = stale[1:]
			if err := p.update(ctx, rc, r, v, rs.TTL); err != nil {
				return err
			}
			continue
		}

		_, err := p.api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
			Type:    string(rs.Type),
			Name:    apiName(rs.Name),
			Content: v,
			TTL:     rs.TTL,
			Comment: p.comment,
		})
		if err != nil {
			return hosting.WrapError(p.name, "upsert record set", classify(err))
		}
		p.logger.Info("created record",
			slog.String("provider", p.name),
			slog.String("name", rs.Name),
			slog.String("type", string(rs.Type)),
			slog.String("content", v),
			slog.Int("ttl", rs.TTL),
		)
	}

	for _, r := range stale {
		if err := p.api.DeleteDNSRecord(ctx, rc, r.ID); err != nil {
			return hosting.WrapError(p.name, "upsert record set", classify(err))
		}
		p.logger.Info("deleted record",
			slog.String("provider", p.name),
			slog.String("name", r.Name),
			slog.String("type", r.Type),
			slog.String("content", r.Content),
			slog.String("record_id", r.ID),
		)
	}

	return nil
}

// update rewrites one existing record in place.
func (p *Provider) update(ctx context.Context, rc *cloudflare.ResourceContainer, r cloudflare.DNSRecord, content string, ttl int) error {
	_, err := p.api.UpdateDNSRecord(ctx, rc, cloudflare.UpdateDNSRecordParams{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: content,
		TTL:     ttl,
		Comment: p.comment,
	})
	if err != nil {
		return hosting.WrapError(p.name, "upsert record set", classify(err))
	}
	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("name", r.Name),
		slog.String("type", r.Type),
		slog.String("record_id", r.ID),
		slog.String("content", content),
		slog.Int("ttl", ttl),
	)
	return nil
}

func (p *Provider) listPage(ctx context.Context, zoneID, name string, rtype hosting.RecordType, page int) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error) {
	return p.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: string(rtype),
		Name: apiName(name),
		ResultInfo: cloudflare.ResultInfo{
			Page:    page,
			PerPage: p.perPage,
		},
	})
}

func (p *Provider) listAll(ctx context.Context, zoneID, name string, rtype hosting.RecordType) ([]cloudflare.DNSRecord, error) {
	var all []cloudflare.DNSRecord
	for page := 1; page <= maxUpsertPages; page++ {
		records, info, err := p.listPage(ctx, zoneID, name, rtype, page)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if hosting.SameName(r.Name, name) && r.Type == string(rtype) {
				all = append(all, r)
			}
		}
		if info == nil || page >= info.TotalPages {
			break
		}
	}
	return all, nil
}

// groupRecordSets folds individual records into record sets, preserving
// first-seen order.
func groupRecordSets(records []cloudflare.DNSRecord) []hosting.RecordSet {
	type key struct{ name, rtype string }
	index := make(map[key]int)
	var sets []hosting.RecordSet

	for _, r := range records {
		k := key{hosting.CanonicalName(r.Name), r.Type}
		i, ok := index[k]
		if !ok {
			i = len(sets)
			index[k] = i
			sets = append(sets, hosting.RecordSet{
				Name: r.Name,
				Type: hosting.RecordType(r.Type),
				TTL:  r.TTL,
			})
		}
		sets[i].Values = append(sets[i].Values, r.Content)
	}
	return sets
}

// Factory returns a hosting.Factory for use with the backend registry.
func Factory(opts ...ProviderOption) hosting.Factory {
	return func(name string, settings map[string]string) (hosting.Backend, error) {
		return NewFromMap(name, settings, opts...)
	}
}

// Ensure Provider implements hosting.Backend at compile time.
var _ hosting.Backend = (*Provider)(nil)
