// Package route53 implements the ipweaver hosting backend for Amazon Route53.
package route53

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/httputil"
)

// TypeName is the registry key for this backend.
const TypeName = "route53"

const hostedZonePrefix = "/hostedzone/"

// Provider implements hosting.Backend for Route53.
type Provider struct {
	name       string
	comment    string
	api        API
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

// WithAPI replaces the SDK client, mainly for tests.
func WithAPI(api API) ProviderOption {
	return func(p *Provider) {
		p.api = api
	}
}

// WithHTTPClient sets the HTTP client handed to the SDK.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// New creates a new Route53 provider instance.
func New(ctx context.Context, name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:    name,
		comment: config.Comment,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.api == nil {
		if p.httpClient == nil {
			p.httpClient = httputil.NewClient(&httputil.ClientConfig{Logger: p.logger})
		}
		client, err := newSDKClient(ctx, config, p.httpClient)
		if err != nil {
			return nil, err
		}
		p.api = client
		p.logger.Debug("route53 client configured",
			slog.String("provider", name),
			slog.String("region", config.Region),
			slog.Bool("static_credentials", config.StaticCredentials()),
		)
	}

	return p, nil
}

// NewFromMap creates a new Route53 provider from a settings map.
func NewFromMap(name string, settings map[string]string, opts ...ProviderOption) (*Provider, error) {
	return New(context.Background(), name, ConfigFromMap(settings), opts...)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "route53".
func (p *Provider) Type() string {
	return TypeName
}

// Ping checks credentials by listing at most one hosted zone.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.api.ListHostedZones(ctx, &route53.ListHostedZonesInput{MaxItems: aws.Int32(1)})
	return hosting.WrapError(p.name, "ping", classify(err))
}

// ListHostedZones returns every hosted zone, following NextMarker.
func (p *Provider) ListHostedZones(ctx context.Context) ([]hosting.HostedZone, error) {
	var zones []hosting.HostedZone
	var marker *string

	for {
		out, err := p.api.ListHostedZones(ctx, &route53.ListHostedZonesInput{Marker: marker})
		if err != nil {
			return nil, hosting.WrapError(p.name, "list hosted zones", classify(err))
		}
		for _, z := range out.HostedZones {
			zones = append(zones, hosting.HostedZone{
				ID:   strings.TrimPrefix(aws.ToString(z.Id), hostedZonePrefix),
				Name: aws.ToString(z.Name),
			})
		}
		if !out.IsTruncated || out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	return zones, nil
}

// ListRecordSets returns one page of record sets. Route53 pages are ordered
// by name, so Query.Name and Query.Type are not used as start positions;
// only the cursor from a previous page is forwarded.
func (p *Provider) ListRecordSets(ctx context.Context, zoneID string, q hosting.Query) (*hosting.Page, error) {
	in := &route53.ListResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
	}
	if c := q.Cursor; c != nil {
		if c.RecordName != "" {
			in.StartRecordName = aws.String(c.RecordName)
		}
		if c.RecordType != "" {
			in.StartRecordType = types.RRType(c.RecordType)
		}
		if c.RecordIdentifier != "" {
			in.StartRecordIdentifier = aws.String(c.RecordIdentifier)
		}
	}

	out, err := p.api.ListResourceRecordSets(ctx, in)
	if err != nil {
		return nil, hosting.WrapError(p.name, "list record sets", classify(err))
	}

	page := &hosting.Page{
		RecordSets: make([]hosting.RecordSet, 0, len(out.ResourceRecordSets)),
		Truncated:  out.IsTruncated,
	}
	for _, rrs := range out.ResourceRecordSets {
		rs := hosting.RecordSet{
			Name: aws.ToString(rrs.Name),
			Type: hosting.RecordType(rrs.Type),
			TTL:  int(aws.ToInt64(rrs.TTL)),
		}
		for _, rr := range rrs.ResourceRecords {
			rs.Values = append(rs.Values, aws.ToString(rr.Value))
		}
		page.RecordSets = append(page.RecordSets, rs)
	}
	if out.IsTruncated {
		page.Next = &hosting.Cursor{
			RecordName:       aws.ToString(out.NextRecordName),
			RecordType:       string(out.NextRecordType),
			RecordIdentifier: aws.ToString(out.NextRecordIdentifier),
		}
	}

	p.logger.Debug("listed record sets",
		slog.String("provider", p.name),
		slog.String("zone_id", zoneID),
		slog.Int("count", len(page.RecordSets)),
		slog.Bool("truncated", page.Truncated),
	)

	return page, nil
}

// UpsertRecordSet sends a single UPSERT change for rs.
func (p *Provider) UpsertRecordSet(ctx context.Context, zoneID string, rs hosting.RecordSet) error {
	records := make([]types.ResourceRecord, 0, len(rs.Values))
	for _, v := range rs.Values {
		records = append(records, types.ResourceRecord{Value: aws.String(v)})
	}

	in := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String(p.comment),
			Changes: []types.Change{
				{
					Action: types.ChangeActionUpsert,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name:            aws.String(rs.Name),
						Type:            types.RRType(rs.Type),
						TTL:             aws.Int64(int64(rs.TTL)),
						ResourceRecords: records,
					},
				},
			},
		},
	}

	out, err := p.api.ChangeResourceRecordSets(ctx, in)
	if err != nil {
		return hosting.WrapError(p.name, "upsert record set", classify(err))
	}

	attrs := []any{
		slog.String("provider", p.name),
		slog.String("zone_id", zoneID),
		slog.String("name", rs.Name),
		slog.String("type", string(rs.Type)),
		slog.Any("values", rs.Values),
		slog.Int("ttl", rs.TTL),
	}
	if out != nil && out.ChangeInfo != nil {
		attrs = append(attrs,
			slog.String("change_id", aws.ToString(out.ChangeInfo.Id)),
			slog.String("status", string(out.ChangeInfo.Status)),
		)
	}
	p.logger.Info("upserted record set", attrs...)

	return nil
}

// Factory returns a hosting.Factory for use with the backend registry.
func Factory(opts ...ProviderOption) hosting.Factory {
	return func(name string, settings map[string]string) (hosting.Backend, error) {
		return NewFromMap(name, settings, opts...)
	}
}

// Ensure Provider implements hosting.Backend at compile time.
var _ hosting.Backend = (*Provider)(nil)
