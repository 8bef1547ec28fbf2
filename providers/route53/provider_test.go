package route53

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI is an in-memory Route53 zone that pages pageSize record sets at a time.
type fakeAPI struct {
	mu       sync.Mutex
	zones    []types.HostedZone
	sets     []types.ResourceRecordSet
	pageSize int

	listCalls  []*route53.ListResourceRecordSetsInput
	changes    []*route53.ChangeResourceRecordSetsInput
	zoneMarks  []string
	listErr    error
	changeErr  error
	zonePageSz int
}

func (f *fakeAPI) ListHostedZones(_ context.Context, in *route53.ListHostedZonesInput, _ ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	f.zoneMarks = append(f.zoneMarks, aws.ToString(in.Marker))
	size := f.zonePageSz
	if size == 0 {
		size = len(f.zones)
	}
	start := 0
	if in.Marker != nil {
		for i, z := range f.zones {
			if aws.ToString(z.Id) == *in.Marker {
				start = i
			}
		}
	}
	end := start + size
	out := &route53.ListHostedZonesOutput{}
	if end < len(f.zones) {
		out.IsTruncated = true
		out.NextMarker = f.zones[end].Id
	} else {
		end = len(f.zones)
	}
	out.HostedZones = f.zones[start:end]
	return out, nil
}

func (f *fakeAPI) ListResourceRecordSets(_ context.Context, in *route53.ListResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls = append(f.listCalls, in)
	if f.listErr != nil {
		return nil, f.listErr
	}

	start := 0
	if in.StartRecordName != nil {
		for i, s := range f.sets {
			if aws.ToString(s.Name) == *in.StartRecordName && s.Type == in.StartRecordType {
				start = i
				break
			}
		}
	}
	end := start + f.pageSize
	out := &route53.ListResourceRecordSetsOutput{}
	if end < len(f.sets) {
		out.IsTruncated = true
		out.NextRecordName = f.sets[end].Name
		out.NextRecordType = f.sets[end].Type
	} else {
		end = len(f.sets)
	}
	out.ResourceRecordSets = f.sets[start:end]
	return out, nil
}

func (f *fakeAPI) ChangeResourceRecordSets(_ context.Context, in *route53.ChangeResourceRecordSetsInput, _ ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.changeErr != nil {
		return nil, f.changeErr
	}
	f.changes = append(f.changes, in)

	for _, c := range in.ChangeBatch.Changes {
		rrs := *c.ResourceRecordSet
		replaced := false
		for i, s := range f.sets {
			if aws.ToString(s.Name) == aws.ToString(rrs.Name) && s.Type == rrs.Type {
				f.sets[i] = rrs
				replaced = true
			}
		}
		if !replaced {
			f.sets = append(f.sets, rrs)
		}
	}

	return &route53.ChangeResourceRecordSetsOutput{
		ChangeInfo: &types.ChangeInfo{Id: aws.String("/change/C1"), Status: types.ChangeStatusPending},
	}, nil
}

func recordSet(name string, t types.RRType, values ...string) types.ResourceRecordSet {
	rrs := types.ResourceRecordSet{Name: aws.String(name), Type: t, TTL: aws.Int64(300)}
	for _, v := range values {
		rrs.ResourceRecords = append(rrs.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
	}
	return rrs
}

func newTestProvider(t *testing.T, api API) *Provider {
	t.Helper()
	p, err := New(context.Background(), "r53", ConfigFromMap(nil), WithAPI(api), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestProvider_NameType(t *testing.T) {
	p := newTestProvider(t, &fakeAPI{})
	if p.Name() != "r53" {
		t.Errorf("expected name r53, got %s", p.Name())
	}
	if p.Type() != "route53" {
		t.Errorf("expected type route53, got %s", p.Type())
	}
}

func TestProvider_ListRecordSets_Paging(t *testing.T) {
	api := &fakeAPI{
		pageSize: 2,
		sets: []types.ResourceRecordSet{
			recordSet("example.com.", types.RRTypeNs, "ns-1.awsdns.com."),
			recordSet("example.com.", types.RRTypeSoa, "ns-1.awsdns.com. admin.example.com. 1 7200 900 1209600 86400"),
			recordSet("home.example.com.", types.RRTypeA, "203.0.113.5"),
		},
	}
	p := newTestProvider(t, api)
	ctx := context.Background()

	first, err := p.ListRecordSets(ctx, "Z1", hosting.Query{Name: "home.example.com", Type: hosting.RecordTypeA})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if !first.Truncated || first.Next == nil {
		t.Fatalf("expected truncated first page with cursor, got %+v", first)
	}
	if first.Next.RecordName != "home.example.com." || first.Next.RecordType != "A" {
		t.Errorf("unexpected cursor %+v", first.Next)
	}
	if api.listCalls[0].StartRecordName != nil {
		t.Error("expected first request without start record name")
	}

	second, err := p.ListRecordSets(ctx, "Z1", hosting.Query{Cursor: first.Next})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if second.Truncated || second.Next != nil {
		t.Errorf("expected final page, got %+v", second)
	}
	if len(second.RecordSets) != 1 {
		t.Fatalf("expected 1 record set, got %d", len(second.RecordSets))
	}
	rs := second.RecordSets[0]
	if rs.Name != "home.example.com." || rs.Type != hosting.RecordTypeA || rs.TTL != 300 {
		t.Errorf("unexpected record set %+v", rs)
	}
	if len(rs.Values) != 1 || rs.Values[0] != "203.0.113.5" {
		t.Errorf("unexpected values %v", rs.Values)
	}

	in := api.listCalls[1]
	if aws.ToString(in.StartRecordName) != "home.example.com." || in.StartRecordType != types.RRTypeA {
		t.Errorf("cursor not forwarded: %+v", in)
	}
	if aws.ToString(in.HostedZoneId) != "Z1" {
		t.Errorf("expected zone Z1, got %s", aws.ToString(in.HostedZoneId))
	}
}

func TestProvider_UpsertRecordSet(t *testing.T) {
	api := &fakeAPI{
		pageSize: 10,
		sets:     []types.ResourceRecordSet{recordSet("home.example.com.", types.RRTypeA, "203.0.113.5")},
	}
	p := newTestProvider(t, api)

	rs := hosting.RecordSet{Name: "home.example.com.", Type: hosting.RecordTypeA, Values: []string{"203.0.113.9"}, TTL: 120}
	for i := 0; i < 2; i++ {
		if err := p.UpsertRecordSet(context.Background(), "Z1", rs); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	if len(api.changes) != 2 {
		t.Fatalf("expected 2 change batches, got %d", len(api.changes))
	}
	batch := api.changes[0].ChangeBatch
	if aws.ToString(batch.Comment) != DefaultComment {
		t.Errorf("expected comment %q, got %q", DefaultComment, aws.ToString(batch.Comment))
	}
	if len(batch.Changes) != 1 {
		t.Fatalf("expected exactly one change, got %d", len(batch.Changes))
	}
	c := batch.Changes[0]
	if c.Action != types.ChangeActionUpsert {
		t.Errorf("expected UPSERT, got %s", c.Action)
	}
	if aws.ToInt64(c.ResourceRecordSet.TTL) != 120 {
		t.Errorf("expected TTL 120, got %d", aws.ToInt64(c.ResourceRecordSet.TTL))
	}
	if got := aws.ToString(c.ResourceRecordSet.ResourceRecords[0].Value); got != "203.0.113.9" {
		t.Errorf("expected value 203.0.113.9, got %s", got)
	}

	if len(api.sets) != 1 {
		t.Fatalf("expected a single record set after repeated upserts, got %d", len(api.sets))
	}
	if got := aws.ToString(api.sets[0].ResourceRecords[0].Value); got != "203.0.113.9" {
		t.Errorf("expected stored value 203.0.113.9, got %s", got)
	}
}

func TestProvider_ListHostedZones(t *testing.T) {
	api := &fakeAPI{
		zonePageSz: 1,
		zones: []types.HostedZone{
			{Id: aws.String("/hostedzone/Z1"), Name: aws.String("example.com.")},
			{Id: aws.String("/hostedzone/Z2"), Name: aws.String("example.org.")},
		},
	}
	p := newTestProvider(t, api)

	zones, err := p.ListHostedZones(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(zones))
	}
	if zones[0].ID != "Z1" || zones[1].ID != "Z2" {
		t.Errorf("expected prefix stripped, got %+v", zones)
	}
	if zones[1].Name != "example.org." {
		t.Errorf("unexpected name %s", zones[1].Name)
	}
	if len(api.zoneMarks) != 2 || api.zoneMarks[1] != "/hostedzone/Z2" {
		t.Errorf("expected NextMarker to be followed, got %v", api.zoneMarks)
	}
}

func TestProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"no such zone", &types.NoSuchHostedZone{Message: aws.String("nope")}, hosting.IsZoneNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}, hosting.IsUnauthorized},
		{"throttled", &smithy.GenericAPIError{Code: "Throttling", Message: "slow down"}, hosting.IsThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, &fakeAPI{listErr: tt.err, pageSize: 1})
			_, err := p.ListRecordSets(context.Background(), "Z1", hosting.Query{})
			if !hosting.IsAPIError(err) {
				t.Errorf("expected *hosting.APIError, got %T", err)
			}
			if !tt.check(err) {
				t.Errorf("classification failed for %v", err)
			}
		})
	}
}

func TestProvider_UpsertErrorPropagates(t *testing.T) {
	sentinel := errors.New("boom")
	p := newTestProvider(t, &fakeAPI{changeErr: sentinel})

	err := p.UpsertRecordSet(context.Background(), "Z1", hosting.RecordSet{Name: "a.example.com", Type: hosting.RecordTypeA, Values: []string{"203.0.113.1"}, TTL: 120})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
	if !hosting.IsAPIError(err) {
		t.Errorf("expected *hosting.APIError, got %T", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default chain", cfg: Config{Region: DefaultRegion}},
		{name: "static", cfg: Config{AccessKeyID: "AKIA", SecretAccessKey: "s"}},
		{name: "key without secret", cfg: Config{AccessKeyID: "AKIA"}, wantErr: true},
		{name: "bad endpoint", cfg: Config{Endpoint: "localhost:4566"}, wantErr: true},
		{name: "good endpoint", cfg: Config{Endpoint: "http://localhost:4566"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromMap_Defaults(t *testing.T) {
	cfg := ConfigFromMap(map[string]string{"ACCESS_KEY_ID": " AKIA ", "SECRET_ACCESS_KEY": "s"})
	if cfg.Region != "us-east-1" {
		t.Errorf("expected default region, got %s", cfg.Region)
	}
	if cfg.Comment != DefaultComment {
		t.Errorf("expected default comment, got %s", cfg.Comment)
	}
	if cfg.AccessKeyID != "AKIA" || !cfg.StaticCredentials() {
		t.Errorf("expected trimmed static credentials, got %+v", cfg)
	}
}

func TestProvider_SDKAgainstEndpoint(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/hostedzone") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListHostedZonesResponse xmlns="https://route53.amazonaws.com/doc/2013-04-01/">
  <HostedZones>
    <HostedZone>
      <Id>/hostedzone/Z1</Id>
      <Name>example.com.</Name>
      <CallerReference>ref</CallerReference>
      <ResourceRecordSetCount>3</ResourceRecordSetCount>
    </HostedZone>
  </HostedZones>
  <IsTruncated>false</IsTruncated>
  <MaxItems>100</MaxItems>
</ListHostedZonesResponse>`)
	}))
	defer srv.Close()

	p, err := NewFromMap("r53", map[string]string{
		"ACCESS_KEY_ID":     "AKIDEXAMPLE",
		"SECRET_ACCESS_KEY": "secret",
		"ENDPOINT":          srv.URL,
	}, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewFromMap: %v", err)
	}

	zones, err := p.ListHostedZones(context.Background())
	if err != nil {
		t.Fatalf("ListHostedZones: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != "Z1" || zones[0].Name != "example.com." {
		t.Errorf("unexpected zones %+v", zones)
	}
	if !strings.Contains(gotAuth, "AKIDEXAMPLE") {
		t.Errorf("expected request signed with static key, got %q", gotAuth)
	}
}
