package metrics

import (
	"context"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
)

// instrumentedBackend records request counts and latency for every call.
type instrumentedBackend struct {
	hosting.Backend
}

// InstrumentBackend wraps b so that each hosting API call is measured.
func InstrumentBackend(b hosting.Backend) hosting.Backend {
	if b == nil {
		return nil
	}
	return &instrumentedBackend{Backend: b}
}

func (i *instrumentedBackend) observe(operation string, start time.Time, err error) {
	name := i.Backend.Name()
	HostingAPIRequestsTotal.WithLabelValues(name, operation, statusLabel(err)).Inc()
	HostingAPIDuration.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
}

func (i *instrumentedBackend) Ping(ctx context.Context) error {
	start := time.Now()
	err := i.Backend.Ping(ctx)
	i.observe("ping", start, err)
	return err
}

func (i *instrumentedBackend) ListHostedZones(ctx context.Context) ([]hosting.HostedZone, error) {
	start := time.Now()
	zones, err := i.Backend.ListHostedZones(ctx)
	i.observe("list_hosted_zones", start, err)
	return zones, err
}

func (i *instrumentedBackend) ListRecordSets(ctx context.Context, zoneID string, q hosting.Query) (*hosting.Page, error) {
	start := time.Now()
	page, err := i.Backend.ListRecordSets(ctx, zoneID, q)
	i.observe("list_record_sets", start, err)
	return page, err
}

func (i *instrumentedBackend) UpsertRecordSet(ctx context.Context, zoneID string, rs hosting.RecordSet) error {
	start := time.Now()
	err := i.Backend.UpsertRecordSet(ctx, zoneID, rs)
	i.observe("upsert_record_set", start, err)
	return err
}
