package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/provider"
)

const (
	recordsPerPage = 100
	zoneStatus     = "active"
)

type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
	timeout time.Duration
}

// New builds a client that never retries: a failed call is reported once
// and the next scheduled run tries again. Requests share one rate limit
// for the token.
func New(cfg config.DNS, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	token := cfg.Token
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}

	opts := []cloudflare.Option{
		cloudflare.UsingRetryPolicy(0, 0, 0),
		cloudflare.HTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, cloudflare.UsingRateLimit(cfg.RateLimit))
	}
	if cfg.APIURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.APIURL))
	}

	client, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
		timeout: cfg.RequestTimeout,
	}, nil
}

func (p *CloudflareProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// ZoneID returns the id of the active zone called name, or "" when the
// account has no such zone.
func (p *CloudflareProvider) ZoneID(ctx context.Context, name string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.ListZonesContext(ctx, cloudflare.WithZoneFilters(name, "", zoneStatus))
	if err != nil {
		p.metrics.IncDNSRequest("lookup", false)
		return "", fmt.Errorf("failed to list zones: %w", err)
	}
	if !resp.Success {
		p.metrics.IncDNSRequest("lookup", false)
		return "", errors.New("zone lookup not successful")
	}
	p.metrics.IncDNSRequest("lookup", true)

	if len(resp.Result) == 0 {
		slog.Debug("No zone found", "zone", name)
		return "", nil
	}
	return resp.Result[0].ID, nil
}

// ListRecords fetches a single page of records. More than one page of
// records for one name and type is not expected.
func (p *CloudflareProvider) ListRecords(ctx context.Context, zoneID, name, recordType string) ([]provider.Record, error) {
	start := time.Now()
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := cloudflare.ListDNSRecordsParams{
		Name: name,
		Type: recordType,
		ResultInfo: cloudflare.ResultInfo{
			Page:    1,
			PerPage: recordsPerPage,
		},
	}

	records, _, err := p.client.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncDNSRequest("read", false)
		return nil, fmt.Errorf("failed to list DNS records: %w", err)
	}
	p.metrics.IncDNSRequest("read", true)

	result := make([]provider.Record, 0, len(records))
	for _, r := range records {
		proxied := false
		if r.Proxied != nil {
			proxied = *r.Proxied
		}
		result = append(result, provider.Record{
			ID:      r.ID,
			Name:    r.Name,
			Type:    r.Type,
			Content: r.Content,
			TTL:     r.TTL,
			Proxied: proxied,
		})
	}

	slog.Debug("Retrieved DNS records", "name", name, "type", recordType, "count", len(result), "duration", time.Since(start))
	return result, nil
}

func (p *CloudflareProvider) CreateRecord(ctx context.Context, zoneID string, record provider.Record) provider.Result {
	slog.Info("Creating DNS record", "name", record.Name, "type", record.Type, "data", record.Content)
	start := time.Now()
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	proxied := record.Proxied
	params := cloudflare.CreateDNSRecordParams{
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: &proxied,
	}

	if _, err := p.client.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params); err != nil {
		p.metrics.IncDNSRequest("create", false)
		return provider.Failed(provider.ActionAdd, record.Content, fmt.Errorf("failed to create DNS record: %w", err))
	}

	p.metrics.IncDNSRequest("create", true)
	slog.Debug("Created DNS record", "name", record.Name, "type", record.Type, "duration", time.Since(start))
	return provider.Result{Success: true, Address: record.Content, Action: provider.ActionAdd}
}

func (p *CloudflareProvider) DeleteRecord(ctx context.Context, zoneID string, record provider.Record) provider.Result {
	slog.Info("Deleting DNS record", "name", record.Name, "type", record.Type, "data", record.Content)
	start := time.Now()
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.client.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), record.ID); err != nil {
		p.metrics.IncDNSRequest("delete", false)
		return provider.Failed(provider.ActionDelete, record.Content, fmt.Errorf("failed to delete DNS record: %w", err))
	}

	p.metrics.IncDNSRequest("delete", true)
	slog.Debug("Deleted DNS record", "name", record.Name, "type", record.Type, "duration", time.Since(start))
	return provider.Result{Success: true, Address: record.Content, Action: provider.ActionDelete}
}
