package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/provider"
	"github.com/evanofslack/ddns-sync/internal/resolver"
	"github.com/evanofslack/ddns-sync/internal/zone"
)

type Engine interface {
	// SyncAll reconciles every domain in order, one at a time. It never
	// fails: per-domain failures are reported in the results.
	SyncAll(ctx context.Context, domains []config.Domain) SyncReport
	Reconcile(ctx context.Context, domain config.Domain) DomainResult
}

type engine struct {
	dnsProvider            provider.Provider
	resolver               resolver.Resolver
	locator                *zone.Locator
	dryRun                 bool
	deleteOnResolveFailure bool
	metrics                *metrics.Metrics
}

func NewEngine(dp provider.Provider, r resolver.Resolver, cfg config.Reconcile, metrics *metrics.Metrics) *engine {
	return &engine{
		dnsProvider:            dp,
		resolver:               r,
		locator:                zone.NewLocator(dp),
		dryRun:                 cfg.DryRun,
		deleteOnResolveFailure: cfg.DeleteOnResolveFailure,
		metrics:                metrics,
	}
}

func (e *engine) SyncAll(ctx context.Context, domains []config.Domain) SyncReport {
	start := time.Now()
	results := make([]DomainResult, 0, len(domains))

	for _, d := range domains {
		results = append(results, e.Reconcile(ctx, d))
	}

	return SyncReport{
		Timestamp:  time.Now().UTC(),
		DurationMS: time.Since(start).Milliseconds(),
		Total:      len(domains),
		Results:    results,
	}
}

// Reconcile converges the records of one domain. Anything unexpected,
// including a panic, ends the domain with StatusError.
func (e *engine) Reconcile(ctx context.Context, d config.Domain) (result DomainResult) {
	result = DomainResult{
		ID:         d.ID,
		RecordName: d.RecordName,
		Status:     StatusPending,
		Details:    []resolver.TargetDetail{},
		DryRun:     e.dryRun,
	}
	log := slog.With("record", d.RecordName)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Reconcile panicked", "panic", r)
			result.Status = StatusError
			result.Error = fmt.Sprint(r)
		}
		e.metrics.IncDomainResult(string(result.Status))
	}()

	if err := ctx.Err(); err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	binding, ok := e.locator.Locate(ctx, d.RecordName)
	if !ok {
		result.Status = StatusError
		result.Error = reasonZoneNotFound
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
		}
		log.Error("No zone found for record", "reason", result.Error)
		return result
	}
	result.ZoneName = binding.ZoneName

	resolution := resolver.ResolveAll(ctx, e.resolver, d.Targets, d.IPv4(), d.IPv6())
	result.Details = resolution.Details
	if len(resolution.IPv4) == 0 && len(resolution.IPv6) == 0 {
		log.Warn("No target addresses resolved, leaving records untouched", "targets", len(d.Targets))
		result.Status = StatusWarning
		result.Error = reasonNoAddresses
		return result
	}

	if d.IPv4() {
		cs, err := e.reconcileFamily(ctx, binding, d, resolver.IPv4, resolution.IPv4, resolution.Failed[resolver.IPv4] > 0)
		result.IPv4 = cs
		if err != nil {
			log.Error("Failed to reconcile records", "type", provider.TypeA, "error", err)
			result.Status = StatusError
			result.Error = err.Error()
			return result
		}
	}
	if d.IPv6() {
		cs, err := e.reconcileFamily(ctx, binding, d, resolver.IPv6, resolution.IPv6, resolution.Failed[resolver.IPv6] > 0)
		result.IPv6 = cs
		if err != nil {
			log.Error("Failed to reconcile records", "type", provider.TypeAAAA, "error", err)
			result.Status = StatusError
			result.Error = err.Error()
			return result
		}
	}

	switch {
	case result.IPv4.failed() || result.IPv6.failed():
		result.Status = StatusPartial
	case result.IPv4.changes()+result.IPv6.changes() == 0:
		result.Status = StatusUnchanged
	default:
		result.Status = StatusSuccess
	}
	log.Info("Reconciled record", "status", result.Status, "zone", binding.ZoneName)
	return result
}

// reconcileFamily applies adds before deletes so the replacement address is
// live before the stale one goes. Every planned write is attempted.
func (e *engine) reconcileFamily(ctx context.Context, binding zone.Binding, d config.Domain, family resolver.Family, addresses []string, resolveFailed bool) (*ChangeSet, error) {
	recordType := family.String()
	cs := newChangeSet()

	desired := make(map[string]provider.Record, len(addresses))
	wanted := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		record, err := provider.NewAddressRecord(d.RecordName, addr, recordType, d.TTL, d.Proxied)
		if err != nil {
			cs.Errors = append(cs.Errors, OperationError{Address: addr, Operation: provider.ActionAdd, Error: err.Error()})
			continue
		}
		if _, dup := desired[record.Content]; dup {
			continue
		}
		desired[record.Content] = record
		wanted = append(wanted, record.Content)
	}

	current, err := e.dnsProvider.ListRecords(ctx, binding.ZoneID, d.RecordName, recordType)
	if err != nil {
		return cs, fmt.Errorf("list %s records: %w", recordType, err)
	}

	plan := Diff(wanted, current)
	slog.Debug("Planned record changes", "record", d.RecordName, "type", recordType, "add", len(plan.Add), "delete", len(plan.Delete))

	if resolveFailed && !e.deleteOnResolveFailure && len(plan.Delete) > 0 {
		for _, r := range plan.Delete {
			slog.Warn("Keeping record because a target failed to resolve", "record", d.RecordName, "type", recordType, "data", r.Content)
			cs.Suppressed = append(cs.Suppressed, r.Content)
			e.metrics.IncRecordOperation("skip", binding.ZoneName, recordType)
		}
		plan.Delete = []provider.Record{}
	}
	if plan.IsEmpty() {
		return cs, nil
	}

	for range plan.Add {
		e.metrics.IncRecordOperation("create", binding.ZoneName, recordType)
	}
	for range plan.Delete {
		e.metrics.IncRecordOperation("delete", binding.ZoneName, recordType)
	}

	if e.dryRun {
		slog.Info("Dry run mode - would change records", "record", d.RecordName, "type", recordType, "add", len(plan.Add), "delete", len(plan.Delete))
		cs.Added = append(cs.Added, plan.Add...)
		for _, r := range plan.Delete {
			cs.Deleted = append(cs.Deleted, r.Content)
		}
		return cs, nil
	}

	for _, addr := range plan.Add {
		res := e.dnsProvider.CreateRecord(ctx, binding.ZoneID, desired[addr])
		if res.Success {
			cs.Added = append(cs.Added, addr)
			continue
		}
		slog.Error("Failed to create record", "record", d.RecordName, "data", addr, "error", res.Error)
		cs.Errors = append(cs.Errors, OperationError{Address: addr, Operation: provider.ActionAdd, Error: res.Error})
	}

	for _, r := range plan.Delete {
		res := e.dnsProvider.DeleteRecord(ctx, binding.ZoneID, r)
		if res.Success {
			cs.Deleted = append(cs.Deleted, r.Content)
			continue
		}
		slog.Error("Failed to delete record", "record", d.RecordName, "data", r.Content, "error", res.Error)
		cs.Errors = append(cs.Errors, OperationError{Address: r.Content, Operation: provider.ActionDelete, Error: res.Error})
	}

	return cs, nil
}
