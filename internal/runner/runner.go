// Package runner drives batch syncs for both the scheduler and on-demand
// triggers and hands each report to the sync log.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/reconcile"
	"github.com/evanofslack/ddns-sync/internal/runlock"
	"github.com/evanofslack/ddns-sync/internal/state"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

var ErrNoDomains = errors.New("no domains configured")

type Runner struct {
	engine  reconcile.Engine
	store   state.Manager
	lock    *runlock.Lock
	metrics *metrics.Metrics
	domains []config.Domain
}

// New wires a runner. store may be nil, in which case reports are not kept.
func New(engine reconcile.Engine, store state.Manager, lock *runlock.Lock, metrics *metrics.Metrics, domains []config.Domain) *Runner {
	return &Runner{
		engine:  engine,
		store:   store,
		lock:    lock,
		metrics: metrics,
		domains: domains,
	}
}

func (r *Runner) Domains() []config.Domain {
	return r.domains
}

// Run performs one batch sync. It fails only when there is nothing to do or
// another run holds the lock; domain failures live in the report.
func (r *Runner) Run(ctx context.Context, trigger string) (reconcile.SyncReport, error) {
	if len(r.domains) == 0 {
		slog.Info("No domains configured, skipping sync", "trigger", trigger)
		return reconcile.SyncReport{}, ErrNoDomains
	}

	release, err := r.lock.TryAcquire()
	if err != nil {
		slog.Warn("Sync not started", "trigger", trigger, "error", err)
		r.metrics.IncSyncRun(trigger, false)
		return reconcile.SyncReport{}, err
	}
	defer release()

	slog.Info("Starting sync operation", "trigger", trigger, "domains", len(r.domains))
	start := time.Now()

	report := r.engine.SyncAll(ctx, r.domains)
	report.Trigger = trigger
	r.metrics.SetSyncDuration(time.Since(start))

	counts := report.Counts()
	r.metrics.IncSyncRun(trigger, counts[reconcile.StatusError] == 0 && counts[reconcile.StatusPartial] == 0)

	for _, res := range report.Results {
		logResult(res)
	}
	slog.Info("Sync completed",
		"duration_ms", report.DurationMS,
		"total", report.Total,
		"success", counts[reconcile.StatusSuccess],
		"unchanged", counts[reconcile.StatusUnchanged],
		"partial", counts[reconcile.StatusPartial],
		"warning", counts[reconcile.StatusWarning],
		"error", counts[reconcile.StatusError])

	if r.store != nil {
		if err := r.store.Append(ctx, report); err != nil {
			slog.Error("Failed to save sync log", "error", err)
		}
	}
	return report, nil
}

func logResult(res reconcile.DomainResult) {
	added, deleted := 0, 0
	for _, cs := range []*reconcile.ChangeSet{res.IPv4, res.IPv6} {
		if cs != nil {
			added += len(cs.Added)
			deleted += len(cs.Deleted)
		}
	}

	switch res.Status {
	case reconcile.StatusSuccess:
		slog.Info("Record synced", "record", res.RecordName, "added", added, "deleted", deleted)
	case reconcile.StatusUnchanged:
		slog.Info("Record unchanged", "record", res.RecordName)
	default:
		slog.Warn("Record not fully synced", "record", res.RecordName, "status", res.Status, "error", res.Error)
	}
}

// Loop runs a sync immediately and then every interval until ctx is done.
func (r *Runner) Loop(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Run(ctx, TriggerSchedule); err != nil && !errors.Is(err, ErrNoDomains) {
			slog.Error("Sync operation failed", "error", err)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping sync loop")
			return
		}
	}
}

// Recent returns stored reports, newest first.
func (r *Runner) Recent(ctx context.Context, limit int) ([]reconcile.SyncReport, error) {
	if r.store == nil {
		return nil, fmt.Errorf("sync log not configured")
	}
	return r.store.Recent(ctx, limit)
}
