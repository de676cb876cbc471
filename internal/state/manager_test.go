package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/reconcile"
)

func newTestManager(t *testing.T, maxLogs int) (Manager, string) {
	t.Helper()
	// Create temporary directory for testing
	tempDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	dbPath := filepath.Join(tempDir, "badger")
	manager, err := New(dbPath, maxLogs, metrics.New(false))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return manager, dbPath
}

func report(total int) reconcile.SyncReport {
	results := make([]reconcile.DomainResult, 0, total)
	for i := 0; i < total; i++ {
		results = append(results, reconcile.DomainResult{
			ID:         "cfg",
			RecordName: "app.example.com",
			ZoneName:   "example.com",
			Status:     reconcile.StatusSuccess,
			IPv4:       &reconcile.ChangeSet{Added: []string{"10.0.0.5"}, Deleted: []string{}, Errors: []reconcile.OperationError{}},
		})
	}
	return reconcile.SyncReport{
		Timestamp:  time.Date(2026, 1, 1, 0, 0, total, 0, time.UTC),
		DurationMS: int64(total * 10),
		Total:      total,
		Trigger:    "manual",
		Results:    results,
	}
}

func TestAppendAndRecent(t *testing.T) {
	manager, _ := newTestManager(t, 50)
	defer manager.Close()
	ctx := context.Background()

	empty, err := manager.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent on empty db: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no reports, got %d", len(empty))
	}

	for i := 1; i <= 3; i++ {
		if err := manager.Append(ctx, report(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := manager.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(got))
	}
	for i, wantTotal := range []int{3, 2, 1} {
		if got[i].Total != wantTotal {
			t.Errorf("report %d total = %d, want %d (newest first)", i, got[i].Total, wantTotal)
		}
	}

	first := got[0]
	if !first.Timestamp.Equal(report(3).Timestamp) || first.Trigger != "manual" {
		t.Errorf("report not round-tripped: %+v", first)
	}
	if first.Results[0].IPv4 == nil || first.Results[0].IPv4.Added[0] != "10.0.0.5" {
		t.Errorf("results not round-tripped: %+v", first.Results)
	}
}

func TestRecentLimit(t *testing.T) {
	manager, _ := newTestManager(t, 50)
	defer manager.Close()
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		if err := manager.Append(ctx, report(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	def, err := manager.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(def) != DefaultRecentLimit {
		t.Errorf("default limit returned %d reports", len(def))
	}

	two, err := manager.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(two) != 2 || two[0].Total != 25 || two[1].Total != 24 {
		t.Errorf("unexpected reports %+v", two)
	}
}

func TestRetentionIsBounded(t *testing.T) {
	manager, _ := newTestManager(t, 5)
	defer manager.Close()
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		if err := manager.Append(ctx, report(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := manager.Recent(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 retained reports, got %d", len(got))
	}
	for i, wantTotal := range []int{12, 11, 10, 9, 8} {
		if got[i].Total != wantTotal {
			t.Errorf("report %d total = %d, want %d", i, got[i].Total, wantTotal)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	manager, dbPath := newTestManager(t, 50)
	ctx := context.Background()

	if err := manager.Append(ctx, report(1)); err != nil {
		t.Fatal(err)
	}
	if err := manager.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(dbPath, 50, metrics.New(false))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Append(ctx, report(2)); err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Total != 2 || got[1].Total != 1 {
		t.Errorf("unexpected reports after reopen %+v", got)
	}
}

func TestReportKeyOrdering(t *testing.T) {
	if string(reportKey(2)) >= string(reportKey(1)) {
		t.Error("newer reports must sort before older ones")
	}
}
