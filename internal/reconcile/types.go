package reconcile

import (
	"time"

	"github.com/evanofslack/ddns-sync/internal/provider"
	"github.com/evanofslack/ddns-sync/internal/resolver"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusPartial   Status = "partial"
	StatusUnchanged Status = "unchanged"
	StatusWarning   Status = "warning"
	StatusError     Status = "error"
)

const (
	reasonZoneNotFound = "zone not found"
	reasonNoAddresses  = "no target addresses resolved"
)

// Plan is the difference between desired addresses and the records the
// provider holds. A changed address is one delete plus one add.
type Plan struct {
	Add    []string
	Delete []provider.Record
}

func (p Plan) IsEmpty() bool {
	return len(p.Add) == 0 && len(p.Delete) == 0
}

type OperationError struct {
	Address   string `json:"address"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// ChangeSet is what was applied for one record type of one domain.
// Suppressed lists stale addresses that were kept because a target failed
// to resolve.
type ChangeSet struct {
	Added      []string         `json:"added"`
	Deleted    []string         `json:"deleted"`
	Errors     []OperationError `json:"errors"`
	Suppressed []string         `json:"suppressed,omitempty"`
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:   []string{},
		Deleted: []string{},
		Errors:  []OperationError{},
	}
}

func (c *ChangeSet) changes() int {
	if c == nil {
		return 0
	}
	return len(c.Added) + len(c.Deleted)
}

func (c *ChangeSet) failed() bool {
	return c != nil && len(c.Errors) > 0
}

// DomainResult is the outcome of reconciling one domain. IPv4 or IPv6 is
// nil when that family is disabled or was never reached.
type DomainResult struct {
	ID         string                  `json:"id"`
	RecordName string                  `json:"record_name"`
	ZoneName   string                  `json:"zone_name"`
	Status     Status                  `json:"status"`
	Details    []resolver.TargetDetail `json:"details"`
	IPv4       *ChangeSet              `json:"ipv4,omitempty"`
	IPv6       *ChangeSet              `json:"ipv6,omitempty"`
	Error      string                  `json:"error,omitempty"`
	DryRun     bool                    `json:"dry_run,omitempty"`
}

type SyncReport struct {
	Timestamp  time.Time      `json:"timestamp"`
	DurationMS int64          `json:"duration_ms"`
	Total      int            `json:"total"`
	Trigger    string         `json:"trigger,omitempty"`
	Results    []DomainResult `json:"results"`
}

// Counts tallies results by status.
func (r SyncReport) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}
