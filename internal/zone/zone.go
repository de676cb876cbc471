// Package zone finds the provider zone that owns a record name.
package zone

import (
	"context"
	"log/slog"
	"strings"

	"github.com/miekg/dns"
)

// ZoneFinder looks up a zone by its exact name and returns its id, or ""
// when no active zone has that name.
type ZoneFinder interface {
	ZoneID(ctx context.Context, name string) (string, error)
}

type Binding struct {
	ZoneID   string `json:"zone_id"`
	ZoneName string `json:"zone_name"`
}

type Locator struct {
	finder ZoneFinder
}

func NewLocator(finder ZoneFinder) *Locator {
	return &Locator{finder: finder}
}

// Candidates lists the suffixes of recordName that could be a zone,
// starting with the last two labels and growing one label at a time up
// to the full name. Names with fewer than two labels have no candidates.
func Candidates(recordName string) []string {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(recordName), "."))
	if name == "" {
		return nil
	}
	labels := dns.SplitDomainName(name)
	if len(labels) < 2 {
		return nil
	}

	candidates := make([]string, 0, len(labels)-1)
	for i := len(labels) - 2; i >= 0; i-- {
		candidates = append(candidates, strings.Join(labels[i:], "."))
	}
	return candidates
}

// Locate returns the first candidate the finder knows as a zone. A failed
// lookup counts as no match for that candidate.
func (l *Locator) Locate(ctx context.Context, recordName string) (Binding, bool) {
	for _, candidate := range Candidates(recordName) {
		if ctx.Err() != nil {
			return Binding{}, false
		}
		id, err := l.finder.ZoneID(ctx, candidate)
		if err != nil {
			slog.Warn("Zone lookup failed", "zone", candidate, "record", recordName, "error", err)
			continue
		}
		if id != "" {
			slog.Debug("Located zone", "zone", candidate, "record", recordName)
			return Binding{ZoneID: id, ZoneName: candidate}, true
		}
	}
	return Binding{}, false
}
