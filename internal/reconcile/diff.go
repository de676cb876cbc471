package reconcile

import (
	"log/slog"
	"net/netip"

	"github.com/evanofslack/ddns-sync/internal/provider"
)

// Diff compares desired addresses against current records. Add keeps the
// order of desired, Delete keeps the order of current. Every copy of an
// unwanted address is deleted; extra copies of a wanted address are left
// alone.
func Diff(desired []string, current []provider.Record) Plan {
	plan := Plan{
		Add:    []string{},
		Delete: []provider.Record{},
	}

	want := make(map[string]bool, len(desired))
	for _, addr := range desired {
		want[canonicalAddress(addr)] = true
	}

	have := make(map[string]bool, len(current))
	for _, r := range current {
		addr := canonicalAddress(r.Content)
		if !want[addr] {
			plan.Delete = append(plan.Delete, r)
			continue
		}
		if have[addr] {
			slog.Debug("Ignoring duplicate record", "name", r.Name, "data", r.Content, "id", r.ID)
			continue
		}
		have[addr] = true
	}

	added := make(map[string]bool, len(desired))
	for _, addr := range desired {
		key := canonicalAddress(addr)
		if have[key] || added[key] {
			continue
		}
		added[key] = true
		plan.Add = append(plan.Add, addr)
	}
	return plan
}

// canonicalAddress gives IP addresses one textual form so that
// 2001:DB8::1 and 2001:db8::1 compare equal. Anything else is returned
// unchanged.
func canonicalAddress(s string) string {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return s
	}
	return ip.Unmap().String()
}
