package resolver

import (
	"context"
	"log/slog"
)

// TargetDetail records what one target contributed. Errors is keyed by
// record type and is only set when the lookup failed, so an empty address
// list without an error means the name has no records of that type.
type TargetDetail struct {
	Hostname string            `json:"hostname"`
	IPv4     []string          `json:"ipv4,omitempty"`
	IPv6     []string          `json:"ipv6,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

type Resolution struct {
	IPv4    []string
	IPv6    []string
	Details []TargetDetail
	// Failed counts targets whose lookup errored, per record type.
	Failed map[Family]int
}

// ResolveAll resolves every target in order and unions the results per
// family. Disabled families are not queried.
func ResolveAll(ctx context.Context, r Resolver, hostnames []string, ipv4, ipv6 bool) Resolution {
	res := Resolution{
		IPv4:    []string{},
		IPv6:    []string{},
		Details: make([]TargetDetail, 0, len(hostnames)),
		Failed:  map[Family]int{},
	}
	seen := map[Family]map[string]bool{IPv4: {}, IPv6: {}}

	for _, host := range hostnames {
		detail := TargetDetail{Hostname: host}

		for _, family := range enabledFamilies(ipv4, ipv6) {
			addrs, err := r.Resolve(ctx, host, family)
			if err != nil {
				slog.Error("Failed to resolve target", "host", host, "type", family.String(), "error", err)
				if detail.Errors == nil {
					detail.Errors = map[string]string{}
				}
				detail.Errors[family.String()] = err.Error()
				res.Failed[family]++
				addrs = []string{}
			}

			for _, addr := range addrs {
				if seen[family][addr] {
					continue
				}
				seen[family][addr] = true
				if family == IPv6 {
					res.IPv6 = append(res.IPv6, addr)
				} else {
					res.IPv4 = append(res.IPv4, addr)
				}
			}
			if family == IPv6 {
				detail.IPv6 = addrs
			} else {
				detail.IPv4 = addrs
			}
		}
		res.Details = append(res.Details, detail)
	}
	return res
}

func enabledFamilies(ipv4, ipv6 bool) []Family {
	var families []Family
	if ipv4 {
		families = append(families, IPv4)
	}
	if ipv6 {
		families = append(families, IPv6)
	}
	return families
}
