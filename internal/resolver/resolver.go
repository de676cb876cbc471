// Package resolver looks up target addresses through a DNS over HTTPS
// JSON endpoint.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/miekg/dns"
)

type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f Family) String() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

// Code is the numeric record type answers must carry.
func (f Family) Code() uint16 {
	if f == IPv6 {
		return dns.TypeAAAA
	}
	return dns.TypeA
}

type Resolver interface {
	Resolve(ctx context.Context, hostname string, family Family) ([]string, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type answer struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

type response struct {
	Status int      `json:"Status"`
	Answer []answer `json:"Answer"`
}

type client struct {
	endpoint string
	timeout  time.Duration
	http     Httper
	metrics  *metrics.Metrics
}

func New(cfg config.Resolver, metrics *metrics.Metrics) Resolver {
	return &client{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		http:     &http.Client{Timeout: cfg.Timeout},
		metrics:  metrics,
	}
}

// Resolve returns the addresses of hostname for family in answer order,
// without duplicates. CNAME and other answers in the chain are skipped.
func (c *client) Resolve(ctx context.Context, hostname string, family Family) ([]string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.query(ctx, hostname, family)
	c.metrics.IncResolverRequest(family.String(), err == nil)
	if err != nil {
		return nil, err
	}

	addrs := []string{}
	seen := make(map[string]bool)
	for _, a := range resp.Answer {
		if a.Type != family.Code() {
			continue
		}
		ip, ok := family.parse(a.Data)
		if !ok {
			slog.Warn("Skipping answer that is not a plain address of its type", "host", hostname, "type", family.String(), "data", a.Data)
			continue
		}
		addr := ip.String()
		if seen[addr] {
			continue
		}
		seen[addr] = true
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// parse accepts only addresses of the family. IPv4-mapped IPv6 is not an
// AAAA address here.
func (f Family) parse(data string) (netip.Addr, bool) {
	ip, err := netip.ParseAddr(data)
	if err != nil || ip.Zone() != "" {
		return netip.Addr{}, false
	}
	if f == IPv6 {
		return ip, ip.Is6() && !ip.Is4In6()
	}
	return ip, ip.Is4()
}

func (c *client) query(ctx context.Context, hostname string, family Family) (response, error) {
	q := url.Values{}
	q.Set("name", hostname)
	q.Set("type", family.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return response{}, fmt.Errorf("doh request, status=%d", resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("parse doh response, err=%w", err)
	}
	// NXDOMAIN is a valid empty answer; any other failure code is not.
	if out.Status != dns.RcodeSuccess && out.Status != dns.RcodeNameError {
		return response{}, fmt.Errorf("doh query failed, rcode=%s", rcodeName(out.Status))
	}
	return out, nil
}

func rcodeName(rcode int) string {
	if name, ok := dns.RcodeToString[rcode]; ok {
		return name
	}
	return fmt.Sprintf("%d", rcode)
}

// ResolveAddresses never fails: a lookup error is logged and the target
// contributes no addresses.
func ResolveAddresses(ctx context.Context, r Resolver, hostname string, family Family) []string {
	addrs, err := r.Resolve(ctx, hostname, family)
	if err != nil {
		slog.Error("Failed to resolve target", "host", hostname, "type", family.String(), "error", err)
		return []string{}
	}
	return addrs
}
