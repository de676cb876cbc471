package provider

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/libdns/libdns"
)

const (
	TypeA    = "A"
	TypeAAAA = "AAAA"
)

const (
	ActionAdd    = "add"
	ActionDelete = "delete"
)

// Provider is the set of calls the reconciler makes against the DNS host.
// Reads return errors; writes never do and report their outcome in Result.
type Provider interface {
	ZoneID(ctx context.Context, name string) (string, error)
	ListRecords(ctx context.Context, zoneID, name, recordType string) ([]Record, error)
	CreateRecord(ctx context.Context, zoneID string, record Record) Result
	DeleteRecord(ctx context.Context, zoneID string, record Record) Result
}

type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
	TTL     int
	Proxied bool
}

// Result is the outcome of a single write, echoing the address it touched.
type Result struct {
	Success bool
	Address string
	Action  string
	Error   string
}

func Failed(action, address string, err error) Result {
	return Result{Success: false, Address: address, Action: action, Error: err.Error()}
}

// NewAddressRecord builds an A or AAAA record for address. The record type
// follows the parsed address, so it must match recordType.
func NewAddressRecord(name, address, recordType string, ttl int, proxied bool) (Record, error) {
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return Record{}, fmt.Errorf("fail parse ip addr %s, err=%w", address, err)
	}
	addr := libdns.Address{
		Name: name,
		IP:   ip.Unmap(),
		TTL:  time.Duration(ttl) * time.Second,
	}
	rr := addr.RR()
	if rr.Type != recordType {
		return Record{}, fmt.Errorf("address %s is %s, not %s", address, rr.Type, recordType)
	}
	return Record{
		Name:    rr.Name,
		Type:    rr.Type,
		Content: rr.Data,
		TTL:     int(rr.TTL.Seconds()),
		Proxied: proxied,
	}, nil
}
