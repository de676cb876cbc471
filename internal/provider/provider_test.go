package provider

import (
	"errors"
	"testing"
)

func TestNewAddressRecord(t *testing.T) {
	tests := []struct {
		name        string
		address     string
		recordType  string
		wantContent string
		expectError bool
	}{
		{name: "ipv4", address: "10.0.0.5", recordType: TypeA, wantContent: "10.0.0.5"},
		{name: "ipv6 canonical", address: "2001:DB8:0:0::1", recordType: TypeAAAA, wantContent: "2001:db8::1"},
		{name: "mapped ipv4 is A", address: "::ffff:10.0.0.5", recordType: TypeA, wantContent: "10.0.0.5"},
		{name: "family mismatch", address: "10.0.0.5", recordType: TypeAAAA, expectError: true},
		{name: "not an address", address: "origin.internal", recordType: TypeA, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewAddressRecord("app.example.com", tt.address, tt.recordType, 60, true)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got record %+v", rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", rec.Content, tt.wantContent)
			}
			if rec.Type != tt.recordType || rec.Name != "app.example.com" || rec.TTL != 60 || !rec.Proxied {
				t.Errorf("unexpected record %+v", rec)
			}
		})
	}
}

func TestFailed(t *testing.T) {
	res := Failed(ActionDelete, "10.0.0.9", errors.New("boom"))
	if res.Success || res.Address != "10.0.0.9" || res.Action != ActionDelete || res.Error != "boom" {
		t.Errorf("unexpected result %+v", res)
	}
}
