package types

import "testing"

func TestAddressValidate(t *testing.T) {
	t.Parallel()

	full := Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62704", Country: "us"}
	if missing := full.Validate(); missing != "" {
		t.Fatalf("expected complete address, got missing %q", missing)
	}
	if got := full.NormalizedCountry(); got != "US" {
		t.Fatalf("expected normalized country US, got %q", got)
	}

	tests := []struct {
		name    string
		mutate  func(*Address)
		missing string
	}{
		{"line1", func(a *Address) { a.Line1 = " " }, "line1"},
		{"city", func(a *Address) { a.City = "" }, "city"},
		{"state", func(a *Address) { a.State = "" }, "state"},
		{"postal", func(a *Address) { a.PostalCode = "" }, "postal_code"},
	}
	for _, tt := range tests {
		addr := full
		tt.mutate(&addr)
		if got := addr.Validate(); got != tt.missing {
			t.Fatalf("%s: expected missing %q, got %q", tt.name, tt.missing, got)
		}
	}
}

func TestAddressCountryDefaultsToUS(t *testing.T) {
	t.Parallel()

	addr := Address{Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62704"}
	if got := addr.NormalizedCountry(); got != "US" {
		t.Fatalf("expected default country US, got %q", got)
	}
}
