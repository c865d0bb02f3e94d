package utils

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		raw      uint64
		decimals uint8
		want     string
	}{
		{raw: 1_500_000, decimals: 6, want: "1.500000"},
		{raw: 99, decimals: 6, want: "0.000099"},
		{raw: 0, decimals: 6, want: "0.000000"},
		{raw: 42, decimals: 0, want: "42"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.raw, tt.decimals); got != tt.want {
			t.Errorf("FormatAmount(%d, %d) = %q, want %q", tt.raw, tt.decimals, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1.5", want: 1_500_000},
		{in: "0.000119", want: 119},
		{in: "120", want: 120_000_000},
		{in: "0.0000001", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in, 6)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"CashLent":      "cash_lent",
		"AmmCreated":    "amm_created",
		"create-pool":   "create_pool",
		"HTTPServer":    "http_server",
		"already_snake": "already_snake",
	}
	for in, want := range tests {
		if got := ToSnakeCase(in); got != want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
