package units

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"zero short", "0x0", "0", false},
		{"zero padded", "0x0000000000000000000000000000000000000000000000000000000000000000", "0", false},
		{"one padded", "0x0000000000000000000000000000000000000000000000000000000000000001", "1", false},
		{"18 decimals", "0x1121d33597384000", "1234500000000000000", false},
		{"upper prefix", "0X64", "100", false},
		{"max uint256", "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"too large", "0x1" + "0000000000000000000000000000000000000000000000000000000000000000", "", true},
		{"missing prefix", "64", "", true},
		{"bad digit", "0xzz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuantity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuantity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Dec() != tt.want {
				t.Errorf("ParseQuantity(%q) = %s, want %s", tt.input, got.Dec(), tt.want)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		want     string
		wantErr  bool
	}{
		{"1234500000000000000", 18, "1.2345", false},
		{"100", 0, "100", false},
		{"1", 6, "0.000001", false},
		{"0", 18, "0", false},
		{"-1", 0, "", true},
		{"1.5", 0, "", true},
		{"abc", 0, "", true},
		{"1", -1, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := FormatUnits(tt.raw, tt.decimals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatUnits(%q, %d) error = %v, wantErr %v", tt.raw, tt.decimals, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("FormatUnits(%q, %d) = %s, want %s", tt.raw, tt.decimals, got.String(), tt.want)
			}
		})
	}
}

func TestDisplayBalance(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals *int
		want     string
	}{
		{"eighteen decimals", "1234500000000000000", intPtr(18), "1.2345"},
		{"zero decimals", "100", intPtr(0), "100.0000"},
		{"rounds half up", "1234550000000000000", intPtr(18), "1.2346"},
		{"rounds up fifth place", "1234560000000000000", intPtr(18), "1.2346"},
		{"rounds down fifth place", "1234540000000000000", intPtr(18), "1.2345"},
		{"dust rounds to zero", "1", intPtr(18), "0.0000"},
		{"truncated to twelve chars", "123456789123400", intPtr(6), "123456789.12"},
		{"unknown decimals", "42", nil, "42.0000"},
		{"zero", "0", intPtr(6), "0.0000"},
		{"garbage", "xyz", intPtr(6), "?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayBalance(tt.raw, tt.decimals); got != tt.want {
				t.Errorf("DisplayBalance(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
