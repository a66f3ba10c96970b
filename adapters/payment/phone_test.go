package payment

import (
	"errors"
	"testing"

	"github.com/wkarimi/kodisha/ports"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"local zero form", "0712345678", "254712345678", true},
		{"local zero form new range", "0110345678", "254110345678", true},
		{"plus prefixed", "+254712345678", "254712345678", true},
		{"canonical", "254712345678", "254712345678", true},
		{"bare subscriber number", "712345678", "254712345678", true},
		{"bare new-range number", "110345678", "254110345678", true},
		{"spaces stripped", " 0712 345 678 ", "254712345678", true},
		{"empty", "", "", false},
		{"too short", "0712", "", false},
		{"zero form too long", "07123456789", "", false},
		{"canonical too short", "25471234567", "", false},
		{"canonical too long", "2547123456789", "", false},
		{"landline prefix", "254812345678", "", false},
		{"non-mobile after zero", "0812345678", "", false},
		{"letter in digits", "07123a5678", "", false},
		{"foreign number", "+1-202-555-0143", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.ok {
				if err != nil {
					t.Fatalf("NormalizePhone(%q) err = %v", tt.in, err)
				}
				if got != tt.want {
					t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
				}
				return
			}
			if !errors.Is(err, ports.ErrInvalidPhone) {
				t.Errorf("NormalizePhone(%q) err = %v, want ErrInvalidPhone", tt.in, err)
			}
		})
	}
}
