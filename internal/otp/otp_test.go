package otp

import (
	"testing"
)

func TestGenerateLength(t *testing.T) {
	gen := NewCryptoSource()
	for _, digits := range []int{4, 6} {
		for i := 0; i < 200; i++ {
			code, err := gen.Generate(digits)
			if err != nil {
				t.Fatalf("Generate(%d) error = %v", digits, err)
			}
			if len(code) != digits {
				t.Fatalf("Generate(%d) = %q, wrong length", digits, code)
			}
			for _, c := range code {
				if c < '0' || c > '9' {
					t.Fatalf("Generate(%d) = %q, non-digit", digits, code)
				}
			}
		}
	}
}

func TestGenerateRejectsBadLength(t *testing.T) {
	gen := NewCryptoSource()
	for _, digits := range []int{0, -1, 10} {
		if _, err := gen.Generate(digits); err == nil {
			t.Errorf("Generate(%d) expected error", digits)
		}
	}
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	a := NewSeededSource(42)
	b := NewSeededSource(42)
	for i := 0; i < 10; i++ {
		x, _ := a.Generate(4)
		y, _ := b.Generate(4)
		if x != y {
			t.Fatalf("seeded sources diverged at %d: %s vs %s", i, x, y)
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name      string
		expected  string
		submitted string
		want      bool
	}{
		{"match", "0421", "0421", true},
		{"mismatch", "0421", "0422", false},
		{"length mismatch", "0421", "421", false},
		{"empty stored code never matches", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.expected, tt.submitted); got != tt.want {
				t.Errorf("Equal(%q, %q) = %v, want %v", tt.expected, tt.submitted, got, tt.want)
			}
		})
	}
}
