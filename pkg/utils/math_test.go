package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	NormalizeL2(x)
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", x)
	}

	zero := []float32{0, 0, 0}
	NormalizeL2(zero)
	for _, v := range zero {
		if v != 0 {
			t.Fatalf("zero vector changed: %v", zero)
		}
	}
}

func TestAllFinite(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want bool
	}{
		{"finite", []float32{1, -2, 0.5}, true},
		{"empty", nil, true},
		{"nan", []float32{1, float32(math.NaN())}, false},
		{"inf", []float32{float32(math.Inf(1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllFinite(tt.in); got != tt.want {
				t.Errorf("AllFinite(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
