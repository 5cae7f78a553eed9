package database

import (
	"math"
	"testing"
)

func TestCosineDistance_Identical(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2, 3}

	dist := CosineDistance(a, b)
	if math.Abs(dist) > 1e-9 {
		t.Errorf("expected distance 0 for identical vectors, got %f", dist)
	}
}

func TestCosineDistance_Opposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}

	dist := CosineDistance(a, b)
	if math.Abs(dist-2.0) > 1e-9 {
		t.Errorf("expected distance 2 for opposite vectors, got %f", dist)
	}
}

func TestCosineDistance_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	dist := CosineDistance(a, b)
	if math.Abs(dist-1.0) > 1e-9 {
		t.Errorf("expected distance 1 for orthogonal vectors, got %f", dist)
	}
}

func TestCosineDistance_ScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{2, 4, 6}

	dist := CosineDistance(a, b)
	if math.Abs(dist) > 1e-6 {
		t.Errorf("expected distance 0 for scaled vector, got %f", dist)
	}
}

func TestCosineDistance_ZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}

	dist := CosineDistance(a, b)
	if dist != 2.0 {
		t.Errorf("expected maximum distance 2 for zero vector, got %f", dist)
	}
}

func TestCosineDistance_MismatchedLengths(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{1, 2, 3}

	dist := CosineDistance(a, b)
	if dist != 2.0 {
		t.Errorf("expected maximum distance 2 for mismatched lengths, got %f", dist)
	}
}

func TestIsZeroVector(t *testing.T) {
	tests := []struct {
		name     string
		vec      []float32
		expected bool
	}{
		{"all zeros", []float32{0, 0, 0}, true},
		{"empty", []float32{}, true},
		{"one nonzero", []float32{0, 0.001, 0}, false},
		{"negative", []float32{0, -1, 0}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsZeroVector(tc.vec); got != tc.expected {
				t.Errorf("IsZeroVector(%v) = %v; want %v", tc.vec, got, tc.expected)
			}
		})
	}
}
