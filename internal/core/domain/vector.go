package domain

import (
	"fmt"
	"math"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero-length or zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalise scales v to unit length in place. Zero vectors are left unchanged.
func Normalise(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

// CheckModel returns ErrModelMismatch when a collection recorded as built by
// recorded is used with configured. An empty label matches anything.
func CheckModel(recorded, configured string) error {
	if recorded != "" && configured != "" && recorded != configured {
		return fmt.Errorf("%w: %w: collection was built with %s, configured %s",
			ErrVectorStore, ErrModelMismatch, recorded, configured)
	}
	return nil
}

// CheckDimensions returns ErrDimensionMismatch when got differs from want.
// A want of zero accepts any length.
func CheckDimensions(want, got int) error {
	if want != 0 && want != got {
		return fmt.Errorf("%w: %w: expected %d, got %d", ErrVectorStore, ErrDimensionMismatch, want, got)
	}
	return nil
}
