package utils

import (
	"errors"
	"math"
)

var (
	ErrEmptyVector       = errors.New("vectors cannot be empty")
	ErrDimensionMismatch = errors.New("vectors must have the same dimension")
)

// Norm returns the L2 norm of vec, accumulated in float64.
func Norm(vec []float32) float64 {
	var sumOfSquares float64
	for _, val := range vec {
		sumOfSquares += float64(val) * float64(val)
	}
	return math.Sqrt(sumOfSquares)
}

// Normalize returns a unit-length copy of vec. A zero vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	n := Norm(vec)
	if n == 0 {
		copy(out, vec)
		return out
	}
	for i, val := range vec {
		out[i] = float32(float64(val) / n)
	}
	return out
}

// CosineSimilarity returns a score in [-1, 1]. Zero-magnitude vectors score 0.
func CosineSimilarity(vec1, vec2 []float32) (float64, error) {
	if len(vec1) == 0 || len(vec2) == 0 {
		return 0, ErrEmptyVector
	}
	if len(vec1) != len(vec2) {
		return 0, ErrDimensionMismatch
	}

	var dot float64
	for i := range vec1 {
		dot += float64(vec1[i]) * float64(vec2[i])
	}

	mag1 := Norm(vec1)
	mag2 := Norm(vec2)
	if mag1 == 0 || mag2 == 0 {
		return 0, nil
	}

	sim := dot / (mag1 * mag2)
	// rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, sim)), nil
}
