package utils

import (
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// MinFloat64 returns the smallest value of s, 0 for an empty slice
func MinFloat64(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Min(s)
}

// MaxFloat64 returns the largest value of s, 0 for an empty slice
func MaxFloat64(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Max(s)
}

// FormatFloat renders v in the shortest form that parses back to v
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
