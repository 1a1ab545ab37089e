package analyzer

import (
	"errors"
	"math"
	"sort"
	"time"
)

// ErrInsufficientData indicates that not enough data points were provided
// (need at least 2 points for 1 return).
var ErrInsufficientData = errors.New("insufficient data points")

// Sample is one share price observation.
type Sample struct {
	Timestamp time.Time
	Price     float64
}

// CalculateVolatility calculates the annualized historical volatility of a share price series.
// Samples are sorted chronologically in place.
// It uses logarithmic returns and the population standard deviation.
// The annualizationFactor should match the sampling frequency (e.g., 52560 for 10 minute harvests).
func CalculateVolatility(samples []Sample, annualizationFactor float64) (float64, error) {
	n := len(samples)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		current := samples[i].Price
		previous := samples[i-1].Price
		if previous <= 0 || current <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(current/previous))
	}

	numReturns := len(logReturns)
	if numReturns == 0 {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(numReturns)

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += math.Pow(r-mean, 2)
	}
	stdDev := math.Sqrt(sumSqDiff / float64(numReturns))

	// Multiply by the square root of the number of periods in a year
	return stdDev * math.Sqrt(annualizationFactor), nil
}

// PeriodsPerYear converts a sampling interval into an annualization factor.
func PeriodsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(year) / float64(interval)
}
