// Package metric provides statistics over per-trade returns.
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic mean of the values, zero for an empty sample.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff is the ratio of the average win to the average loss. A sample
// with no losses returns 10.
func Payoff(values []float64) float64 {
	var wins, losses []float64
	for _, value := range values {
		if value >= 0 {
			wins = append(wins, value)
		} else {
			losses = append(losses, math.Abs(value))
		}
	}

	if len(losses) == 0 {
		return 10
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 10
	}

	return math.Abs(stat.Mean(wins, nil) / avgLoss)
}

// ProfitFactor is the ratio of total profits to total losses. A sample
// with no losses returns 10.
func ProfitFactor(values []float64) float64 {
	var totalWins, totalLosses float64
	for _, value := range values {
		if value >= 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalLosses == 0 {
		return 10
	}

	return math.Abs(totalWins / totalLosses)
}
