// Package stats implements the hypothesis tests and interval estimates the
// results aggregator builds on. Everything is closed-form.
package stats

import "math"

// TwoProportionZTest performs a two-proportion z-test.
// Returns confidence level (0-1) that proportion A beats proportion B.
func TwoProportionZTest(aSuccess, aTrials, bSuccess, bTrials int) float64 {
	// Handle edge cases
	if aTrials == 0 || bTrials == 0 {
		return 0.5 // Need data from both variants
	}

	pA := float64(aSuccess) / float64(aTrials)
	pB := float64(bSuccess) / float64(bTrials)

	// Pooled proportion under null hypothesis (pA = pB)
	pooledP := float64(aSuccess+bSuccess) / float64(aTrials+bTrials)

	// Standard error of the difference
	se := math.Sqrt(pooledP * (1 - pooledP) * (1/float64(aTrials) + 1/float64(bTrials)))

	if se == 0 {
		if pA > pB {
			return 1.0
		} else if pA < pB {
			return 0.0
		}
		return 0.5
	}

	z := (pA - pB) / se

	// P(Z < z) gives us confidence that A > B
	return normalCDF(z)
}

// normalCDF approximates the cumulative distribution function
// of the standard normal distribution
func normalCDF(x float64) float64 {
	// Abramowitz and Stegun, Handbook of Mathematical Functions, 7.1.26
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt(2)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
