package stats

import "math"

// Sample summarizes a set of per-user observations.
type Sample struct {
	N        int
	Mean     float64
	Variance float64 // sample variance (n-1 denominator)
}

// Summarize computes a Sample from raw observations.
func Summarize(values []float64) Sample {
	n := len(values)
	if n == 0 {
		return Sample{}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	if n == 1 {
		return Sample{N: 1, Mean: mean}
	}

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return Sample{N: n, Mean: mean, Variance: ss / float64(n-1)}
}

// WelchTest performs Welch's unequal-variance t-test.
// Returns confidence level (0-1) that the population mean behind a exceeds
// the one behind b. Inconclusive inputs (empty samples, zero variance with
// equal means) return 0.5.
func WelchTest(a, b Sample) float64 {
	if a.N < 2 || b.N < 2 {
		return 0.5
	}

	seA := a.Variance / float64(a.N)
	seB := b.Variance / float64(b.N)
	se := math.Sqrt(seA + seB)

	if se == 0 {
		if a.Mean > b.Mean {
			return 1.0
		} else if a.Mean < b.Mean {
			return 0.0
		}
		return 0.5
	}

	t := (a.Mean - b.Mean) / se

	// Welch-Satterthwaite degrees of freedom
	df := (seA + seB) * (seA + seB) /
		(seA*seA/float64(a.N-1) + seB*seB/float64(b.N-1))

	return studentTCDF(t, df)
}

// studentTCDF is P(T < t) for Student's t distribution with df degrees of
// freedom, via the regularized incomplete beta function.
func studentTCDF(t, df float64) float64 {
	if df <= 0 {
		return 0.5
	}
	x := df / (df + t*t)
	p := 0.5 * incompleteBeta(df/2, 0.5, x)
	if t > 0 {
		return 1 - p
	}
	return p
}

// incompleteBeta is the regularized incomplete beta function I_x(a, b),
// computed with the continued-fraction expansion (Numerical Recipes 6.4).
func incompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lnBeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(lnBeta + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betacf(a, b, x) / a
	}
	return 1 - front*betacf(b, a, 1-x)/b
}

// betacf evaluates the continued fraction for incompleteBeta by the
// modified Lentz method.
func betacf(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		fpmin   = 1e-300
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < fpmin {
		d = fpmin
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
