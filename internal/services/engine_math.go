package services

import "math"

func calculateMeanFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateCorrelation computes the Pearson product-moment correlation
// coefficient, clamped to [-1, 1]. Returns 0 when either series has
// zero variance or the inputs are unusable.
func calculateCorrelation(x []float64, y []float64) float64 {
	n := len(x)
	if n == 0 || len(y) != n {
		return 0
	}
	meanX := calculateMeanFloat64(x)
	meanY := calculateMeanFloat64(y)

	var numerator float64
	var denomX float64
	var denomY float64

	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		numerator += dx * dy
		denomX += dx * dx
		denomY += dy * dy
	}

	denom := math.Sqrt(denomX * denomY)
	if denom == 0 {
		return 0
	}

	corr := numerator / denom
	if corr > 1 {
		return 1
	}
	if corr < -1 {
		return -1
	}
	return corr
}

// hasVariance reports whether the series takes more than one value.
func hasVariance(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return true
		}
	}
	return false
}

// correlationPValue computes the two-tailed p-value of a Pearson
// coefficient under the standard t-distribution approximation:
// t = r*sqrt(n-2)/sqrt(1-r^2) with df = n-2.
func correlationPValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	rr := r * r
	if rr >= 1 {
		// Perfect correlation; t diverges.
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df) / math.Sqrt(1-rr)
	// Two-tailed: p = I_{df/(df+t^2)}(df/2, 1/2).
	x := df / (df + t*t)
	p := regularizedIncompleteBeta(x, df/2, 0.5)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// regularizedIncompleteBeta computes I_x(a, b) using the continued
// fraction expansion (Numerical Recipes 6.4).
func regularizedIncompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	lgAB, _ := math.Lgamma(a + b)
	front := math.Exp(lgAB - lgA - lgB + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(x, a, b) / a
	}
	return 1 - front*betaContinuedFraction(1-x, b, a)/b
}

// betaContinuedFraction evaluates the continued fraction for the
// incomplete beta function by the modified Lentz method.
func betaContinuedFraction(x, a, b float64) float64 {
	const (
		maxIterations = 200
		epsilon       = 3e-14
		tiny          = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIterations; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < epsilon {
			break
		}
	}
	return h
}

// crossCorrelationAtLag computes the Pearson correlation between x and
// a copy of y shifted by lag periods. A positive lag correlates x[t]
// with y[t+lag], i.e. x moving first. Returns the correlation and the
// overlap length; the correlation is 0 when the overlap is too short.
func crossCorrelationAtLag(x, y []float64, lag int) (float64, int) {
	n := len(x)
	if len(y) != n {
		return 0, 0
	}

	var xs, ys []float64
	if lag >= 0 {
		if lag >= n {
			return 0, 0
		}
		xs = x[:n-lag]
		ys = y[lag:]
	} else {
		if -lag >= n {
			return 0, 0
		}
		xs = x[-lag:]
		ys = y[:n+lag]
	}

	if len(xs) < 3 {
		return 0, len(xs)
	}
	return calculateCorrelation(xs, ys), len(xs)
}
