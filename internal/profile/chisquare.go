package profile

import "math"

// ChiSquareGoodnessOfFit computes Pearson's chi-square statistic for
// observed vs. expected count vectors of equal length (aligned by the
// caller over the union of categories, missing categories treated as 0)
// and returns the statistic and its p-value against a chi-square
// distribution with len(observed)-1 degrees of freedom.
//
// Categories whose expected count is 0 are skipped in the statistic (their
// term would divide by zero); degrees of freedom is still based on the full
// category count so the p-value stays conservative when a category appears
// only on the observed side.
func ChiSquareGoodnessOfFit(observed, expected []float64) (statistic float64, pValue float64) {
	if len(observed) != len(expected) || len(observed) == 0 {
		return 0, 1.0
	}

	for i := range observed {
		if expected[i] <= 0 {
			continue
		}
		diff := observed[i] - expected[i]
		statistic += (diff * diff) / expected[i]
	}

	df := len(observed) - 1
	if df < 1 {
		return statistic, 1.0
	}
	return statistic, chiSquareUpperTailP(statistic, df)
}

// chiSquareUpperTailP returns P(X > statistic) for X ~ chi-square(df),
// i.e. the p-value of the goodness-of-fit test, via the regularized upper
// incomplete gamma function Q(df/2, statistic/2).
func chiSquareUpperTailP(statistic float64, df int) float64 {
	if statistic <= 0 {
		return 1.0
	}
	return upperIncompleteGammaRegularized(float64(df)/2, statistic/2)
}

// upperIncompleteGammaRegularized computes Q(a, x) = Γ(a,x)/Γ(a) using a
// continued-fraction expansion for x >= a+1 and a power series for
// P(a,x) = 1 - Q(a,x) otherwise, the standard split used to keep both
// branches numerically stable (Numerical Recipes §6.2).
func upperIncompleteGammaRegularized(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return 1.0
	}
	if x == 0 {
		return 1.0
	}

	if x < a+1 {
		return 1.0 - lowerRegularizedSeries(a, x)
	}
	return continuedFractionQ(a, x)
}

func lowerRegularizedSeries(a, x float64) float64 {
	const maxIter = 200
	const eps = 1e-14

	gln := lnGamma(a)
	ap := a
	sum := 1.0 / a
	delta := sum
	for n := 0; n < maxIter; n++ {
		ap++
		delta *= x / ap
		sum += delta
		if math.Abs(delta) < math.Abs(sum)*eps {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-gln)
}

func continuedFractionQ(a, x float64) float64 {
	const maxIter = 200
	const eps = 1e-14
	const tiny = 1e-300

	gln := lnGamma(a)
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for i := 1; i < maxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		h *= delta
		if math.Abs(delta-1) < eps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-gln) * h
}

func lnGamma(x float64) float64 {
	g, _ := math.Lgamma(x)
	return g
}
