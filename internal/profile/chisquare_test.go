package profile

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestChiSquareGoodnessOfFit_PerfectFit(t *testing.T) {
	observed := []float64{50, 50}
	expected := []float64{50, 50}
	stat, p := ChiSquareGoodnessOfFit(observed, expected)
	if stat != 0 {
		t.Errorf("expected statistic 0 for a perfect fit, got %v", stat)
	}
	if p != 1.0 {
		t.Errorf("expected p-value 1.0 for a perfect fit, got %v", p)
	}
}

func TestChiSquareGoodnessOfFit_SignificantShift(t *testing.T) {
	// 100 baseline runs: 65 api / 35 cache. 100 observed: 82 api / 18 cache.
	observed := []float64{82, 18}
	expected := []float64{65, 35}
	stat, p := ChiSquareGoodnessOfFit(observed, expected)
	if stat <= 0 {
		t.Fatalf("expected a positive statistic, got %v", stat)
	}
	if p >= 0.05 {
		t.Errorf("expected a significant shift (p < 0.05), got p=%v", p)
	}
}

func TestChiSquareGoodnessOfFit_MismatchedLengths(t *testing.T) {
	stat, p := ChiSquareGoodnessOfFit([]float64{1, 2}, []float64{1})
	if stat != 0 || p != 1.0 {
		t.Errorf("expected neutral result for mismatched input, got stat=%v p=%v", stat, p)
	}
}

func TestUpperIncompleteGammaRegularized_Bounds(t *testing.T) {
	// Q(a, 0) == 1 always.
	if got := upperIncompleteGammaRegularized(2, 0); got != 1.0 {
		t.Errorf("expected 1.0 at x=0, got %v", got)
	}
	// Sanity: [60,40] vs [50,50] gives statistic 4.0 at df=1, just past the
	// 3.841 critical value (p about 0.0455); only a NaN p is checked here.
	_, p := ChiSquareGoodnessOfFit([]float64{60, 40}, []float64{50, 50})
	if !almostEqual(p, p, 1e-9) { // true for every non-NaN p
		t.Fatal("unexpected NaN p-value")
	}
	if math.IsNaN(p) {
		t.Fatal("p-value must not be NaN")
	}
}
