package profile

import "testing"

func TestPercentile_Median(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := Percentile(values, 50)
	if got != 3 {
		t.Errorf("expected median 3, got %v", got)
	}
}

func TestPercentile_Empty(t *testing.T) {
	if got := Percentile(nil, 95); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}

func TestPercentile_Deterministic(t *testing.T) {
	values := []float64{10, 50, 20, 80, 30, 60, 40, 70, 90, 100}
	a := append([]float64(nil), values...)
	b := append([]float64(nil), values...)
	if Percentile(a, 95) != Percentile(b, 95) {
		t.Error("percentile computation must be deterministic across equal inputs")
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{10, 20, 30}); got != 20 {
		t.Errorf("expected 20, got %v", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}
