package forecast

import (
	"math"
	"testing"
)

func TestComputeMetrics(t *testing.T) {
	pred := tensorOf(t, []int{1, 2, 1}, []float32{2, 6})
	target := tensorOf(t, []int{1, 2, 1}, []float32{1, 4})

	m, err := ComputeMetrics(pred, target)
	if err != nil {
		t.Fatalf("ComputeMetrics failed: %v", err)
	}
	// errors: 1 and 2.
	if math.Abs(m.MAE-1.5) > 1e-9 {
		t.Errorf("MAE = %v, want 1.5", m.MAE)
	}
	if math.Abs(m.MSE-2.5) > 1e-9 {
		t.Errorf("MSE = %v, want 2.5", m.MSE)
	}
	if math.Abs(m.RMSE-math.Sqrt(2.5)) > 1e-9 {
		t.Errorf("RMSE = %v, want sqrt(2.5)", m.RMSE)
	}
	if math.Abs(m.MAPE-0.75) > 1e-9 {
		t.Errorf("MAPE = %v, want 0.75", m.MAPE)
	}
	s := m.Slice()
	if len(s) != 5 || s[0] != m.MAE || s[1] != m.MSE || s[2] != m.RMSE || s[3] != m.MAPE || s[4] != m.MSPE {
		t.Errorf("Slice() = %v, want [mae mse rmse mape mspe]", s)
	}
}

func TestDTWIdenticalSequencesIsZero(t *testing.T) {
	a := tensorOf(t, []int{2, 4, 1}, []float32{1, 2, 3, 4, 4, 3, 2, 1})
	d, err := DTW(a, a, 0, quietLogger())
	if err != nil {
		t.Fatalf("DTW failed: %v", err)
	}
	if d != 0 {
		t.Errorf("DTW of identical sequences = %v, want 0", d)
	}
}

func TestDTWToleratesTimeShift(t *testing.T) {
	// The same pulse shifted by one step: DTW should cost far less than the
	// elementwise L1 distance because warping realigns the pulse.
	a := tensorOf(t, []int{1, 5, 1}, []float32{0, 10, 0, 0, 0})
	b := tensorOf(t, []int{1, 5, 1}, []float32{0, 0, 10, 0, 0})

	d, err := DTW(a, b, 0, quietLogger())
	if err != nil {
		t.Fatalf("DTW failed: %v", err)
	}
	var l1 float64
	for i := range a.Data {
		l1 += math.Abs(float64(a.Data[i] - b.Data[i]))
	}
	if d >= l1 {
		t.Errorf("DTW = %v, want less than elementwise L1 %v", d, l1)
	}
}

func TestDTWSeesAllChannels(t *testing.T) {
	// The sequences agree on channel 0 and differ only on channel 1, so a
	// distance of zero would mean trailing channels were dropped.
	a := tensorOf(t, []int{1, 3, 2}, []float32{1, 0, 2, 0, 3, 0})
	b := tensorOf(t, []int{1, 3, 2}, []float32{1, 9, 2, 9, 3, 9})

	d, err := DTW(a, b, 0, quietLogger())
	if err != nil {
		t.Fatalf("DTW failed: %v", err)
	}
	if d <= 0 {
		t.Errorf("DTW = %v, want positive distance from the second channel", d)
	}
}

func TestDTWShapeMismatch(t *testing.T) {
	a := tensorOf(t, []int{1, 3, 1}, []float32{1, 2, 3})
	b := tensorOf(t, []int{2, 3, 1}, []float32{1, 2, 3, 1, 2, 3})
	if _, err := DTW(a, b, 0, quietLogger()); err == nil {
		t.Error("mismatched sample counts must fail")
	}
}
