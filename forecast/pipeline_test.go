package forecast

import (
	"testing"

	"github.com/tsawler/go-forecast/tensor"
)

func TestHorizonSliceMultivariateMode(t *testing.T) {
	cfg := &Config{Features: FeatureM, PredLen: 2}
	output, _ := tensor.Zeros([]int{1, 4, 3})
	y, _ := tensor.Zeros([]int{1, 5, 3})

	pred, target, err := horizonSlice(cfg, output, y)
	if err != nil {
		t.Fatalf("horizonSlice failed: %v", err)
	}
	if pred.Shape[1] != 2 || pred.Shape[2] != 3 {
		t.Errorf("pred shape = %v, want [1 2 3]", pred.Shape)
	}
	if target.Shape[1] != 2 || target.Shape[2] != 3 {
		t.Errorf("target shape = %v, want [1 2 3]", target.Shape)
	}
}

func TestHorizonSliceMSModeKeepsLastChannel(t *testing.T) {
	cfg := &Config{Features: FeatureMS, PredLen: 2}
	output, _ := tensor.Zeros([]int{1, 3, 3})
	y, _ := tensor.Zeros([]int{1, 3, 3})
	// Mark the last channel of the last two steps.
	for ti := 1; ti < 3; ti++ {
		output.Data[ti*3+2] = float32(ti)
		y.Data[ti*3+2] = float32(ti * 10)
	}

	pred, target, err := horizonSlice(cfg, output, y)
	if err != nil {
		t.Fatalf("horizonSlice failed: %v", err)
	}
	if pred.Shape[2] != 1 || target.Shape[2] != 1 {
		t.Errorf("channel counts = %d/%d, want 1/1", pred.Shape[2], target.Shape[2])
	}
	if pred.Data[0] != 1 || pred.Data[1] != 2 {
		t.Errorf("pred = %v, want last channel [1 2]", pred.Data)
	}
	if target.Data[0] != 10 || target.Data[1] != 20 {
		t.Errorf("target = %v, want last channel [10 20]", target.Data)
	}
}

func TestEmbedGrad(t *testing.T) {
	grad, _ := tensor.New([]int{1, 2, 1}, []float32{5, 7})
	full, err := embedGrad(grad, []int{1, 4, 3}, 2, 2)
	if err != nil {
		t.Fatalf("embedGrad failed: %v", err)
	}
	want := make([]float32, 12)
	want[2*3+2] = 5
	want[3*3+2] = 7
	for i := range want {
		if full.Data[i] != want[i] {
			t.Errorf("full[%d] = %v, want %v", i, full.Data[i], want[i])
		}
	}
}
