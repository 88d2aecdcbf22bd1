package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tsawler/go-forecast/tensor"
)

func TestDLinearForwardShape(t *testing.T) {
	cfg := &Config{SeqLen: 8, PredLen: 3}
	m, err := NewDLinear(cfg, 2, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewDLinear failed: %v", err)
	}

	x, _ := tensor.Zeros([]int{4, 8, 2})
	out, err := m.Forward(x, nil, nil, nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if len(out.Shape) != 3 || out.Shape[0] != 4 || out.Shape[1] != 3 || out.Shape[2] != 2 {
		t.Errorf("output shape = %v, want [4 3 2]", out.Shape)
	}

	wrong, _ := tensor.Zeros([]int{4, 5, 2})
	if _, err := m.Forward(wrong, nil, nil, nil); err == nil {
		t.Error("mismatched input length must fail")
	}
}

// Finite-difference check of the analytic weight gradient.
func TestDLinearBackwardGradient(t *testing.T) {
	cfg := &Config{SeqLen: 3, PredLen: 2}
	m, err := NewDLinear(cfg, 1, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewDLinear failed: %v", err)
	}
	dl := m.(*DLinear)

	x, _ := tensor.New([]int{1, 3, 1}, []float32{0.5, -1.0, 2.0})
	target, _ := tensor.New([]int{1, 2, 1}, []float32{1.0, -0.5})
	criterion := NewMSELoss()

	lossAt := func() float64 {
		out, err := m.Forward(x, nil, nil, nil)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		loss, err := criterion.Forward(out, target)
		if err != nil {
			t.Fatalf("loss failed: %v", err)
		}
		return loss
	}

	out, err := m.Forward(x, nil, nil, nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	grad, err := criterion.Backward(out, target)
	if err != nil {
		t.Fatalf("loss Backward failed: %v", err)
	}
	if err := m.Backward(grad); err != nil {
		t.Fatalf("model Backward failed: %v", err)
	}

	const eps = 1e-3
	for _, idx := range []int{0, 2, 5} {
		analytic := float64(dl.weight.Grad().Data[idx])
		orig := dl.weight.Data[idx]
		dl.weight.Data[idx] = orig + eps
		plus := lossAt()
		dl.weight.Data[idx] = orig - eps
		minus := lossAt()
		dl.weight.Data[idx] = orig

		numeric := (plus - minus) / (2 * eps)
		if math.Abs(analytic-numeric) > 1e-2*math.Max(1, math.Abs(numeric)) {
			t.Errorf("weight grad[%d] = %v, finite difference = %v", idx, analytic, numeric)
		}
	}
}

func TestModelRegistry(t *testing.T) {
	names := RegisteredModels()
	found := false
	for _, n := range names {
		if n == "DLinear" {
			found = true
		}
	}
	if !found {
		t.Errorf("DLinear not registered: %v", names)
	}

	cfg := &Config{Model: "NoSuchModel", SeqLen: 4, PredLen: 2}
	if _, err := BuildModel(cfg, 1, rand.New(rand.NewSource(1))); err == nil {
		t.Error("unknown model must fail")
	}
}

func TestModelModeToggle(t *testing.T) {
	m := testModel(t)
	if !m.IsTraining() {
		t.Error("models start in training mode")
	}
	m.Eval()
	if m.IsTraining() {
		t.Error("Eval must leave training mode")
	}
	m.Train()
	if !m.IsTraining() {
		t.Error("Train must restore training mode")
	}
}
