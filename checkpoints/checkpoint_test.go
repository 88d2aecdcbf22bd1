package checkpoints

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/go-forecast/tensor"
)

func makeParams(t *testing.T) []*tensor.Tensor {
	t.Helper()
	w, err := tensor.New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("failed to create weight: %v", err)
	}
	b, err := tensor.New([]int{2}, []float32{0.5, -0.5})
	if err != nil {
		t.Fatalf("failed to create bias: %v", err)
	}
	w.SetRequiresGrad(true)
	b.SetRequiresGrad(true)
	return []*tensor.Tensor{w, b}
}

func TestJSONSaveLoadRoundTrip(t *testing.T) {
	params := makeParams(t)
	ckpt := &Checkpoint{
		Weights: FromParameters(params),
		TrainingState: TrainingState{
			Epoch:        3,
			BestLoss:     0.125,
			LearningRate: 1e-4,
		},
	}

	path := filepath.Join(t.TempDir(), "checkpoint.pth")
	saver := NewCheckpointSaver(FormatJSON)
	if err := saver.SaveCheckpoint(ckpt, path); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := saver.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.TrainingState.Epoch != 3 || loaded.TrainingState.BestLoss != 0.125 {
		t.Errorf("training state not preserved: %+v", loaded.TrainingState)
	}
	if len(loaded.Weights) != 2 {
		t.Fatalf("weight count = %d, want 2", len(loaded.Weights))
	}
	if loaded.Metadata.Framework != "go-forecast" {
		t.Errorf("metadata framework = %q", loaded.Metadata.Framework)
	}

	// Restore into zeroed parameters and verify values came back.
	fresh := makeParams(t)
	for _, p := range fresh {
		for i := range p.Data {
			p.Data[i] = 0
		}
	}
	if err := LoadIntoParameters(loaded.Weights, fresh); err != nil {
		t.Fatalf("LoadIntoParameters failed: %v", err)
	}
	if fresh[0].Data[4] != 5 || fresh[1].Data[0] != 0.5 {
		t.Error("parameter values not restored")
	}
}

func TestLoadMissingCheckpointFails(t *testing.T) {
	saver := NewCheckpointSaver(FormatJSON)
	_, err := saver.LoadCheckpoint(filepath.Join(t.TempDir(), "checkpoint.pth"))
	if err == nil {
		t.Fatal("loading a missing checkpoint must fail, not initialize fresh weights")
	}
	if !os.IsNotExist(underlying(err)) {
		// The error must carry the not-found condition so callers can
		// distinguish it from corruption.
		t.Errorf("expected a not-found error, got %v", err)
	}
}

func underlying(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}

func TestLoadIntoParametersValidates(t *testing.T) {
	params := makeParams(t)

	tests := []struct {
		name   string
		mutate func([]WeightTensor) []WeightTensor
	}{
		{"count mismatch", func(w []WeightTensor) []WeightTensor { return w[:1] }},
		{"shape mismatch", func(w []WeightTensor) []WeightTensor {
			w[0].Shape = []int{3, 2}
			return w
		}},
		{"rank mismatch", func(w []WeightTensor) []WeightTensor {
			w[1].Shape = []int{2, 1}
			return w
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := tt.mutate(FromParameters(params))
			if err := LoadIntoParameters(broken, params); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestONNXExportImportRoundTrip(t *testing.T) {
	params := makeParams(t)
	ckpt := &Checkpoint{Weights: FromParameters(params)}

	path := filepath.Join(t.TempDir(), "forecaster.onnx")
	saver := NewCheckpointSaver(FormatONNX)
	if err := saver.SaveCheckpoint(ckpt, path); err != nil {
		t.Fatalf("ONNX export failed: %v", err)
	}

	loaded, err := saver.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("ONNX import failed: %v", err)
	}
	if len(loaded.Weights) != 2 {
		t.Fatalf("weight count = %d, want 2", len(loaded.Weights))
	}
	w := loaded.Weights[0]
	if w.Name != "param_0" {
		t.Errorf("tensor name = %q, want param_0", w.Name)
	}
	if len(w.Shape) != 2 || w.Shape[0] != 2 || w.Shape[1] != 3 {
		t.Errorf("tensor shape = %v, want [2 3]", w.Shape)
	}
	for i, v := range []float32{1, 2, 3, 4, 5, 6} {
		if w.Data[i] != v {
			t.Errorf("tensor data[%d] = %v, want %v", i, w.Data[i], v)
		}
	}
}
