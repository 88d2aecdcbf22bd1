package forecast

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func testModel(t *testing.T) Model {
	t.Helper()
	cfg := &Config{SeqLen: 4, PredLen: 2}
	m, err := NewDLinear(cfg, 1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	return m
}

// A strictly non-improving loss sequence of length patience+1 must stop
// exactly at the patience-th non-improving epoch, never earlier.
func TestEarlyStoppingStopsAtPatience(t *testing.T) {
	model := testModel(t)
	dir := t.TempDir()
	es := NewEarlyStopping(3, 0, quietLogger())

	if err := es.Step(1.0, model, dir, 1, 0.01); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	losses := []float64{1.1, 1.2, 1.3}
	for i, loss := range losses {
		if es.Stopped() {
			t.Fatalf("stopped before epoch %d", i+2)
		}
		if err := es.Step(loss, model, dir, i+2, 0.01); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	if !es.Stopped() {
		t.Error("must stop after patience non-improving epochs")
	}
}

// Improvement is strict, so a flat validation loss counts toward patience.
func TestEarlyStoppingTreatsPlateauAsStall(t *testing.T) {
	model := testModel(t)
	dir := t.TempDir()
	es := NewEarlyStopping(2, 0, quietLogger())

	for i, loss := range []float64{1.0, 1.0, 1.0} {
		if err := es.Step(loss, model, dir, i+1, 0.01); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	if !es.Stopped() {
		t.Error("a plateaued loss must exhaust patience")
	}
	if es.BestLoss() != 1.0 {
		t.Errorf("best loss = %v, want 1.0", es.BestLoss())
	}
}

func TestEarlyStoppingResetsOnImprovement(t *testing.T) {
	model := testModel(t)
	dir := t.TempDir()
	es := NewEarlyStopping(2, 0, quietLogger())

	for _, loss := range []float64{1.0, 1.1, 0.9, 1.0} {
		if err := es.Step(loss, model, dir, 1, 0.01); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	// Improvement at 0.9 reset the counter; one miss since is below patience.
	if es.Stopped() {
		t.Error("counter must reset on improvement")
	}
	if es.BestLoss() != 0.9 {
		t.Errorf("best loss = %v, want 0.9", es.BestLoss())
	}
}

func TestEarlyStoppingSavesOnImprovement(t *testing.T) {
	model := testModel(t)
	dir := t.TempDir()
	es := NewEarlyStopping(2, 0, quietLogger())

	if err := es.Step(0.5, model, dir, 1, 0.01); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoint.pth")); err != nil {
		t.Errorf("checkpoint not written: %v", err)
	}

	// Perturb the weights, then restore the checkpoint.
	original := model.Parameters()[0].Data[0]
	model.Parameters()[0].Data[0] = original + 100
	if err := LoadBest(model, dir); err != nil {
		t.Fatalf("LoadBest failed: %v", err)
	}
	if got := model.Parameters()[0].Data[0]; got != original {
		t.Errorf("restored weight = %v, want %v", got, original)
	}
}

func TestLoadBestMissingCheckpointFails(t *testing.T) {
	model := testModel(t)
	if err := LoadBest(model, t.TempDir()); err == nil {
		t.Error("missing checkpoint must fail, never silently reinitialize")
	}
}
