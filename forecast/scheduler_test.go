package forecast

import (
	"math"
	"testing"
)

func TestHalvingLR(t *testing.T) {
	s := &HalvingLR{}
	base := 0.01
	wants := []float64{0.01, 0.005, 0.0025, 0.00125}
	for epoch := 1; epoch <= len(wants); epoch++ {
		if got := s.GetLR(epoch, base); math.Abs(got-wants[epoch-1]) > 1e-12 {
			t.Errorf("epoch %d: lr = %v, want %v", epoch, got, wants[epoch-1])
		}
	}
}

func TestStepLR(t *testing.T) {
	s := &StepLR{StepSize: 2, Gamma: 0.5}
	base := 0.01
	wants := []float64{0.01, 0.01, 0.005, 0.005, 0.0025}
	for epoch := 1; epoch <= len(wants); epoch++ {
		if got := s.GetLR(epoch, base); math.Abs(got-wants[epoch-1]) > 1e-12 {
			t.Errorf("epoch %d: lr = %v, want %v", epoch, got, wants[epoch-1])
		}
	}
}

func TestCosineAnnealingLR(t *testing.T) {
	s := &CosineAnnealingLR{TotalEpochs: 5, MinLR: 0.001}
	base := 0.01
	if got := s.GetLR(1, base); math.Abs(got-base) > 1e-12 {
		t.Errorf("first epoch lr = %v, want base %v", got, base)
	}
	if got := s.GetLR(5, base); math.Abs(got-s.MinLR) > 1e-12 {
		t.Errorf("final epoch lr = %v, want min %v", got, s.MinLR)
	}
	mid := s.GetLR(3, base)
	if mid <= s.MinLR || mid >= base {
		t.Errorf("mid-run lr = %v, want strictly between %v and %v", mid, s.MinLR, base)
	}
}

func TestSelectScheduler(t *testing.T) {
	tests := []struct {
		lradj string
		want  string
	}{
		{"type1", "halving"},
		{"type2", "step"},
		{"cosine", "cosine"},
		{"", "constant"},
		{"none", "constant"},
	}
	for _, tt := range tests {
		s, err := SelectScheduler(&Config{LRAdj: tt.lradj, TrainEpochs: 10, LearningRate: 0.01})
		if err != nil {
			t.Fatalf("SelectScheduler(%q) failed: %v", tt.lradj, err)
		}
		if s.GetName() != tt.want {
			t.Errorf("SelectScheduler(%q) = %q, want %q", tt.lradj, s.GetName(), tt.want)
		}
	}

	if _, err := SelectScheduler(&Config{LRAdj: "type9"}); err == nil {
		t.Error("unknown lradj must fail")
	}
}
