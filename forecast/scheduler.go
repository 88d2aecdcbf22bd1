package forecast

import (
	"fmt"
	"math"
)

// LRScheduler computes the learning rate for a 1-based epoch number from the
// configured base rate. Schedulers are stateless; the experiment applies the
// returned rate to the optimizer after each epoch.
type LRScheduler interface {
	GetLR(epoch int, baseLR float64) float64
	GetName() string
}

// HalvingLR halves the learning rate every epoch: baseLR * 0.5^(epoch-1).
type HalvingLR struct{}

func (s *HalvingLR) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(0.5, float64(epoch-1))
}

func (s *HalvingLR) GetName() string { return "halving" }

// StepLR drops the rate by a factor every stepSize epochs.
type StepLR struct {
	StepSize int
	Gamma    float64
}

func (s *StepLR) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64((epoch-1)/s.StepSize))
}

func (s *StepLR) GetName() string { return "step" }

// CosineAnnealingLR anneals from baseLR to MinLR over TotalEpochs.
type CosineAnnealingLR struct {
	TotalEpochs int
	MinLR       float64
}

func (s *CosineAnnealingLR) GetLR(epoch int, baseLR float64) float64 {
	if s.TotalEpochs <= 1 {
		return baseLR
	}
	progress := float64(epoch-1) / float64(s.TotalEpochs-1)
	if progress > 1 {
		progress = 1
	}
	return s.MinLR + (baseLR-s.MinLR)*(1+math.Cos(math.Pi*progress))/2
}

func (s *CosineAnnealingLR) GetName() string { return "cosine" }

// ConstantLR leaves the rate untouched.
type ConstantLR struct{}

func (s *ConstantLR) GetLR(epoch int, baseLR float64) float64 { return baseLR }

func (s *ConstantLR) GetName() string { return "constant" }

// SelectScheduler maps the lradj setting to a scheduler. type1 is the
// per-epoch halving schedule; type2 steps down more gently; cosine anneals
// over the full run; anything empty or "none" holds the rate constant.
func SelectScheduler(cfg *Config) (LRScheduler, error) {
	switch cfg.LRAdj {
	case "type1":
		return &HalvingLR{}, nil
	case "type2":
		return &StepLR{StepSize: 2, Gamma: 0.5}, nil
	case "cosine":
		return &CosineAnnealingLR{TotalEpochs: cfg.TrainEpochs, MinLR: cfg.LearningRate * 1e-2}, nil
	case "", "none":
		return &ConstantLR{}, nil
	default:
		return nil, fmt.Errorf("unknown lradj setting %q", cfg.LRAdj)
	}
}
