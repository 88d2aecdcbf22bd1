// Package forecast implements long-horizon time-series forecasting
// experiments: training with early stopping and learning-rate scheduling,
// validation, held-out evaluation with artifact output, and forecasting past
// the end of the series.
package forecast

import (
	"fmt"
)

// Feature selects which channels the experiment forecasts.
type Feature string

const (
	// FeatureM forecasts every channel from every channel.
	FeatureM Feature = "M"
	// FeatureMS forecasts only the final channel from every channel.
	FeatureMS Feature = "MS"
	// FeatureS forecasts a single univariate channel.
	FeatureS Feature = "S"
)

// Loss selects the training criterion.
type Loss string

const (
	LossMSE Loss = "MSE"
	// LossSLA weights squared errors by how close each target sits to a
	// service-level threshold, and escalates badly optimistic misses.
	LossSLA Loss = "SLA"
)

// Config holds every knob an experiment reads. Construct it literally and
// call Validate before use.
type Config struct {
	// Model names a registered architecture builder.
	Model string

	// Features picks the channel mode: M, MS, or S.
	Features Feature

	// Window geometry. LabelLen is the decoder's overlap with the input
	// window and may be zero.
	SeqLen   int
	LabelLen int
	PredLen  int

	// Optimization.
	LearningRate float64
	TrainEpochs  int
	Patience     int
	BatchSize    int
	Loss         Loss
	LRAdj        string

	// UseAMP enables loss-scaled training with non-finite-gradient skip.
	UseAMP bool

	// UseDTW additionally reports dynamic time warping on the test split.
	// It is expensive; leave it off unless the metric is needed.
	// DTWMaxSamples caps how many test samples the DTW average covers; zero
	// means all of them.
	UseDTW        bool
	DTWMaxSamples int

	// UseMultiGPU and DeviceIDs are accepted for interface compatibility
	// with multi-device launchers; execution is single-device.
	UseMultiGPU bool
	DeviceIDs   []int

	// Inverse maps test outputs back to original units before metrics.
	Inverse bool

	// Scale standardizes the series with training-split statistics.
	Scale bool

	// Output roots.
	Checkpoints     string
	ResultsRoot     string
	TestResultsRoot string

	// Seed drives shuffling and weight initialization.
	Seed int64
}

// Validate fails fast on unusable settings so a bad run dies before any
// epoch starts.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	switch c.Features {
	case FeatureM, FeatureMS, FeatureS:
	default:
		return fmt.Errorf("features must be M, MS, or S, got %q", c.Features)
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("sequence length must be positive, got %d", c.SeqLen)
	}
	if c.PredLen <= 0 {
		return fmt.Errorf("prediction length must be positive, got %d", c.PredLen)
	}
	if c.LabelLen < 0 {
		return fmt.Errorf("label length cannot be negative, got %d", c.LabelLen)
	}
	if c.LabelLen > c.SeqLen {
		return fmt.Errorf("label length %d exceeds sequence length %d", c.LabelLen, c.SeqLen)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", c.LearningRate)
	}
	if c.TrainEpochs <= 0 {
		return fmt.Errorf("train epochs must be positive, got %d", c.TrainEpochs)
	}
	if c.Patience <= 0 {
		return fmt.Errorf("patience must be positive, got %d", c.Patience)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	switch c.Loss {
	case LossMSE, LossSLA:
	default:
		return fmt.Errorf("unsupported loss function: %s", c.Loss)
	}
	if c.Checkpoints == "" {
		return fmt.Errorf("checkpoint root is required")
	}
	return nil
}

// targetOffset is the first channel the loss covers: the last channel in MS
// mode, channel zero otherwise.
func (c *Config) targetOffset(channels int) int {
	if c.Features == FeatureMS {
		return channels - 1
	}
	return 0
}
