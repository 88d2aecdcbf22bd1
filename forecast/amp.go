package forecast

import (
	"github.com/sirupsen/logrus"

	"github.com/tsawler/go-forecast/tensor"
)

// GradScaler implements loss-scaled mixed-precision training: gradients are
// computed at an inflated scale to keep small values representable, then
// unscaled before the optimizer step. A step whose gradients contain NaN or
// Inf is skipped and the scale backed off; after a run of clean steps the
// scale grows again.
type GradScaler struct {
	scale          float64
	growthFactor   float64
	backoffFactor  float64
	growthInterval int
	goodSteps      int
	log            *logrus.Logger
}

// NewGradScaler creates a scaler with the stock schedule: initial scale
// 65536, doubling every 2000 clean steps, halving on overflow.
func NewGradScaler(log *logrus.Logger) *GradScaler {
	return &GradScaler{
		scale:          65536.0,
		growthFactor:   2.0,
		backoffFactor:  0.5,
		growthInterval: 2000,
		log:            log,
	}
}

// Scale returns the current loss scale.
func (gs *GradScaler) Scale() float64 {
	return gs.scale
}

// ScaleGrad multiplies a loss gradient by the current scale before it is
// pushed through the model.
func (gs *GradScaler) ScaleGrad(grad *tensor.Tensor) {
	tensor.ScaleInPlace(grad, float32(gs.scale))
}

// Step unscales the accumulated gradients and applies the optimizer step,
// unless any gradient is non-finite, in which case the whole update is
// skipped. Returns whether the step was applied.
func (gs *GradScaler) Step(opt Optimizer, params []*tensor.Tensor) (bool, error) {
	for _, p := range params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if !tensor.IsFinite(grad) {
			gs.backoff()
			return false, nil
		}
	}

	inv := float32(1.0 / gs.scale)
	for _, p := range params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		tensor.ScaleInPlace(grad, inv)
	}
	if err := opt.Step(); err != nil {
		return false, err
	}
	gs.grow()
	return true, nil
}

func (gs *GradScaler) backoff() {
	gs.scale *= gs.backoffFactor
	gs.goodSteps = 0
	gs.log.WithField("scale", gs.scale).Warn("non-finite gradients, skipping step and reducing loss scale")
}

func (gs *GradScaler) grow() {
	gs.goodSteps++
	if gs.goodSteps >= gs.growthInterval {
		gs.scale *= gs.growthFactor
		gs.goodSteps = 0
	}
}
