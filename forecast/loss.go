package forecast

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/go-forecast/dataset"
	"github.com/tsawler/go-forecast/tensor"
)

// Criterion is a training loss. Forward returns the scalar loss; Backward
// returns the gradient of that scalar with respect to the prediction.
type Criterion interface {
	Forward(pred, target *tensor.Tensor) (float64, error)
	Backward(pred, target *tensor.Tensor) (*tensor.Tensor, error)
	Name() string
}

// MSELoss is unweighted mean squared error over all elements.
type MSELoss struct{}

// NewMSELoss creates the default criterion.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

func (l *MSELoss) Name() string { return "MSE" }

// Forward computes mean((pred - target)^2).
func (l *MSELoss) Forward(pred, target *tensor.Tensor) (float64, error) {
	if err := checkLossShapes(pred, target); err != nil {
		return 0, err
	}
	var sum float64
	for i := range pred.Data {
		d := float64(pred.Data[i] - target.Data[i])
		sum += d * d
	}
	return sum / float64(pred.NumElems), nil
}

// Backward computes 2*(pred - target)/N.
func (l *MSELoss) Backward(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossShapes(pred, target); err != nil {
		return nil, err
	}
	grad, err := tensor.Zeros(pred.Shape)
	if err != nil {
		return nil, err
	}
	n := float32(pred.NumElems)
	for i := range pred.Data {
		grad.Data[i] = 2 * (pred.Data[i] - target.Data[i]) / n
	}
	return grad, nil
}

// SLAFocusedLoss weights squared errors by how each target sits relative to
// two latency thresholds, modelling the business cost of missing a
// service-level breach. Thresholds are given in the model's normalized target
// space; see SelectCriterion for the rescaling from physical units.
type SLAFocusedLoss struct {
	SLAThreshold  float64
	GoodThreshold float64
	HighPenalty   float64
	LowPenalty    float64
	NormalPenalty float64

	// EscalationOffset is compared directly against the normalized SLA
	// threshold even though it is not itself rescaled. Known inconsistency,
	// kept for behavioral compatibility.
	EscalationOffset float64
}

// NewSLAFocusedLoss creates the SLA criterion with the stock penalties: 15x
// above the breach threshold, 8x below the good threshold, 1x between.
func NewSLAFocusedLoss(slaThreshold, goodThreshold float64) *SLAFocusedLoss {
	return &SLAFocusedLoss{
		SLAThreshold:     slaThreshold,
		GoodThreshold:    goodThreshold,
		HighPenalty:      15.0,
		LowPenalty:       8.0,
		NormalPenalty:    1.0,
		EscalationOffset: 50.0,
	}
}

func (l *SLAFocusedLoss) Name() string { return "SLA" }

// weight computes the per-element penalty from the target value, with one
// prediction-dependent escalation: a target over the SLA threshold whose
// prediction undershoots it by more than the escalation offset doubles the
// weight. Severely underpredicting a breach is the worst possible miss.
func (l *SLAFocusedLoss) weight(pred, target float64) float64 {
	w := l.NormalPenalty
	switch {
	case target > l.SLAThreshold:
		w = l.HighPenalty
		if pred < l.SLAThreshold-l.EscalationOffset {
			w *= 2.0
		}
	case target < l.GoodThreshold:
		w = l.LowPenalty
	}
	return w
}

// Forward computes mean(weight * (pred - target)^2).
func (l *SLAFocusedLoss) Forward(pred, target *tensor.Tensor) (float64, error) {
	if err := checkLossShapes(pred, target); err != nil {
		return 0, err
	}
	var sum float64
	for i := range pred.Data {
		p, t := float64(pred.Data[i]), float64(target.Data[i])
		d := p - t
		sum += l.weight(p, t) * d * d
	}
	return sum / float64(pred.NumElems), nil
}

// Backward treats the weights as constants of the backward pass, matching
// the forward's elementwise weighting: 2*w*(pred - target)/N.
func (l *SLAFocusedLoss) Backward(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkLossShapes(pred, target); err != nil {
		return nil, err
	}
	grad, err := tensor.Zeros(pred.Shape)
	if err != nil {
		return nil, err
	}
	n := float64(pred.NumElems)
	for i := range pred.Data {
		p, t := float64(pred.Data[i]), float64(target.Data[i])
		grad.Data[i] = float32(2 * l.weight(p, t) * (p - t) / n)
	}
	return grad, nil
}

// SelectCriterion builds the configured criterion. The SLA thresholds are
// domain constants in physical units (good latency 100ms, breach 200ms); the
// model operates on standardized values, so both are rescaled through the
// target channel's fitted statistics before use.
func SelectCriterion(cfg *Config, scaler *dataset.StandardScaler, log *logrus.Logger) (Criterion, error) {
	switch cfg.Loss {
	case LossMSE:
		return NewMSELoss(), nil
	case LossSLA:
		if scaler == nil || !scaler.Fitted() {
			return nil, fmt.Errorf("SLA loss requires a fitted scaler to rescale thresholds")
		}
		last := len(scaler.Mean) - 1
		sla := (200.0 - scaler.Mean[last]) / scaler.Scale[last]
		good := (100.0 - scaler.Mean[last]) / scaler.Scale[last]

		criterion := NewSLAFocusedLoss(sla, good)
		criterion.LowPenalty = 3.0
		log.WithFields(logrus.Fields{
			"sla_threshold":  sla,
			"good_threshold": good,
			"high_penalty":   criterion.HighPenalty,
			"low_penalty":    criterion.LowPenalty,
		}).Info("using SLA-focused loss with rescaled thresholds")
		return criterion, nil
	default:
		return nil, fmt.Errorf("unsupported loss: %s", cfg.Loss)
	}
}

func checkLossShapes(pred, target *tensor.Tensor) error {
	if pred.NumElems != target.NumElems || len(pred.Shape) != len(target.Shape) {
		return fmt.Errorf("prediction shape %v does not match target shape %v", pred.Shape, target.Shape)
	}
	for i := range pred.Shape {
		if pred.Shape[i] != target.Shape[i] {
			return fmt.Errorf("prediction shape %v does not match target shape %v", pred.Shape, target.Shape)
		}
	}
	return nil
}
