package forecast

import (
	"fmt"
	"math"
	"sync"

	"github.com/tsawler/go-forecast/tensor"
)

// Optimizer updates model parameters from their accumulated gradients.
type Optimizer interface {
	Step() error
	ZeroGrad()
	GetLR() float64
	SetLR(lr float64)
}

// AdamConfig holds Adam hyperparameters.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns the stock Adam settings.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam implements the Adam optimizer with bias correction and optional
// decoupled weight decay.
type Adam struct {
	config AdamConfig
	params []*tensor.Tensor

	momentum [][]float32
	variance [][]float32
	step     uint64

	mutex sync.Mutex
}

// NewAdam creates an Adam optimizer over the given parameters. Momentum and
// variance state start at zero.
func NewAdam(config AdamConfig, params []*tensor.Tensor) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}

	adam := &Adam{
		config:   config,
		params:   params,
		momentum: make([][]float32, len(params)),
		variance: make([][]float32, len(params)),
	}
	for i, p := range params {
		adam.momentum[i] = make([]float32, p.NumElems)
		adam.variance[i] = make([]float32, p.NumElems)
	}
	return adam, nil
}

// Step applies one Adam update. Parameters whose gradient was never
// accumulated this step are skipped.
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.step++
	bc1 := 1 - math.Pow(adam.config.Beta1, float64(adam.step))
	bc2 := 1 - math.Pow(adam.config.Beta2, float64(adam.step))

	for i, p := range adam.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		m, v := adam.momentum[i], adam.variance[i]
		for j := range p.Data {
			g := float64(grad.Data[j])
			if adam.config.WeightDecay != 0 {
				g += adam.config.WeightDecay * float64(p.Data[j])
			}
			m[j] = float32(adam.config.Beta1*float64(m[j]) + (1-adam.config.Beta1)*g)
			v[j] = float32(adam.config.Beta2*float64(v[j]) + (1-adam.config.Beta2)*g*g)

			mHat := float64(m[j]) / bc1
			vHat := float64(v[j]) / bc2
			p.Data[j] -= float32(adam.config.LearningRate * mHat / (math.Sqrt(vHat) + adam.config.Epsilon))
		}
	}
	return nil
}

// ZeroGrad clears every parameter's accumulated gradient.
func (adam *Adam) ZeroGrad() {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	tensor.ZeroGrad(adam.params)
}

// GetLR returns the current learning rate.
func (adam *Adam) GetLR() float64 {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	return adam.config.LearningRate
}

// SetLR updates the learning rate; schedulers call this between epochs.
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.config.LearningRate = lr
}

// GetStep returns the number of updates applied.
func (adam *Adam) GetStep() uint64 {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	return adam.step
}
