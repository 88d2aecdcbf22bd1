package forecast

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/tsawler/go-forecast/tensor"
)

// Model is a trainable seq2seq forecaster. Forward consumes the input window,
// the decoder input, and both mark tensors, and returns [B, L, C] with the
// horizon in the final PredLen steps. Backward receives the gradient of the
// loss with respect to the full forward output and accumulates parameter
// gradients.
type Model interface {
	Forward(x, xMark, decInp, yMark *tensor.Tensor) (*tensor.Tensor, error)
	Backward(gradOutput *tensor.Tensor) error
	Parameters() []*tensor.Tensor
	Train()
	Eval()
	IsTraining() bool
}

// Builder constructs a model for the given window geometry and channel count.
type Builder func(cfg *Config, channels int, rng *rand.Rand) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Builder{}
)

// Register makes a model architecture available by name. It panics on
// duplicate registration, which indicates a programming error.
func Register(name string, builder Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("model %q registered twice", name))
	}
	registry[name] = builder
}

// BuildModel instantiates a registered architecture.
func BuildModel(cfg *Config, channels int, rng *rand.Rand) (Model, error) {
	registryMu.RLock()
	builder, ok := registry[cfg.Model]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model %q (registered: %v)", cfg.Model, RegisteredModels())
	}
	return builder(cfg, channels, rng)
}

// RegisteredModels lists available architecture names, sorted.
func RegisteredModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("DLinear", NewDLinear)
}

// DLinear maps each channel's input window to the horizon through a single
// shared linear projection over time: out[b, t, c] = sum_l W[t, l]*x[b, l, c]
// + bias[t]. Channels are independent, which makes it a strong, cheap
// baseline for long-horizon forecasting.
type DLinear struct {
	seqLen  int
	predLen int

	weight *tensor.Tensor // [predLen, seqLen]
	bias   *tensor.Tensor // [predLen]

	lastInput *tensor.Tensor
	training  bool
}

// NewDLinear builds the linear baseline. Weights start near the mean
// projection 1/seqLen with small noise, so an untrained model already
// predicts something sane.
func NewDLinear(cfg *Config, channels int, rng *rand.Rand) (Model, error) {
	weight, err := tensor.RandomNormal([]int{cfg.PredLen, cfg.SeqLen}, 1.0/float32(cfg.SeqLen), 0.02, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize weight: %v", err)
	}
	bias, err := tensor.Zeros([]int{cfg.PredLen})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bias: %v", err)
	}
	weight.SetRequiresGrad(true)
	bias.SetRequiresGrad(true)
	return &DLinear{
		seqLen:   cfg.SeqLen,
		predLen:  cfg.PredLen,
		weight:   weight,
		bias:     bias,
		training: true,
	}, nil
}

// Forward ignores the marks and the decoder input's zero horizon; the
// projection depends only on the input window. Output is [B, predLen, C].
func (m *DLinear) Forward(x, xMark, decInp, yMark *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 {
		return nil, fmt.Errorf("input must be 3-D, got shape %v", x.Shape)
	}
	if x.Shape[1] != m.seqLen {
		return nil, fmt.Errorf("input has %d steps, model expects %d", x.Shape[1], m.seqLen)
	}

	b, c := x.Shape[0], x.Shape[2]
	out, err := tensor.Zeros([]int{b, m.predLen, c})
	if err != nil {
		return nil, err
	}
	for bi := 0; bi < b; bi++ {
		for t := 0; t < m.predLen; t++ {
			biasT := m.bias.Data[t]
			for ci := 0; ci < c; ci++ {
				sum := biasT
				for l := 0; l < m.seqLen; l++ {
					sum += m.weight.Data[t*m.seqLen+l] * x.Data[bi*x.Strides[0]+l*x.Strides[1]+ci]
				}
				out.Data[bi*out.Strides[0]+t*out.Strides[1]+ci] = sum
			}
		}
	}

	if m.training {
		m.lastInput = x
	}
	return out, nil
}

// Backward accumulates dW and dBias from the gradient of the loss with
// respect to the forward output.
func (m *DLinear) Backward(gradOutput *tensor.Tensor) error {
	if m.lastInput == nil {
		return fmt.Errorf("Backward called before a training-mode Forward")
	}
	x := m.lastInput
	b, c := x.Shape[0], x.Shape[2]
	if len(gradOutput.Shape) != 3 || gradOutput.Shape[0] != b || gradOutput.Shape[1] != m.predLen || gradOutput.Shape[2] != c {
		return fmt.Errorf("gradient shape %v does not match output [%d %d %d]", gradOutput.Shape, b, m.predLen, c)
	}

	dW, err := tensor.Zeros(m.weight.Shape)
	if err != nil {
		return err
	}
	dB, err := tensor.Zeros(m.bias.Shape)
	if err != nil {
		return err
	}
	for bi := 0; bi < b; bi++ {
		for t := 0; t < m.predLen; t++ {
			for ci := 0; ci < c; ci++ {
				g := gradOutput.Data[bi*gradOutput.Strides[0]+t*gradOutput.Strides[1]+ci]
				if g == 0 {
					continue
				}
				dB.Data[t] += g
				for l := 0; l < m.seqLen; l++ {
					dW.Data[t*m.seqLen+l] += g * x.Data[bi*x.Strides[0]+l*x.Strides[1]+ci]
				}
			}
		}
	}

	if err := m.weight.AccumulateGrad(dW); err != nil {
		return err
	}
	return m.bias.AccumulateGrad(dB)
}

// Parameters returns the trainable tensors in a stable order.
func (m *DLinear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{m.weight, m.bias}
}

// Train puts the model in training mode.
func (m *DLinear) Train() {
	m.training = true
}

// Eval puts the model in inference mode; Forward stops retaining inputs.
func (m *DLinear) Eval() {
	m.training = false
	m.lastInput = nil
}

// IsTraining reports the current mode.
func (m *DLinear) IsTraining() bool {
	return m.training
}
