package forecast

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/go-forecast/tensor"
)

// Metrics holds the standard regression metrics over a full test pass.
type Metrics struct {
	MAE  float64
	MSE  float64
	RMSE float64
	MAPE float64
	MSPE float64
}

// Slice returns the metrics in artifact order: [mae, mse, rmse, mape, mspe].
func (m Metrics) Slice() []float64 {
	return []float64{m.MAE, m.MSE, m.RMSE, m.MAPE, m.MSPE}
}

// ComputeMetrics evaluates predictions against ground truth elementwise.
// MAPE and MSPE divide by the true value; zero targets contribute Inf, which
// propagates rather than being masked.
func ComputeMetrics(pred, target *tensor.Tensor) (Metrics, error) {
	if pred.NumElems != target.NumElems {
		return Metrics{}, fmt.Errorf("prediction has %d elements, target has %d", pred.NumElems, target.NumElems)
	}
	n := float64(pred.NumElems)
	var mae, mse, mape, mspe float64
	for i := range pred.Data {
		p, t := float64(pred.Data[i]), float64(target.Data[i])
		d := p - t
		mae += math.Abs(d)
		mse += d * d
		mape += math.Abs(d / t)
		mspe += (d / t) * (d / t)
	}
	mae /= n
	mse /= n
	mape /= n
	mspe /= n
	return Metrics{MAE: mae, MSE: mse, RMSE: math.Sqrt(mse), MAPE: mape, MSPE: mspe}, nil
}

// DTW computes the average dynamic-time-warping distance between predicted
// and true sequences, per sample, using L1 ground distance over each sample's
// flattened [steps, channels] block. It is quadratic in the sequence length,
// so callers opt in explicitly; a positive maxSamples caps the average to the
// first maxSamples sequences.
func DTW(pred, target *tensor.Tensor, maxSamples int, log *logrus.Logger) (float64, error) {
	if len(pred.Shape) != 3 || len(target.Shape) != 3 {
		return 0, fmt.Errorf("DTW requires 3-D tensors, got %v and %v", pred.Shape, target.Shape)
	}
	if pred.Shape[0] != target.Shape[0] {
		return 0, fmt.Errorf("sample count mismatch: %d vs %d", pred.Shape[0], target.Shape[0])
	}

	samples := pred.Shape[0]
	if maxSamples > 0 && maxSamples < samples {
		samples = maxSamples
	}
	var total float64
	for s := 0; s < samples; s++ {
		x := sampleSequence(pred, s)
		y := sampleSequence(target, s)
		total += dtwDistance(x, y)
		if (s+1)%100 == 0 {
			log.Infof("calculating dtw iter: %d", s+1)
		}
	}
	return total / float64(samples), nil
}

// sampleSequence flattens sample s's full [steps, channels] block row-major
// into a 1-D sequence.
func sampleSequence(t *tensor.Tensor, s int) []float64 {
	block := t.Strides[0]
	out := make([]float64, block)
	for i := 0; i < block; i++ {
		out[i] = float64(t.Data[s*block+i])
	}
	return out
}

// dtwDistance runs the standard O(n*m) dynamic program over an L1 cost
// matrix.
func dtwDistance(x, y []float64) float64 {
	n, m := len(x), len(y)
	cost := mat.NewDense(n, m, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			cost.Set(i, j, math.Abs(x[i]-y[j]))
		}
	}

	acc := mat.NewDense(n, m, nil)
	acc.Set(0, 0, cost.At(0, 0))
	for i := 1; i < n; i++ {
		acc.Set(i, 0, acc.At(i-1, 0)+cost.At(i, 0))
	}
	for j := 1; j < m; j++ {
		acc.Set(0, j, acc.At(0, j-1)+cost.At(0, j))
	}
	for i := 1; i < n; i++ {
		for j := 1; j < m; j++ {
			best := math.Min(acc.At(i-1, j-1), math.Min(acc.At(i-1, j), acc.At(i, j-1)))
			acc.Set(i, j, cost.At(i, j)+best)
		}
	}
	return acc.At(n-1, m-1)
}
