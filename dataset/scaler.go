// Package dataset provides the data-provider side of the forecasting
// experiments: per-feature standardization, sliding-window datasets over a
// multivariate series, and a batching loader.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/tsawler/go-forecast/tensor"
)

// StandardScaler standardizes features to zero mean and unit variance,
// column by column. It must be fitted exactly once, on training data only.
type StandardScaler struct {
	Mean  []float64
	Scale []float64

	fitted bool
}

// NewStandardScaler creates an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit computes per-column mean and standard deviation from a 2-D [rows, C]
// tensor. Fitting twice is an error; the scaler's statistics must come from
// the training split alone.
func (s *StandardScaler) Fit(data *tensor.Tensor) error {
	if s.fitted {
		return fmt.Errorf("scaler is already fitted")
	}
	if len(data.Shape) != 2 {
		return fmt.Errorf("Fit requires a 2-D tensor, got shape %v", data.Shape)
	}
	rows, cols := data.Shape[0], data.Shape[1]
	if rows < 2 {
		return fmt.Errorf("Fit requires at least 2 rows, got %d", rows)
	}

	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			col[r] = float64(data.Data[r*cols+c])
		}
		s.Mean[c] = stat.Mean(col, nil)
		sd := stat.PopStdDev(col, nil)
		if sd == 0 {
			// Constant columns pass through unscaled.
			sd = 1
		}
		s.Scale[c] = sd
	}
	s.fitted = true
	return nil
}

// Fitted reports whether Fit has been called.
func (s *StandardScaler) Fitted() bool {
	return s.fitted
}

// Transform standardizes a 2-D [rows, C] tensor.
func (s *StandardScaler) Transform(data *tensor.Tensor) (*tensor.Tensor, error) {
	return s.apply(data, func(v float64, c int) float64 {
		return (v - s.Mean[c]) / s.Scale[c]
	})
}

// InverseTransform maps a standardized 2-D [rows, C] tensor back to original
// units.
func (s *StandardScaler) InverseTransform(data *tensor.Tensor) (*tensor.Tensor, error) {
	return s.apply(data, func(v float64, c int) float64 {
		return v*s.Scale[c] + s.Mean[c]
	})
}

func (s *StandardScaler) apply(data *tensor.Tensor, f func(v float64, c int) float64) (*tensor.Tensor, error) {
	if !s.fitted {
		return nil, fmt.Errorf("scaler has not been fitted")
	}
	if len(data.Shape) != 2 {
		return nil, fmt.Errorf("scaler requires a 2-D tensor, got shape %v", data.Shape)
	}
	cols := data.Shape[1]
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("column count %d does not match fitted feature count %d", cols, len(s.Mean))
	}
	out, err := tensor.Zeros(data.Shape)
	if err != nil {
		return nil, err
	}
	for i, v := range data.Data {
		out.Data[i] = float32(f(float64(v), i%cols))
	}
	return out, nil
}
