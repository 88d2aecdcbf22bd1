package dataset

import (
	"fmt"

	"github.com/tsawler/go-forecast/tensor"
)

// Dataset is the contract the forecasting loops consume: sample access plus
// the scaling surface needed for inverse transforms and SLA threshold
// rescaling.
type Dataset interface {
	Len() int
	// Get returns one sample: input window x [seqLen, C], decoder target
	// window y, and the aligned time-feature marks for each.
	Get(idx int) (x, y, xMark, yMark *tensor.Tensor, err error)
	// Scale reports whether the dataset's values are standardized.
	Scale() bool
	// InverseTransform maps a 2-D [rows, C] tensor back to original units.
	InverseTransform(t *tensor.Tensor) (*tensor.Tensor, error)
	// Scaler exposes the fitted scaler for threshold rescaling.
	Scaler() *StandardScaler
}

// TimeSeriesDataset is a sliding-window view over a [T, C] series with
// aligned [T, M] time-feature marks.
//
// In the default mode each sample's y window spans labelLen+predLen steps:
// the label overlap plus the ground-truth horizon. In predict mode no future
// truth exists, so y covers only the labelLen overlap and the mark window is
// equally short; the decoder-input builder is responsible for extending it.
type TimeSeriesDataset struct {
	data  *tensor.Tensor // [T, C], standardized when scale is set
	marks *tensor.Tensor // [T, M]

	seqLen   int
	labelLen int
	predLen  int

	predMode bool
	scale    bool
	scaler   *StandardScaler
}

// NewTimeSeriesDataset wraps a series segment. data and marks must agree on
// the time dimension and be long enough for at least one window.
func NewTimeSeriesDataset(data, marks *tensor.Tensor, seqLen, labelLen, predLen int, predMode, scale bool, scaler *StandardScaler) (*TimeSeriesDataset, error) {
	if len(data.Shape) != 2 || len(marks.Shape) != 2 {
		return nil, fmt.Errorf("data and marks must be 2-D, got %v and %v", data.Shape, marks.Shape)
	}
	if data.Shape[0] != marks.Shape[0] {
		return nil, fmt.Errorf("data has %d steps but marks has %d", data.Shape[0], marks.Shape[0])
	}
	if seqLen <= 0 || predLen <= 0 || labelLen < 0 {
		return nil, fmt.Errorf("invalid window sizes seq=%d label=%d pred=%d", seqLen, labelLen, predLen)
	}
	if labelLen > seqLen {
		return nil, fmt.Errorf("label length %d exceeds input length %d", labelLen, seqLen)
	}

	ds := &TimeSeriesDataset{
		data:     data,
		marks:    marks,
		seqLen:   seqLen,
		labelLen: labelLen,
		predLen:  predLen,
		predMode: predMode,
		scale:    scale,
		scaler:   scaler,
	}
	if ds.Len() <= 0 {
		return nil, fmt.Errorf("series of %d steps is too short for seq=%d pred=%d windows",
			data.Shape[0], seqLen, predLen)
	}
	if predMode && labelLen == 0 {
		return nil, fmt.Errorf("predict mode requires a non-empty label window")
	}
	return ds, nil
}

// Len returns the number of sliding windows.
func (ds *TimeSeriesDataset) Len() int {
	if ds.predMode {
		return ds.data.Shape[0] - ds.seqLen + 1
	}
	return ds.data.Shape[0] - ds.seqLen - ds.predLen + 1
}

// Get returns sample idx. The y window always starts labelLen steps before
// the end of the x window, so decoder context overlaps the encoder's tail.
func (ds *TimeSeriesDataset) Get(idx int) (x, y, xMark, yMark *tensor.Tensor, err error) {
	if idx < 0 || idx >= ds.Len() {
		return nil, nil, nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, ds.Len())
	}

	sBegin := idx
	sEnd := sBegin + ds.seqLen
	rBegin := sEnd - ds.labelLen
	rEnd := sEnd + ds.predLen
	if ds.predMode {
		rEnd = sEnd
	}

	x, err = tensor.SliceRows(ds.data, sBegin, sEnd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	y, err = tensor.SliceRows(ds.data, rBegin, rEnd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	xMark, err = tensor.SliceRows(ds.marks, sBegin, sEnd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	yMark, err = tensor.SliceRows(ds.marks, rBegin, rEnd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return x, y, xMark, yMark, nil
}

// Scale implements Dataset.
func (ds *TimeSeriesDataset) Scale() bool {
	return ds.scale
}

// InverseTransform implements Dataset.
func (ds *TimeSeriesDataset) InverseTransform(t *tensor.Tensor) (*tensor.Tensor, error) {
	return ds.scaler.InverseTransform(t)
}

// Scaler implements Dataset.
func (ds *TimeSeriesDataset) Scaler() *StandardScaler {
	return ds.scaler
}

// Channels returns the series' feature count.
func (ds *TimeSeriesDataset) Channels() int {
	return ds.data.Shape[1]
}
