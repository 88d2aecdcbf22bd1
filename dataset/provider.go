package dataset

import (
	"fmt"

	"github.com/tsawler/go-forecast/tensor"
)

// Split identifies which portion of the series a dataset covers.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
	SplitPred  Split = "pred"
)

// Provider owns one multivariate series and hands out split datasets with a
// shared scaler. The split is chronological: the first 70% of steps train, the
// last 20% test, and the remainder validates. Each non-train split is extended
// backwards by seqLen steps so its first window has full input context.
type Provider struct {
	data   *tensor.Tensor // [T, C], standardized when scale is set
	marks  *tensor.Tensor // [T, M]
	scaler *StandardScaler

	seqLen   int
	labelLen int
	predLen  int
	scale    bool
}

// NewProvider fits the scaler on the training portion only and, when scale is
// set, standardizes the full series with those statistics.
func NewProvider(data, marks *tensor.Tensor, seqLen, labelLen, predLen int, scale bool) (*Provider, error) {
	if len(data.Shape) != 2 || len(marks.Shape) != 2 {
		return nil, fmt.Errorf("data and marks must be 2-D, got %v and %v", data.Shape, marks.Shape)
	}
	if data.Shape[0] != marks.Shape[0] {
		return nil, fmt.Errorf("data has %d steps but marks has %d", data.Shape[0], marks.Shape[0])
	}

	total := data.Shape[0]
	numTrain := int(float64(total) * 0.7)
	if numTrain <= seqLen+predLen {
		return nil, fmt.Errorf("series of %d steps leaves a training split of %d, too short for seq=%d pred=%d",
			total, numTrain, seqLen, predLen)
	}

	p := &Provider{
		data:     data,
		marks:    marks,
		scaler:   NewStandardScaler(),
		seqLen:   seqLen,
		labelLen: labelLen,
		predLen:  predLen,
		scale:    scale,
	}

	trainPortion, err := tensor.SliceRows(data, 0, numTrain)
	if err != nil {
		return nil, err
	}
	if err := p.scaler.Fit(trainPortion); err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %v", err)
	}
	if scale {
		scaled, err := p.scaler.Transform(data)
		if err != nil {
			return nil, fmt.Errorf("failed to standardize series: %v", err)
		}
		p.data = scaled
	}
	return p, nil
}

// Scaler returns the scaler fitted on the training portion.
func (p *Provider) Scaler() *StandardScaler {
	return p.scaler
}

// Channels returns the series' feature count.
func (p *Provider) Channels() int {
	return p.data.Shape[1]
}

// Get returns the dataset for a split. The pred split is a single window over
// the final seqLen steps of the series, with no future ground truth.
func (p *Provider) Get(split Split) (*TimeSeriesDataset, error) {
	total := p.data.Shape[0]
	numTrain := int(float64(total) * 0.7)
	numTest := int(float64(total) * 0.2)
	numVali := total - numTrain - numTest

	var begin, end int
	predMode := false
	switch split {
	case SplitTrain:
		begin, end = 0, numTrain
	case SplitVal:
		begin, end = numTrain-p.seqLen, numTrain+numVali
	case SplitTest:
		begin, end = total-numTest-p.seqLen, total
	case SplitPred:
		begin, end = total-p.seqLen, total
		predMode = true
	default:
		return nil, fmt.Errorf("unknown split %q", split)
	}

	segData, err := tensor.SliceRows(p.data, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to slice %s data: %v", split, err)
	}
	segMarks, err := tensor.SliceRows(p.marks, begin, end)
	if err != nil {
		return nil, fmt.Errorf("failed to slice %s marks: %v", split, err)
	}
	return NewTimeSeriesDataset(segData, segMarks, p.seqLen, p.labelLen, p.predLen, predMode, p.scale, p.scaler)
}
