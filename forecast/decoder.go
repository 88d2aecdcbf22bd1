package forecast

import (
	"fmt"

	"github.com/tsawler/go-forecast/tensor"
)

// BuildDecoderInput assembles the decoder's input for training and
// evaluation: the first labelLen steps of the target window as known context,
// followed by predLen steps of zeros standing in for the unknown horizon.
// With labelLen zero the decoder input is all zeros.
func BuildDecoderInput(y *tensor.Tensor, labelLen, predLen int) (*tensor.Tensor, error) {
	if len(y.Shape) != 3 {
		return nil, fmt.Errorf("target window must be 3-D, got shape %v", y.Shape)
	}
	if predLen <= 0 {
		return nil, fmt.Errorf("prediction length must be positive, got %d", predLen)
	}
	if y.Shape[1] < labelLen {
		return nil, fmt.Errorf("target window has %d steps, need at least labelLen=%d", y.Shape[1], labelLen)
	}

	zeros, err := tensor.Zeros([]int{y.Shape[0], predLen, y.Shape[2]})
	if err != nil {
		return nil, err
	}
	if labelLen == 0 {
		return zeros, nil
	}
	label, err := tensor.SliceTimeHead(y, labelLen)
	if err != nil {
		return nil, err
	}
	return tensor.ConcatTime(label, zeros)
}

// BuildPredictDecoderInput assembles the decoder input when no ground truth
// exists past the series: the entire label window is known context, the
// horizon is zeros, and a mark window shorter than the decoder input is
// extended by holding its last row constant. Marks already covering the full
// decoder length pass through unpadded.
func BuildPredictDecoderInput(y, yMark *tensor.Tensor, predLen int) (decInp, marks *tensor.Tensor, err error) {
	if len(y.Shape) != 3 || len(yMark.Shape) != 3 {
		return nil, nil, fmt.Errorf("target and marks must be 3-D, got %v and %v", y.Shape, yMark.Shape)
	}
	if predLen <= 0 {
		return y.Clone(), yMark.Clone(), nil
	}

	zeros, err := tensor.Zeros([]int{y.Shape[0], predLen, y.Shape[2]})
	if err != nil {
		return nil, nil, err
	}
	decInp, err = tensor.ConcatTime(y, zeros)
	if err != nil {
		return nil, nil, err
	}
	padding := decInp.Shape[1] - yMark.Shape[1]
	marks, err = tensor.RepeatLastStep(yMark, padding)
	if err != nil {
		return nil, nil, err
	}
	return decInp, marks, nil
}
