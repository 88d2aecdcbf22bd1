package forecast

import (
	"fmt"

	"github.com/tsawler/go-forecast/dataset"
	"github.com/tsawler/go-forecast/tensor"
)

// horizonSlice trims a model output and target window to the scored region:
// the final predLen steps, and in MS mode only the last channel. It returns
// the sliced pair ready for the criterion.
func horizonSlice(cfg *Config, output, y *tensor.Tensor) (pred, target *tensor.Tensor, err error) {
	pred, err = tensor.SliceTimeTail(output, cfg.PredLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to slice output horizon: %v", err)
	}
	target, err = tensor.SliceTimeTail(y, cfg.PredLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to slice target horizon: %v", err)
	}

	predFrom := cfg.targetOffset(pred.Shape[2])
	targetFrom := cfg.targetOffset(target.Shape[2])
	pred, err = tensor.SliceChannelsFrom(pred, predFrom)
	if err != nil {
		return nil, nil, err
	}
	target, err = tensor.SliceChannelsFrom(target, targetFrom)
	if err != nil {
		return nil, nil, err
	}
	return pred, target, nil
}

// embedGrad expands the gradient of a horizon-sliced loss back to the model's
// full output shape, zero everywhere the loss did not look. timeOffset and
// chanOffset locate the scored region inside the full output.
func embedGrad(grad *tensor.Tensor, outShape []int, timeOffset, chanOffset int) (*tensor.Tensor, error) {
	full, err := tensor.Zeros(outShape)
	if err != nil {
		return nil, err
	}
	b, steps, c := grad.Shape[0], grad.Shape[1], grad.Shape[2]
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < steps; ti++ {
			src := bi*grad.Strides[0] + ti*grad.Strides[1]
			dst := bi*full.Strides[0] + (ti+timeOffset)*full.Strides[1] + chanOffset
			copy(full.Data[dst:dst+c], grad.Data[src:src+c])
		}
	}
	return full, nil
}

// inverseTransform3D maps a standardized [B, T, C'] tensor back to original
// units. When the tensor is narrower than the scaler's feature count (a
// univariate output scored against multivariate statistics), channels are
// tiled out to full width first, transformed, then cut back down.
func inverseTransform3D(ds dataset.Dataset, t *tensor.Tensor) (*tensor.Tensor, error) {
	scaler := ds.Scaler()
	want := len(scaler.Mean)
	have := t.Shape[2]

	work := t
	if have != want {
		if want%have != 0 {
			return nil, fmt.Errorf("cannot tile %d channels to %d features", have, want)
		}
		tiled, err := tensor.TileChannels(t, want/have)
		if err != nil {
			return nil, err
		}
		work = tiled
	}

	flat, err := tensor.FlattenBatchTime(work)
	if err != nil {
		return nil, err
	}
	restored, err := ds.InverseTransform(flat)
	if err != nil {
		return nil, err
	}
	full, err := restored.Reshape([]int{work.Shape[0], work.Shape[1], work.Shape[2]})
	if err != nil {
		return nil, err
	}
	if have == want {
		return full, nil
	}
	// Keep the channels that correspond to the original narrow tensor: the
	// trailing block, matching the last-channel target convention.
	return tensor.SliceChannelsFrom(full, want-have)
}
