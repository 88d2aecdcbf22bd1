package tensor

import (
	"fmt"
)

// require3D guards the [batch, time, channel] helpers below.
func require3D(t *Tensor, op string) error {
	if len(t.Shape) != 3 {
		return fmt.Errorf("%s requires a 3-D tensor, got shape %v", op, t.Shape)
	}
	return nil
}

// SliceTimeTail returns the last steps entries of the time axis.
func SliceTimeTail(t *Tensor, steps int) (*Tensor, error) {
	if err := require3D(t, "SliceTimeTail"); err != nil {
		return nil, err
	}
	if steps <= 0 || steps > t.Shape[1] {
		return nil, fmt.Errorf("SliceTimeTail steps %d out of range (0, %d]", steps, t.Shape[1])
	}
	return sliceTime(t, t.Shape[1]-steps, t.Shape[1])
}

// SliceTimeHead returns the first steps entries of the time axis.
func SliceTimeHead(t *Tensor, steps int) (*Tensor, error) {
	if err := require3D(t, "SliceTimeHead"); err != nil {
		return nil, err
	}
	if steps <= 0 || steps > t.Shape[1] {
		return nil, fmt.Errorf("SliceTimeHead steps %d out of range (0, %d]", steps, t.Shape[1])
	}
	return sliceTime(t, 0, steps)
}

func sliceTime(t *Tensor, from, to int) (*Tensor, error) {
	b, c := t.Shape[0], t.Shape[2]
	out, err := Zeros([]int{b, to - from, c})
	if err != nil {
		return nil, err
	}
	for bi := 0; bi < b; bi++ {
		src := bi*t.Strides[0] + from*t.Strides[1]
		dst := bi * out.Strides[0]
		copy(out.Data[dst:dst+(to-from)*c], t.Data[src:src+(to-from)*c])
	}
	return out, nil
}

// SliceChannelsFrom keeps channels [from, C) of a 3-D tensor.
func SliceChannelsFrom(t *Tensor, from int) (*Tensor, error) {
	if err := require3D(t, "SliceChannelsFrom"); err != nil {
		return nil, err
	}
	c := t.Shape[2]
	if from < 0 || from >= c {
		return nil, fmt.Errorf("SliceChannelsFrom index %d out of range [0, %d)", from, c)
	}
	if from == 0 {
		return t.Clone(), nil
	}
	b, steps := t.Shape[0], t.Shape[1]
	out, err := Zeros([]int{b, steps, c - from})
	if err != nil {
		return nil, err
	}
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < steps; ti++ {
			src := bi*t.Strides[0] + ti*t.Strides[1] + from
			dst := bi*out.Strides[0] + ti*out.Strides[1]
			copy(out.Data[dst:dst+c-from], t.Data[src:src+c-from])
		}
	}
	return out, nil
}

// ConcatTime concatenates two 3-D tensors along the time axis.
func ConcatTime(a, b *Tensor) (*Tensor, error) {
	if err := require3D(a, "ConcatTime"); err != nil {
		return nil, err
	}
	if err := require3D(b, "ConcatTime"); err != nil {
		return nil, err
	}
	if a.Shape[0] != b.Shape[0] || a.Shape[2] != b.Shape[2] {
		return nil, fmt.Errorf("ConcatTime batch/channel mismatch: %v vs %v", a.Shape, b.Shape)
	}
	batch, c := a.Shape[0], a.Shape[2]
	ta, tb := a.Shape[1], b.Shape[1]
	out, err := Zeros([]int{batch, ta + tb, c})
	if err != nil {
		return nil, err
	}
	for bi := 0; bi < batch; bi++ {
		dst := bi * out.Strides[0]
		copy(out.Data[dst:dst+ta*c], a.Data[bi*a.Strides[0]:bi*a.Strides[0]+ta*c])
		copy(out.Data[dst+ta*c:dst+(ta+tb)*c], b.Data[bi*b.Strides[0]:bi*b.Strides[0]+tb*c])
	}
	return out, nil
}

// ConcatSamples concatenates 3-D tensors along the sample (batch) axis. All
// inputs must agree on the trailing dimensions.
func ConcatSamples(parts []*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("ConcatSamples requires at least one tensor")
	}
	first := parts[0]
	if err := require3D(first, "ConcatSamples"); err != nil {
		return nil, err
	}
	total := 0
	for _, p := range parts {
		if err := require3D(p, "ConcatSamples"); err != nil {
			return nil, err
		}
		if p.Shape[1] != first.Shape[1] || p.Shape[2] != first.Shape[2] {
			return nil, fmt.Errorf("ConcatSamples trailing shape mismatch: %v vs %v", p.Shape, first.Shape)
		}
		total += p.Shape[0]
	}
	out, err := Zeros([]int{total, first.Shape[1], first.Shape[2]})
	if err != nil {
		return nil, err
	}
	offset := 0
	for _, p := range parts {
		copy(out.Data[offset:offset+p.NumElems], p.Data)
		offset += p.NumElems
	}
	return out, nil
}

// TileChannels repeats the channel axis reps times, so each time step's
// channel vector [v0, v1] becomes [v0, v1, v0, v1, ...]. Used to broadcast a
// narrow model output against a wider target before inverse scaling.
func TileChannels(t *Tensor, reps int) (*Tensor, error) {
	if err := require3D(t, "TileChannels"); err != nil {
		return nil, err
	}
	if reps <= 0 {
		return nil, fmt.Errorf("TileChannels reps must be positive, got %d", reps)
	}
	if reps == 1 {
		return t.Clone(), nil
	}
	b, steps, c := t.Shape[0], t.Shape[1], t.Shape[2]
	out, err := Zeros([]int{b, steps, c * reps})
	if err != nil {
		return nil, err
	}
	for bi := 0; bi < b; bi++ {
		for ti := 0; ti < steps; ti++ {
			src := bi*t.Strides[0] + ti*t.Strides[1]
			dst := bi*out.Strides[0] + ti*out.Strides[1]
			for r := 0; r < reps; r++ {
				copy(out.Data[dst+r*c:dst+(r+1)*c], t.Data[src:src+c])
			}
		}
	}
	return out, nil
}

// RepeatLastStep appends n copies of the final time step to a 3-D tensor.
// Covariates for unseen future steps are unknown at predict time, so the last
// known row is held constant as a neutral extrapolation.
func RepeatLastStep(t *Tensor, n int) (*Tensor, error) {
	if err := require3D(t, "RepeatLastStep"); err != nil {
		return nil, err
	}
	if n <= 0 {
		return t.Clone(), nil
	}
	b, steps, c := t.Shape[0], t.Shape[1], t.Shape[2]
	out, err := Zeros([]int{b, steps + n, c})
	if err != nil {
		return nil, err
	}
	for bi := 0; bi < b; bi++ {
		src := bi * t.Strides[0]
		dst := bi * out.Strides[0]
		copy(out.Data[dst:dst+steps*c], t.Data[src:src+steps*c])
		last := t.Data[src+(steps-1)*c : src+steps*c]
		for r := 0; r < n; r++ {
			copy(out.Data[dst+(steps+r)*c:dst+(steps+r+1)*c], last)
		}
	}
	return out, nil
}

// SliceRows returns rows [from, to) of a 2-D tensor as a copy.
func SliceRows(t *Tensor, from, to int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("SliceRows requires a 2-D tensor, got shape %v", t.Shape)
	}
	if from < 0 || to > t.Shape[0] || from >= to {
		return nil, fmt.Errorf("SliceRows range [%d, %d) out of bounds for %d rows", from, to, t.Shape[0])
	}
	c := t.Shape[1]
	out, err := Zeros([]int{to - from, c})
	if err != nil {
		return nil, err
	}
	copy(out.Data, t.Data[from*c:to*c])
	return out, nil
}

// FlattenBatchTime reshapes [B, T, C] to [B*T, C]; the inverse-scaling path
// applies per-feature transforms on 2-D views.
func FlattenBatchTime(t *Tensor) (*Tensor, error) {
	if err := require3D(t, "FlattenBatchTime"); err != nil {
		return nil, err
	}
	return t.Reshape([]int{t.Shape[0] * t.Shape[1], t.Shape[2]})
}
