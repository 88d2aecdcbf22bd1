package dataset

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/tsawler/go-forecast/tensor"
)

// Batch carries the four tensors every forecasting loop consumes: the input
// window, the label+target window, and their time-feature marks. Shapes are
// [B, steps, channels].
type Batch struct {
	X     *tensor.Tensor
	Y     *tensor.Tensor
	XMark *tensor.Tensor
	YMark *tensor.Tensor
}

// Loader provides batching and optional shuffling over a Dataset.
type Loader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	indices   []int
	position  int
	rng       *rand.Rand
	mutex     sync.Mutex
}

// NewLoader creates a Loader. A non-positive batch size is an error.
func NewLoader(dataset Dataset, batchSize int, shuffle bool, seed int64) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}
	return &Loader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		indices:   indices,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// Len returns the number of batches in an epoch.
func (l *Loader) Len() int {
	return (l.dataset.Len() + l.batchSize - 1) / l.batchSize
}

// Reset rewinds the loader for a new epoch, reshuffling if configured.
func (l *Loader) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.position = 0
	if l.shuffle {
		for i := len(l.indices) - 1; i > 0; i-- {
			j := l.rng.Intn(i + 1)
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		}
	}
}

// HasNext reports whether the current epoch has more batches.
func (l *Loader) HasNext() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.position < len(l.indices)
}

// Next returns the next batch, or nil at the end of the epoch.
func (l *Loader) Next() (*Batch, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.position >= len(l.indices) {
		return nil, nil
	}

	end := l.position + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	batchIndices := l.indices[l.position:end]
	l.position = end

	return l.loadBatch(batchIndices)
}

func (l *Loader) loadBatch(indices []int) (*Batch, error) {
	firstX, firstY, firstXM, firstYM, err := l.dataset.Get(indices[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load sample %d: %v", indices[0], err)
	}

	n := len(indices)
	x, err := tensor.Zeros(append([]int{n}, firstX.Shape...))
	if err != nil {
		return nil, err
	}
	y, err := tensor.Zeros(append([]int{n}, firstY.Shape...))
	if err != nil {
		return nil, err
	}
	xMark, err := tensor.Zeros(append([]int{n}, firstXM.Shape...))
	if err != nil {
		return nil, err
	}
	yMark, err := tensor.Zeros(append([]int{n}, firstYM.Shape...))
	if err != nil {
		return nil, err
	}

	for i, idx := range indices {
		sx, sy, sxm, sym, err := l.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		pairs := []struct{ dst, src *tensor.Tensor }{
			{x, sx}, {y, sy}, {xMark, sxm}, {yMark, sym},
		}
		for _, p := range pairs {
			if err := stackInto(p.dst, p.src, i); err != nil {
				return nil, fmt.Errorf("failed to stack sample %d: %v", idx, err)
			}
		}
	}

	return &Batch{X: x, Y: y, XMark: xMark, YMark: yMark}, nil
}

// stackInto copies a sample tensor into position i of the batch tensor.
func stackInto(batch, sample *tensor.Tensor, i int) error {
	size := sample.NumElems
	offset := i * size
	if offset+size > batch.NumElems {
		return fmt.Errorf("sample of %d elements does not fit batch slot %d", size, i)
	}
	copy(batch.Data[offset:offset+size], sample.Data)
	return nil
}
