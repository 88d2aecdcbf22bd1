package dataset

import (
	"context"
	"fmt"
	"sync"
)

// PrefetchLoader wraps a Loader with a background goroutine that assembles
// batches ahead of the consumer, so tensor stacking overlaps with the
// training step. One epoch at a time: Start begins an epoch, Next drains it,
// Stop tears the pipeline down.
type PrefetchLoader struct {
	loader        *Loader
	prefetchDepth int

	batchChannel chan *Batch
	errorChannel chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	isRunning bool
	mutex     sync.Mutex
}

// NewPrefetchLoader creates a prefetching wrapper. prefetchDepth is the
// number of batches staged ahead of the consumer.
func NewPrefetchLoader(loader *Loader, prefetchDepth int) (*PrefetchLoader, error) {
	if prefetchDepth <= 0 {
		return nil, fmt.Errorf("prefetch depth must be positive, got %d", prefetchDepth)
	}
	return &PrefetchLoader{
		loader:        loader,
		prefetchDepth: prefetchDepth,
	}, nil
}

// Len returns the number of batches in an epoch.
func (pl *PrefetchLoader) Len() int {
	return pl.loader.Len()
}

// Start resets the underlying loader and launches the producer for one
// epoch. Starting a running loader is an error.
func (pl *PrefetchLoader) Start() error {
	pl.mutex.Lock()
	defer pl.mutex.Unlock()

	if pl.isRunning {
		return fmt.Errorf("prefetch loader is already running")
	}
	pl.loader.Reset()
	pl.ctx, pl.cancel = context.WithCancel(context.Background())
	pl.batchChannel = make(chan *Batch, pl.prefetchDepth)
	pl.errorChannel = make(chan error, 1)
	pl.isRunning = true

	pl.wg.Add(1)
	go pl.produce()
	return nil
}

func (pl *PrefetchLoader) produce() {
	defer pl.wg.Done()
	defer close(pl.batchChannel)

	for pl.loader.HasNext() {
		batch, err := pl.loader.Next()
		if err != nil {
			select {
			case pl.errorChannel <- err:
			case <-pl.ctx.Done():
			}
			return
		}
		if batch == nil {
			return
		}
		select {
		case pl.batchChannel <- batch:
		case <-pl.ctx.Done():
			return
		}
	}
}

// Next returns the next staged batch, blocking until one is ready. A nil
// batch with nil error marks the end of the epoch.
func (pl *PrefetchLoader) Next() (*Batch, error) {
	select {
	case err := <-pl.errorChannel:
		return nil, err
	case batch, ok := <-pl.batchChannel:
		if !ok {
			// Channel drained; surface a pending producer error if any.
			select {
			case err := <-pl.errorChannel:
				return nil, err
			default:
			}
			return nil, nil
		}
		return batch, nil
	}
}

// Stop cancels the producer and waits for it to exit. Safe to call on a
// stopped loader.
func (pl *PrefetchLoader) Stop() {
	pl.mutex.Lock()
	defer pl.mutex.Unlock()

	if !pl.isRunning {
		return
	}
	pl.cancel()
	pl.wg.Wait()
	pl.isRunning = false
}
