package forecast

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/go-forecast/checkpoints"
)

// EarlyStopping halts training after patience consecutive epochs without a
// validation-loss improvement, checkpointing the model whenever the loss does
// improve. Improvement means the loss dropped by more than delta below the
// best seen so far.
type EarlyStopping struct {
	patience int
	delta    float64
	log      *logrus.Logger

	counter   int
	bestScore float64
	hasBest   bool
	stopped   bool

	saver *checkpoints.CheckpointSaver
}

// NewEarlyStopping creates a controller. delta is usually zero.
func NewEarlyStopping(patience int, delta float64, log *logrus.Logger) *EarlyStopping {
	return &EarlyStopping{
		patience: patience,
		delta:    delta,
		log:      log,
		saver:    checkpoints.NewCheckpointSaver(checkpoints.FormatJSON),
	}
}

// Step records one epoch's validation loss. On improvement it saves the
// model's parameters to dir/checkpoint.pth; otherwise it advances the
// non-improvement counter and trips the stop flag at patience. Improvement is
// strict: a loss exactly equal to the best (within delta) counts toward
// patience, so a plateaued run stops instead of checkpointing forever.
func (es *EarlyStopping) Step(valiLoss float64, model Model, dir string, epoch int, lr float64) error {
	score := -valiLoss
	if !es.hasBest || score > es.bestScore+es.delta {
		if es.hasBest {
			es.log.WithFields(logrus.Fields{
				"vali_loss": valiLoss,
				"best":      -es.bestScore,
			}).Info("validation loss decreased, saving model")
		}
		es.bestScore = score
		es.hasBest = true
		es.counter = 0
		return es.save(valiLoss, model, dir, epoch, lr)
	}

	es.counter++
	es.log.Infof("EarlyStopping counter: %d out of %d", es.counter, es.patience)
	if es.counter >= es.patience {
		es.stopped = true
	}
	return nil
}

// Stopped reports whether training should halt.
func (es *EarlyStopping) Stopped() bool {
	return es.stopped
}

// BestLoss returns the lowest validation loss recorded so far.
func (es *EarlyStopping) BestLoss() float64 {
	if !es.hasBest {
		return 0
	}
	return -es.bestScore
}

func (es *EarlyStopping) save(valiLoss float64, model Model, dir string, epoch int, lr float64) error {
	ckpt := &checkpoints.Checkpoint{
		Weights: checkpoints.FromParameters(model.Parameters()),
		TrainingState: checkpoints.TrainingState{
			Epoch:        epoch,
			BestLoss:     valiLoss,
			LearningRate: lr,
		},
	}
	path := filepath.Join(dir, "checkpoint.pth")
	if err := es.saver.SaveCheckpoint(ckpt, path); err != nil {
		return fmt.Errorf("failed to save checkpoint: %v", err)
	}
	return nil
}

// LoadBest restores the best checkpoint saved under dir into the model. A
// missing checkpoint is an error, never a silent fresh start.
func LoadBest(model Model, dir string) error {
	saver := checkpoints.NewCheckpointSaver(checkpoints.FormatJSON)
	ckpt, err := saver.LoadCheckpoint(filepath.Join(dir, "checkpoint.pth"))
	if err != nil {
		return fmt.Errorf("failed to load best checkpoint: %w", err)
	}
	return checkpoints.LoadIntoParameters(ckpt.Weights, model.Parameters())
}
