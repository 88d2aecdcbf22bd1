package forecast

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/go-forecast/dataset"
	"github.com/tsawler/go-forecast/npy"
	"github.com/tsawler/go-forecast/tensor"
)

// Experiment wires a model, a data provider, and the training loop together
// for one long-horizon forecasting run. One Experiment owns one model; Train,
// Test, and Predict share its parameters and checkpoint directory.
type Experiment struct {
	cfg      *Config
	provider *dataset.Provider
	model    Model
	log      *logrus.Logger
	sink     ResultSink
}

// NewExperiment validates the configuration and builds the model. The sink
// receives test summaries; pass nil to default to the results log under
// cfg.ResultsRoot.
func NewExperiment(cfg *Config, provider *dataset.Provider, log *logrus.Logger, sink ResultSink) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	if log == nil {
		log = logrus.New()
	}
	if cfg.UseMultiGPU {
		log.WithField("device_ids", cfg.DeviceIDs).Warn("multi-device execution not available, running single-device")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	model, err := BuildModel(cfg, provider.Channels(), rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %v", err)
	}
	if sink == nil {
		sink = NewFileResultSink(filepath.Join(cfg.ResultsRoot, "result_long_term_forecast.txt"))
	}
	return &Experiment{
		cfg:      cfg,
		provider: provider,
		model:    model,
		log:      log,
		sink:     sink,
	}, nil
}

// Model exposes the experiment's model, mainly for tests.
func (e *Experiment) Model() Model {
	return e.model
}

func (e *Experiment) checkpointDir(setting string) string {
	return filepath.Join(e.cfg.Checkpoints, setting)
}

func (e *Experiment) loader(split dataset.Split, shuffle bool) (*dataset.Loader, error) {
	ds, err := e.provider.Get(split)
	if err != nil {
		return nil, err
	}
	return dataset.NewLoader(ds, e.cfg.BatchSize, shuffle, e.cfg.Seed)
}

// Train runs the full training loop for the named setting: epochs over the
// training split with per-iteration throughput logging, validation and test
// loss after each epoch, checkpoint-on-improvement with early stopping, and a
// learning-rate schedule applied between epochs. On exit the returned model
// holds the best checkpoint's weights.
func (e *Experiment) Train(setting string) (Model, error) {
	trainLoader, err := e.loader(dataset.SplitTrain, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build train loader: %v", err)
	}
	valiLoader, err := e.loader(dataset.SplitVal, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build vali loader: %v", err)
	}
	testLoader, err := e.loader(dataset.SplitTest, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build test loader: %v", err)
	}

	ckptDir := e.checkpointDir(setting)
	if err := os.MkdirAll(ckptDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %v", err)
	}

	criterion, err := SelectCriterion(e.cfg, e.provider.Scaler(), e.log)
	if err != nil {
		return nil, err
	}
	optim, err := NewAdam(AdamConfig{
		LearningRate: e.cfg.LearningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}, e.model.Parameters())
	if err != nil {
		return nil, fmt.Errorf("failed to build optimizer: %v", err)
	}
	scheduler, err := SelectScheduler(e.cfg)
	if err != nil {
		return nil, err
	}
	earlyStopping := NewEarlyStopping(e.cfg.Patience, 0, e.log)

	var scaler *GradScaler
	if e.cfg.UseAMP {
		scaler = NewGradScaler(e.log)
	}

	// Batches are staged through a background prefetcher so tensor stacking
	// overlaps with the training step.
	prefetch, err := dataset.NewPrefetchLoader(trainLoader, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to build prefetch loader: %v", err)
	}

	trainSteps := prefetch.Len()
	trainStart := time.Now()

	for epoch := 0; epoch < e.cfg.TrainEpochs; epoch++ {
		e.model.Train()
		epochStart := time.Now()

		trainLoss, err := e.trainEpoch(epoch, prefetch, criterion, optim, scaler)
		if err != nil {
			return nil, err
		}
		valiLoss, err := e.Vali(valiLoader, criterion)
		if err != nil {
			return nil, fmt.Errorf("validation failed: %v", err)
		}
		testLoss, err := e.Vali(testLoader, criterion)
		if err != nil {
			return nil, fmt.Errorf("test evaluation failed: %v", err)
		}

		e.log.WithFields(logrus.Fields{
			"epoch":      epoch + 1,
			"steps":      trainSteps,
			"train_loss": trainLoss,
			"vali_loss":  valiLoss,
			"test_loss":  testLoss,
			"cost_time":  time.Since(epochStart).String(),
		}).Info("epoch finished")

		if err := earlyStopping.Step(valiLoss, e.model, ckptDir, epoch+1, optim.GetLR()); err != nil {
			return nil, err
		}
		if earlyStopping.Stopped() {
			e.log.Info("early stopping")
			break
		}

		newLR := scheduler.GetLR(epoch+1, e.cfg.LearningRate)
		if newLR != optim.GetLR() {
			optim.SetLR(newLR)
			e.log.Infof("updating learning rate to %g", newLR)
		}
	}

	e.log.Infof("total training time: %s", formatDuration(time.Since(trainStart)))
	if err := LoadBest(e.model, ckptDir); err != nil {
		return nil, err
	}
	return e.model, nil
}

// trainEpoch drains one epoch of prefetched batches through the training
// step, logging throughput every 100 iterations, and returns the mean batch
// loss.
func (e *Experiment) trainEpoch(epoch int, prefetch *dataset.PrefetchLoader, criterion Criterion, optim Optimizer, scaler *GradScaler) (float64, error) {
	if err := prefetch.Start(); err != nil {
		return 0, fmt.Errorf("failed to start prefetch loader: %v", err)
	}
	defer prefetch.Stop()

	trainSteps := prefetch.Len()
	var epochLoss float64
	iterCount := 0
	batchIndex := 0
	speedWindow := time.Now()

	for {
		batch, err := prefetch.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to load batch: %v", err)
		}
		if batch == nil {
			break
		}
		batchIndex++
		iterCount++
		optim.ZeroGrad()

		loss, err := e.trainStep(batch, criterion, optim, scaler)
		if err != nil {
			return 0, fmt.Errorf("training step failed at epoch %d batch %d: %v", epoch+1, batchIndex, err)
		}
		epochLoss += loss

		if batchIndex%100 == 0 {
			speed := time.Since(speedWindow).Seconds() / float64(iterCount)
			leftTime := speed * float64((e.cfg.TrainEpochs-epoch)*trainSteps-batchIndex)
			e.log.WithFields(logrus.Fields{
				"iters": batchIndex,
				"epoch": epoch + 1,
				"loss":  loss,
			}).Infof("speed: %.4fs/iter; left time: %.4fs", speed, leftTime)
			iterCount = 0
			speedWindow = time.Now()
		}
	}
	if batchIndex == 0 {
		return 0, fmt.Errorf("training loader produced no batches")
	}
	return epochLoss / float64(trainSteps), nil
}

// trainStep runs forward, loss, backward, and the optimizer update for one
// batch, returning the batch loss.
func (e *Experiment) trainStep(batch *dataset.Batch, criterion Criterion, optim Optimizer, scaler *GradScaler) (float64, error) {
	decInp, err := BuildDecoderInput(batch.Y, e.cfg.LabelLen, e.cfg.PredLen)
	if err != nil {
		return 0, err
	}
	output, err := e.model.Forward(batch.X, batch.XMark, decInp, batch.YMark)
	if err != nil {
		return 0, err
	}
	pred, target, err := horizonSlice(e.cfg, output, batch.Y)
	if err != nil {
		return 0, err
	}
	loss, err := criterion.Forward(pred, target)
	if err != nil {
		return 0, err
	}

	grad, err := criterion.Backward(pred, target)
	if err != nil {
		return 0, err
	}
	if scaler != nil {
		scaler.ScaleGrad(grad)
	}
	fullGrad, err := embedGrad(grad, output.Shape,
		output.Shape[1]-e.cfg.PredLen, e.cfg.targetOffset(output.Shape[2]))
	if err != nil {
		return 0, err
	}
	if err := e.model.Backward(fullGrad); err != nil {
		return 0, err
	}

	if scaler != nil {
		if _, err := scaler.Step(optim, e.model.Parameters()); err != nil {
			return 0, err
		}
	} else if err := optim.Step(); err != nil {
		return 0, err
	}
	return loss, nil
}

// Vali evaluates the criterion over a split without gradient updates and
// returns the mean per-batch loss. The model is returned to training mode
// before Vali returns, so callers need not manage mode transitions.
func (e *Experiment) Vali(loader *dataset.Loader, criterion Criterion) (float64, error) {
	e.model.Eval()
	defer e.model.Train()

	loader.Reset()
	var total float64
	batches := 0
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to load batch: %v", err)
		}
		decInp, err := BuildDecoderInput(batch.Y, e.cfg.LabelLen, e.cfg.PredLen)
		if err != nil {
			return 0, err
		}
		output, err := e.model.Forward(batch.X, batch.XMark, decInp, batch.YMark)
		if err != nil {
			return 0, err
		}
		pred, target, err := horizonSlice(e.cfg, output, batch.Y)
		if err != nil {
			return 0, err
		}
		loss, err := criterion.Forward(pred, target)
		if err != nil {
			return 0, err
		}
		total += loss
		batches++
	}
	if batches == 0 {
		return 0, fmt.Errorf("validation loader produced no batches")
	}
	return total / float64(batches), nil
}

// Test evaluates the held-out split, writing prediction artifacts, every
// 20th batch's comparison plot, the metric array, and a line in the results
// log. With load set, the best checkpoint for the setting is restored first.
func (e *Experiment) Test(setting string, load bool) error {
	testData, err := e.provider.Get(dataset.SplitTest)
	if err != nil {
		return fmt.Errorf("failed to build test split: %v", err)
	}
	loader, err := dataset.NewLoader(testData, e.cfg.BatchSize, false, e.cfg.Seed)
	if err != nil {
		return err
	}
	if load {
		e.log.Info("loading model")
		if err := LoadBest(e.model, e.checkpointDir(setting)); err != nil {
			return err
		}
	}

	resultsDir := filepath.Join(e.cfg.ResultsRoot, setting)
	visualDir := filepath.Join(e.cfg.TestResultsRoot, setting)
	for _, dir := range []string{resultsDir, visualDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %v", err)
		}
	}

	e.model.Eval()
	defer e.model.Train()
	loader.Reset()

	var preds, trues, inputs []*tensor.Tensor
	batchIndex := 0
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return fmt.Errorf("failed to load batch: %v", err)
		}
		decInp, err := BuildDecoderInput(batch.Y, e.cfg.LabelLen, e.cfg.PredLen)
		if err != nil {
			return err
		}
		output, err := e.model.Forward(batch.X, batch.XMark, decInp, batch.YMark)
		if err != nil {
			return err
		}
		pred, target, err := horizonSlice(e.cfg, output, batch.Y)
		if err != nil {
			return err
		}

		if testData.Scale() && e.cfg.Inverse {
			if pred, err = inverseTransform3D(testData, pred); err != nil {
				return fmt.Errorf("failed to inverse-transform predictions: %v", err)
			}
			if target, err = inverseTransform3D(testData, target); err != nil {
				return fmt.Errorf("failed to inverse-transform targets: %v", err)
			}
		}

		// The input artifact stays in the space the model consumed; only the
		// plot's lead-in gets mapped back to original units.
		preds = append(preds, pred)
		trues = append(trues, target)
		inputs = append(inputs, batch.X)

		if batchIndex%20 == 0 {
			lead := batch.X
			if testData.Scale() && e.cfg.Inverse {
				if lead, err = inverseTransform3D(testData, lead); err != nil {
					return fmt.Errorf("failed to inverse-transform inputs: %v", err)
				}
			}
			path := filepath.Join(visualDir, fmt.Sprintf("%d.pdf", batchIndex))
			if err := e.saveComparison(lead, target, pred, path); err != nil {
				return err
			}
		}
		batchIndex++
	}

	predAll, err := tensor.ConcatSamples(preds)
	if err != nil {
		return fmt.Errorf("failed to concatenate predictions: %v", err)
	}
	trueAll, err := tensor.ConcatSamples(trues)
	if err != nil {
		return fmt.Errorf("failed to concatenate targets: %v", err)
	}
	inputAll, err := tensor.ConcatSamples(inputs)
	if err != nil {
		return fmt.Errorf("failed to concatenate inputs: %v", err)
	}
	e.log.WithFields(logrus.Fields{
		"pred_shape": predAll.Shape,
		"true_shape": trueAll.Shape,
	}).Info("test shapes")

	metrics, err := ComputeMetrics(predAll, trueAll)
	if err != nil {
		return err
	}

	dtwText := "Not calculated"
	if e.cfg.UseDTW {
		d, err := DTW(predAll, trueAll, e.cfg.DTWMaxSamples, e.log)
		if err != nil {
			return fmt.Errorf("DTW failed: %v", err)
		}
		dtwText = fmt.Sprintf("%v", d)
	}
	e.log.WithFields(logrus.Fields{
		"mse": metrics.MSE,
		"mae": metrics.MAE,
		"dtw": dtwText,
	}).Info("test metrics")

	if err := saveTensorNpy(filepath.Join(resultsDir, "pred.npy"), predAll); err != nil {
		return err
	}
	if err := saveTensorNpy(filepath.Join(resultsDir, "true.npy"), trueAll); err != nil {
		return err
	}
	if err := saveTensorNpy(filepath.Join(resultsDir, "input.npy"), inputAll); err != nil {
		return err
	}
	if err := npy.Save(filepath.Join(resultsDir, "metrics.npy"), []int{5}, metrics.Slice()); err != nil {
		return fmt.Errorf("failed to save metrics: %v", err)
	}

	return e.sink.Append(setting,
		fmt.Sprintf("mse:%v, mae:%v, dtw:%v", metrics.MSE, metrics.MAE, dtwText))
}

// saveComparison plots the first sample's last channel: lead-in input
// followed by the true and predicted horizons.
func (e *Experiment) saveComparison(input, target, pred *tensor.Tensor, path string) error {
	lead := lastChannelSeries(input, 0)
	gt := append(append([]float64{}, lead...), lastChannelSeries(target, 0)...)
	pd := append(append([]float64{}, lead...), lastChannelSeries(pred, 0)...)
	return SaveComparisonPlot(gt, pd, path)
}

// lastChannelSeries extracts sample s's final channel over time.
func lastChannelSeries(t *tensor.Tensor, s int) []float64 {
	steps, c := t.Shape[1], t.Shape[2]
	out := make([]float64, steps)
	for ti := 0; ti < steps; ti++ {
		out[ti] = float64(t.Data[s*t.Strides[0]+ti*t.Strides[1]+c-1])
	}
	return out
}

// Predict forecasts past the end of the series, where no ground truth
// exists: the decoder receives the full label window plus zeros and marks
// extended by their last row. Returns [N, PredLen, C'] in original units when
// inverse scaling is configured, and writes real_prediction.npy.
func (e *Experiment) Predict(setting string, load bool) (*tensor.Tensor, error) {
	predData, err := e.provider.Get(dataset.SplitPred)
	if err != nil {
		return nil, fmt.Errorf("failed to build predict split: %v", err)
	}
	loader, err := dataset.NewLoader(predData, e.cfg.BatchSize, false, e.cfg.Seed)
	if err != nil {
		return nil, err
	}
	if load {
		if err := LoadBest(e.model, e.checkpointDir(setting)); err != nil {
			return nil, err
		}
	}

	e.model.Eval()
	defer e.model.Train()
	loader.Reset()

	var preds []*tensor.Tensor
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to load batch: %v", err)
		}
		decInp, yMark, err := BuildPredictDecoderInput(batch.Y, batch.YMark, e.cfg.PredLen)
		if err != nil {
			return nil, err
		}
		output, err := e.model.Forward(batch.X, batch.XMark, decInp, yMark)
		if err != nil {
			return nil, err
		}
		pred, err := tensor.SliceTimeTail(output, e.cfg.PredLen)
		if err != nil {
			return nil, err
		}
		pred, err = tensor.SliceChannelsFrom(pred, e.cfg.targetOffset(pred.Shape[2]))
		if err != nil {
			return nil, err
		}
		if predData.Scale() && e.cfg.Inverse {
			if pred, err = inverseTransform3D(predData, pred); err != nil {
				return nil, fmt.Errorf("failed to inverse-transform predictions: %v", err)
			}
		}
		preds = append(preds, pred)
	}

	predAll, err := tensor.ConcatSamples(preds)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate predictions: %v", err)
	}

	resultsDir := filepath.Join(e.cfg.ResultsRoot, setting)
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %v", err)
	}
	if err := saveTensorNpy(filepath.Join(resultsDir, "real_prediction.npy"), predAll); err != nil {
		return nil, err
	}
	return predAll, nil
}

func saveTensorNpy(path string, t *tensor.Tensor) error {
	data := make([]float64, t.NumElems)
	for i, v := range t.Data {
		data[i] = float64(v)
	}
	if err := npy.Save(path, t.Shape, data); err != nil {
		return fmt.Errorf("failed to save %s: %v", filepath.Base(path), err)
	}
	return nil
}

// formatDuration renders a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
