package experiment

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/samuelfneumann/offlinerl/agent"
	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/evaluation"
	"github.com/samuelfneumann/offlinerl/experiment/checkpointer"
	"github.com/samuelfneumann/offlinerl/experiment/tracker"
	"github.com/samuelfneumann/offlinerl/utils/progressbar"
)

// EvalTag is the main tag under which evaluation metrics are logged
const EvalTag = "Eval"

// progressWidth is the width of the progress bar of each epoch
const progressWidth = 40

// Offline is an Experiment that trains an agent on batches sampled from
// a fixed dataset. The agent is periodically evaluated in its
// environment.
type Offline struct {
	env.Environment
	agent.Agent
	buffer Sampler
	logger Logger
	config Config

	checkpointers []checkpointer.Checkpointer
	trackers      []tracker.Tracker
	progress      io.Writer

	lastTrain map[string]float64
	lastEval  map[string]float64
}

// NewOffline creates and returns a new offline experiment which trains
// agent a on batches drawn from buffer and evaluates it in environment
// e. Checkpointers are called at every multiple of the save interval,
// and trackers track the evaluation metrics.
func NewOffline(e env.Environment, a agent.Agent, buffer Sampler,
	logger Logger, c Config, checks []checkpointer.Checkpointer,
	trackers []tracker.Tracker) (*Offline, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newOffline: %v", err)
	}

	return &Offline{
		Environment:   e,
		Agent:         a,
		buffer:        buffer,
		logger:        logger,
		config:        c,
		checkpointers: checks,
		trackers:      trackers,
	}, nil
}

// SetProgressOutput sets the writer to which a progress bar is printed
// for each epoch. If w is nil, no progress bar is printed.
func (o *Offline) SetProgressOutput(w io.Writer) {
	o.progress = w
}

// Run runs the entire experiment. If ctx is cancelled, the experiment
// stops before the next update and the context's error is returned.
// Trackers are saved in either case.
func (o *Offline) Run(ctx context.Context) error {
	var err error
	for epoch := 1; epoch <= o.config.MaxEpoch; epoch++ {
		if err = o.RunEpoch(ctx, epoch); err != nil {
			break
		}
	}

	for _, t := range o.trackers {
		err = multierr.Append(err, t.Save())
	}
	return err
}

// RunEpoch runs a single epoch of updates, followed by evaluation,
// logging, and checkpointing if the epoch is a multiple of their
// respective intervals
func (o *Offline) RunEpoch(ctx context.Context, epoch int) error {
	var bar *progressbar.ManualProgressBar
	if o.progress != nil {
		bar = progressbar.NewManualProgressBar(o.progress,
			fmt.Sprintf("Epoch %v", epoch), progressWidth,
			o.config.StepPerEpoch)
	}

	for step := 0; step < o.config.StepPerEpoch; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := o.buffer.Sample()
		if err != nil {
			return fmt.Errorf("runEpoch: epoch %v: %v", epoch, err)
		}
		if o.lastTrain, err = o.Update(batch); err != nil {
			return fmt.Errorf("runEpoch: epoch %v: %v", epoch, err)
		}

		if bar != nil {
			bar.Increment()
			bar.Display()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if epoch%o.config.EvalInterval == 0 {
		if err := o.evaluate(epoch); err != nil {
			return fmt.Errorf("runEpoch: %v", err)
		}
	}

	if epoch%o.config.LogInterval == 0 {
		err := o.logger.LogScalars("", o.lastTrain, epoch)
		if o.lastEval != nil {
			err = multierr.Append(err,
				o.logger.LogScalars(EvalTag, o.lastEval, epoch))
		}
		if err != nil {
			o.logger.Warn("could not log scalars", zap.Int("epoch", epoch),
				zap.Error(err))
		}
	}

	if epoch%o.config.SaveInterval == 0 {
		for _, c := range o.checkpointers {
			if err := c.Checkpoint(epoch); err != nil {
				return fmt.Errorf("runEpoch: %v", err)
			}
		}
	}

	return nil
}

// evaluate evaluates the agent in the environment and records the
// evaluation metrics
func (o *Offline) evaluate(epoch int) error {
	metrics, err := evaluation.Offline(o.Environment, o.Agent,
		o.config.Agent, o.config.EvalEpisodes, o.config.Seed)
	if err != nil {
		return fmt.Errorf("evaluate: %v", err)
	}
	o.lastEval = metrics

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := []zap.Field{zap.Int("epoch", epoch)}
	for _, name := range names {
		fields = append(fields, zap.Float64(name, metrics[name]))
	}
	o.logger.Info("evaluation", fields...)

	for _, t := range o.trackers {
		t.Track(epoch, metrics)
	}
	return nil
}
