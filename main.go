// Command offlinerl trains an InAC agent offline on a dataset mixed
// from two D4RL datasets of different quality, periodically evaluating
// the agent online and checkpointing it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/agent/nonlinear/continuous/inac"
	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
	"github.com/samuelfneumann/offlinerl/config"
	"github.com/samuelfneumann/offlinerl/d4rl"
	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/experiment"
	"github.com/samuelfneumann/offlinerl/experiment/checkpointer"
	"github.com/samuelfneumann/offlinerl/experiment/tracker"
	"github.com/samuelfneumann/offlinerl/logger"
)

// EvalFile is the file in the experiment's log directory which holds
// the tracked evaluation metrics
const EvalFile = "eval.gob"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd returns the command which runs an experiment
func newRootCmd() *cobra.Command {
	var configFile string
	flagArgs := config.Default()

	cmd := &cobra.Command{
		Use:   "offlinerl",
		Short: "Train InAC offline on a mixed-quality D4RL dataset",
		Long: `Trains an InAC agent on a dataset mixed from two D4RL datasets of the
same agent but different quality. Arguments are read from an optional
YAML file given by --config; flags override values in the file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := parseArgs(configFile, flagArgs, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), args, cmd.OutOrStdout(),
				cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "",
		"YAML file holding the arguments")
	flagArgs.BindFlags(cmd.Flags())

	cmd.AddCommand(newCollectCmd())
	return cmd
}

// parseArgs returns the arguments of the experiment. If configFile is
// not empty, the arguments are read from it and the flags which were
// set in fs override them.
func parseArgs(configFile string, flagArgs config.Args,
	fs *pflag.FlagSet) (config.Args, error) {
	args := flagArgs
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return config.Args{}, fmt.Errorf("parseArgs: %v", err)
		}
		loaded.Override(flagArgs, fs)
		args = loaded
	}

	if err := args.Validate(); err != nil {
		return config.Args{}, fmt.Errorf("parseArgs: %v", err)
	}
	return args, nil
}

// run runs the experiment described by args. Logs are written to out
// and the progress of each epoch to progress. Cancelling ctx stops the
// experiment early without error.
func run(ctx context.Context, args config.Args, out,
	progress io.Writer) (err error) {
	l, err := logger.New(logger.Options{
		Dir:      args.LogDir(),
		Name:     args.ExpName(),
		Activate: !args.Debug,
		Terminal: out,
	})
	if err != nil {
		return fmt.Errorf("run: could not create logger: %v", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(l))

	if err := l.LogConfig(args); err != nil {
		return fmt.Errorf("run: %v", err)
	}

	e, dataset, err := d4rl.MixedMujoco(args.MixConfig(), args.Seed,
		l.Logger())
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	if closer, ok := e.(env.Closer); ok {
		defer multierr.AppendInvoke(&err, multierr.Close(closer))
	}

	selector, err := expreplay.NewSelector(args.Sampler, args.Seed)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	buffer, err := expreplay.NewOfflineWithSelector(dataset, args.BatchSize,
		selector)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}

	a, err := newAgent(args, e)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	if closer, ok := a.(agent.Closer); ok {
		defer multierr.AppendInvoke(&err, multierr.Close(closer))
	}

	serializable, ok := a.(checkpointer.Serializable)
	if !ok {
		return fmt.Errorf("run: agent %T cannot be checkpointed", a)
	}
	check, err := checkpointer.NewNStep(args.SaveInterval, serializable,
		checkpointer.EpochFilename(args.PolicyDir(), "policy", ".gob"))
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}

	var trackers []tracker.Tracker
	if !args.Debug {
		trackers = append(trackers, tracker.NewMetrics(
			filepath.Join(args.LogDir(), args.ExpName(), EvalFile)))
	}

	exp, err := experiment.NewOffline(e, a, buffer, l,
		args.ExperimentConfig(), []checkpointer.Checkpointer{check}, trackers)
	if err != nil {
		return fmt.Errorf("run: %v", err)
	}
	exp.SetProgressOutput(progress)

	l.Info("starting training",
		zap.Int("transitions", buffer.Capacity()),
		zap.Int("max_epoch", args.MaxEpoch),
		zap.Int("step_per_epoch", args.StepPerEpoch))

	if err := exp.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			l.Info("training interrupted")
			return nil
		}
		return fmt.Errorf("run: %v", err)
	}

	l.Info("training finished")
	return nil
}

// newAgent creates the agent to train in environment e. The agent is
// configured by the agent config file of args if given, otherwise by
// the network and solver arguments.
func newAgent(args config.Args, e env.Environment) (agent.Agent, error) {
	var c agent.Config
	if args.AgentConfig != "" {
		typed, err := agent.LoadTypedConfig(args.AgentConfig)
		if err != nil {
			return nil, fmt.Errorf("newAgent: %v", err)
		}
		c = typed.Config
	} else {
		var err error
		c, err = inac.DefaultConfig(args.HiddenDims, args.LearningRate,
			args.Temperature, args.Discount, args.Tau, args.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("newAgent: %v", err)
		}
	}

	if ic, ok := c.(inac.Config); ok && ic.BatchSize != args.BatchSize {
		return nil, fmt.Errorf("newAgent: agent batch size %v does not "+
			"match batch size %v", ic.BatchSize, args.BatchSize)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newAgent: %v", err)
	}
	a, err := c.CreateAgent(e, args.Seed)
	if err != nil {
		return nil, fmt.Errorf("newAgent: %v", err)
	}
	return a, nil
}
