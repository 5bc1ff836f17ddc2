package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/samuelfneumann/offlinerl/agent"
	"github.com/samuelfneumann/offlinerl/config"
	"github.com/samuelfneumann/offlinerl/d4rl"
	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/environment/envconfig"
	"github.com/samuelfneumann/offlinerl/experiment/checkpointer"
	"github.com/samuelfneumann/offlinerl/logger"
)

// collectArgs are the arguments of the collect command
type collectArgs struct {
	agent   config.Args
	quality string
	steps   int
	policy  string
}

// newCollectCmd returns the command which collects a dataset in an
// environment
func newCollectCmd() *cobra.Command {
	c := collectArgs{agent: config.Default()}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect a dataset in the environment of an agent",
		Long: `Collects transitions in the environment of an agent and saves them as
the dataset <dataset_dir>/<agent>-<quality>-v2. Actions are uniformly
random unless --policy gives a checkpoint of a trained agent, which is
then created from the network arguments and acts greedily.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return collect(c, cmd)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&c.agent.Agent, "agent", c.agent.Agent, "D4RL agent")
	fs.StringVar(&c.agent.DatasetDir, "dataset_dir", c.agent.DatasetDir,
		"directory to save the dataset in")
	fs.Uint64Var(&c.agent.Seed, "seed", c.agent.Seed, "random seed")
	fs.IntSliceVar(&c.agent.HiddenDims, "hidden_dims", c.agent.HiddenDims,
		"hidden layer sizes of the agent's networks")
	fs.IntVar(&c.agent.BatchSize, "batch_size", c.agent.BatchSize,
		"batch size of the agent")
	fs.StringVar(&c.agent.AgentConfig, "agent_config", c.agent.AgentConfig,
		"JSON file holding the agent configuration")
	fs.StringVar(&c.quality, "quality", d4rl.Random,
		"quality to name the dataset with")
	fs.IntVar(&c.steps, "steps", 100_000, "number of transitions")
	fs.StringVar(&c.policy, "policy", "", "checkpoint of the acting agent")

	return cmd
}

// collect collects and saves the dataset described by c
func collect(c collectArgs, cmd *cobra.Command) (err error) {
	if !envconfig.Valid(c.agent.Agent) {
		return fmt.Errorf("collect: unknown agent %v", c.agent.Agent)
	}
	if !d4rl.ValidQuality(c.quality) {
		return fmt.Errorf("collect: unknown quality %v", c.quality)
	}

	l, err := logger.New(logger.Options{Terminal: cmd.OutOrStdout()})
	if err != nil {
		return fmt.Errorf("collect: %v", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(l))

	e, _, err := envconfig.Create(c.agent.Agent, c.agent.Seed)
	if err != nil {
		return fmt.Errorf("collect: %v", err)
	}
	if closer, ok := e.(env.Closer); ok {
		defer multierr.AppendInvoke(&err, multierr.Close(closer))
	}

	var actor d4rl.Actor = d4rl.NewUniformActor(e.ActionSpec(), c.agent.Seed)
	if c.policy != "" {
		a, loadErr := loadAgent(c.agent, e, c.policy)
		if loadErr != nil {
			return fmt.Errorf("collect: %v", loadErr)
		}
		if closer, ok := a.(agent.Closer); ok {
			defer multierr.AppendInvoke(&err, multierr.Close(closer))
		}
		actor = a
	}

	dataset, err := d4rl.Collect(e, actor, c.steps)
	if err != nil {
		return fmt.Errorf("collect: %v", err)
	}

	name := d4rl.DatasetName(c.agent.Agent, c.quality)
	if err := dataset.Save(filepath.Join(c.agent.DatasetDir, name)); err != nil {
		return fmt.Errorf("collect: %v", err)
	}

	l.Info("collected dataset",
		zap.String("dataset", name),
		zap.Int("transitions", dataset.Len()),
		zap.Int("trajectories", len(dataset.Trajectories())),
		zap.Float64s("returns", dataset.Returns()))
	return nil
}

// loadAgent creates an agent in environment e from args and loads the
// checkpoint at path into it. The agent is returned in evaluation mode.
func loadAgent(args config.Args, e env.Environment, path string) (agent.Agent,
	error) {
	a, err := newAgent(args, e)
	if err != nil {
		return nil, fmt.Errorf("loadAgent: %v", err)
	}

	serializable, ok := a.(checkpointer.Serializable)
	if !ok {
		return nil, fmt.Errorf("loadAgent: agent %T cannot be loaded", a)
	}
	if err := checkpointer.Load(serializable, path); err != nil {
		return nil, fmt.Errorf("loadAgent: %v", err)
	}

	a.Eval()
	return a, nil
}
