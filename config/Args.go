// Package config implements the arguments of an offline experiment.
// Arguments have defaults, may be read from a YAML file, and may be
// overridden by command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
	"github.com/samuelfneumann/offlinerl/d4rl"
	"github.com/samuelfneumann/offlinerl/experiment"
)

// Root directories of experiment output
const (
	LogRoot = "./log/inac"
	OutRoot = "./out/inac"
)

// CPU is the only supported device
const CPU = "cpu"

// Args are the arguments of an offline experiment
type Args struct {
	Name            string  `yaml:"name"`
	Agent           string  `yaml:"agent"`
	Quality1        string  `yaml:"quality1"`
	Quality2        string  `yaml:"quality2"`
	Ratio           float64 `yaml:"ratio"`
	NumData         int     `yaml:"num_data"`
	KeepTraj        bool    `yaml:"keep_traj"`
	NormalizeObs    bool    `yaml:"normalize_obs"`
	NormalizeReward bool    `yaml:"normalize_reward"`
	DatasetDir      string  `yaml:"dataset_dir"`

	Seed   uint64 `yaml:"seed"`
	Debug  bool   `yaml:"debug"`
	Device string `yaml:"device"`

	HiddenDims   []int   `yaml:"hidden_dims"`
	Temperature  float64 `yaml:"temperature"`
	Discount     float64 `yaml:"discount"`
	Tau          float64 `yaml:"tau"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`

	// Sampler names how minibatches are drawn from the dataset, one of
	// "uniform" (with replacement) or "shuffle" (sweeps without
	// replacement)
	Sampler string `yaml:"sampler"`

	MaxEpoch     int `yaml:"max_epoch"`
	StepPerEpoch int `yaml:"step_per_epoch"`
	EvalInterval int `yaml:"eval_interval"`
	EvalEpisode  int `yaml:"eval_episode"`
	LogInterval  int `yaml:"log_interval"`
	SaveInterval int `yaml:"save_interval"`

	// AgentConfig is an optional JSON file holding an agent.TypedConfig
	// which replaces the agent configuration built from the arguments
	AgentConfig string `yaml:"agent_config"`
}

// Default returns the default arguments
func Default() Args {
	return Args{
		Name:            "inac",
		Agent:           "hopper",
		Quality1:        d4rl.Expert,
		Quality2:        d4rl.Medium,
		Ratio:           0.01,
		NumData:         1_000_000,
		KeepTraj:        true,
		NormalizeObs:    false,
		NormalizeReward: false,
		DatasetDir:      "./data/d4rl",

		Seed:   0,
		Debug:  false,
		Device: CPU,

		HiddenDims:   []int{256, 256},
		Temperature:  0.01,
		Discount:     0.99,
		Tau:          0.005,
		LearningRate: 3e-4,
		BatchSize:    256,
		Sampler:      expreplay.Uniform,

		MaxEpoch:     1000,
		StepPerEpoch: 1000,
		EvalInterval: 10,
		EvalEpisode:  10,
		LogInterval:  10,
		SaveInterval: 50,
	}
}

// Load reads arguments from the YAML file at path on top of the
// default arguments
func Load(path string) (Args, error) {
	args := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Args{}, fmt.Errorf("load: could not read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &args); err != nil {
		return Args{}, fmt.Errorf("load: could not decode %v: %v", path, err)
	}
	return args, nil
}

// BindFlags registers a flag for each argument in fs, with the current
// values of the arguments as defaults. After fs is parsed, only the
// flags which were set change the arguments.
func (a *Args) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.Name, "name", a.Name, "name of the experiment group")
	fs.StringVar(&a.Agent, "agent", a.Agent, "D4RL agent")
	fs.StringVar(&a.Quality1, "quality1", a.Quality1,
		"quality of the first dataset")
	fs.StringVar(&a.Quality2, "quality2", a.Quality2,
		"quality of the second dataset")
	fs.Float64Var(&a.Ratio, "ratio", a.Ratio,
		"fraction of transitions drawn from the first dataset")
	fs.IntVar(&a.NumData, "num_data", a.NumData,
		"number of transitions in the mixed dataset")
	fs.BoolVar(&a.KeepTraj, "keep_traj", a.KeepTraj,
		"mix whole trajectories instead of transitions")
	fs.BoolVar(&a.NormalizeObs, "normalize_obs", a.NormalizeObs,
		"standardize observations")
	fs.BoolVar(&a.NormalizeReward, "normalize_reward", a.NormalizeReward,
		"scale rewards by the spread of trajectory returns")
	fs.StringVar(&a.DatasetDir, "dataset_dir", a.DatasetDir,
		"directory holding the datasets")

	fs.Uint64Var(&a.Seed, "seed", a.Seed, "random seed")
	fs.BoolVar(&a.Debug, "debug", a.Debug,
		"log only to the terminal")
	fs.StringVar(&a.Device, "device", a.Device, "compute device")

	fs.IntSliceVar(&a.HiddenDims, "hidden_dims", a.HiddenDims,
		"hidden layer sizes of every network")
	fs.Float64Var(&a.Temperature, "temperature", a.Temperature,
		"entropy temperature")
	fs.Float64Var(&a.Discount, "discount", a.Discount, "discount factor")
	fs.Float64Var(&a.Tau, "tau", a.Tau, "target network Polyak rate")
	fs.Float64Var(&a.LearningRate, "learning_rate", a.LearningRate,
		"learning rate of every optimizer")
	fs.IntVar(&a.BatchSize, "batch_size", a.BatchSize, "batch size")
	fs.StringVar(&a.Sampler, "sampler", a.Sampler,
		"minibatch sampler, one of uniform or shuffle")

	fs.IntVar(&a.MaxEpoch, "max_epoch", a.MaxEpoch, "number of epochs")
	fs.IntVar(&a.StepPerEpoch, "step_per_epoch", a.StepPerEpoch,
		"updates per epoch")
	fs.IntVar(&a.EvalInterval, "eval_interval", a.EvalInterval,
		"epochs between evaluations")
	fs.IntVar(&a.EvalEpisode, "eval_episode", a.EvalEpisode,
		"episodes per evaluation")
	fs.IntVar(&a.LogInterval, "log_interval", a.LogInterval,
		"epochs between logging scalars")
	fs.IntVar(&a.SaveInterval, "save_interval", a.SaveInterval,
		"epochs between checkpoints")

	fs.StringVar(&a.AgentConfig, "agent_config", a.AgentConfig,
		"JSON file holding the agent configuration")
}

// Override copies the values of the flags set in fs from src into a
func (a *Args) Override(src Args, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "name":
			a.Name = src.Name
		case "agent":
			a.Agent = src.Agent
		case "quality1":
			a.Quality1 = src.Quality1
		case "quality2":
			a.Quality2 = src.Quality2
		case "ratio":
			a.Ratio = src.Ratio
		case "num_data":
			a.NumData = src.NumData
		case "keep_traj":
			a.KeepTraj = src.KeepTraj
		case "normalize_obs":
			a.NormalizeObs = src.NormalizeObs
		case "normalize_reward":
			a.NormalizeReward = src.NormalizeReward
		case "dataset_dir":
			a.DatasetDir = src.DatasetDir
		case "seed":
			a.Seed = src.Seed
		case "debug":
			a.Debug = src.Debug
		case "device":
			a.Device = src.Device
		case "hidden_dims":
			a.HiddenDims = src.HiddenDims
		case "temperature":
			a.Temperature = src.Temperature
		case "discount":
			a.Discount = src.Discount
		case "tau":
			a.Tau = src.Tau
		case "learning_rate":
			a.LearningRate = src.LearningRate
		case "batch_size":
			a.BatchSize = src.BatchSize
		case "sampler":
			a.Sampler = src.Sampler
		case "max_epoch":
			a.MaxEpoch = src.MaxEpoch
		case "step_per_epoch":
			a.StepPerEpoch = src.StepPerEpoch
		case "eval_interval":
			a.EvalInterval = src.EvalInterval
		case "eval_episode":
			a.EvalEpisode = src.EvalEpisode
		case "log_interval":
			a.LogInterval = src.LogInterval
		case "save_interval":
			a.SaveInterval = src.SaveInterval
		case "agent_config":
			a.AgentConfig = src.AgentConfig
		}
	})
}

// Validate returns an error if the arguments are invalid
func (a Args) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("validate: name must not be empty")
	}
	if err := a.MixConfig().Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := a.ExperimentConfig().Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if strings.ToLower(a.Device) != CPU {
		return fmt.Errorf("validate: unsupported device %v, only %v is "+
			"supported", a.Device, CPU)
	}

	if len(a.HiddenDims) == 0 {
		return fmt.Errorf("validate: at least one hidden layer is required")
	}
	for _, h := range a.HiddenDims {
		if h < 1 {
			return fmt.Errorf("validate: hidden dims must be positive but "+
				"got %v", a.HiddenDims)
		}
	}
	if a.Temperature <= 0 {
		return fmt.Errorf("validate: temperature must be positive but got %v",
			a.Temperature)
	}
	if a.Discount < 0 || a.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] but got %v",
			a.Discount)
	}
	if a.Tau <= 0 || a.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] but got %v", a.Tau)
	}
	if a.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive but "+
			"got %v", a.LearningRate)
	}
	if a.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive but got %v",
			a.BatchSize)
	}
	if _, err := expreplay.NewSelector(a.Sampler, 0); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// Task returns the name of the task, which identifies the dataset
func (a Args) Task() string {
	return strings.Join([]string{
		"mixed",
		a.Agent,
		a.Quality1,
		a.Quality2,
		formatRatio(a.Ratio),
	}, "-")
}

// ExpName returns the name of the experiment, which identifies the
// task and seed
func (a Args) ExpName() string {
	return fmt.Sprintf("%v_seed%v", a.Task(), a.Seed)
}

// LogDir returns the directory that logs are written to
func (a Args) LogDir() string {
	return filepath.Join(LogRoot, a.Name)
}

// PolicyDir returns the directory that policy checkpoints are written
// to
func (a Args) PolicyDir() string {
	return filepath.Join(OutRoot, a.Name, a.Task(),
		fmt.Sprintf("seed%v", a.Seed), "policy")
}

// MixConfig returns the configuration of the mixed dataset
func (a Args) MixConfig() d4rl.MixConfig {
	return d4rl.MixConfig{
		Agent:           a.Agent,
		Quality1:        a.Quality1,
		Quality2:        a.Quality2,
		Ratio:           a.Ratio,
		NumData:         a.NumData,
		KeepTraj:        a.KeepTraj,
		NormalizeObs:    a.NormalizeObs,
		NormalizeReward: a.NormalizeReward,
		DatasetDir:      a.DatasetDir,
	}
}

// ExperimentConfig returns the configuration of the training loop
func (a Args) ExperimentConfig() experiment.Config {
	return experiment.Config{
		MaxEpoch:     a.MaxEpoch,
		StepPerEpoch: a.StepPerEpoch,
		EvalInterval: a.EvalInterval,
		EvalEpisodes: a.EvalEpisode,
		LogInterval:  a.LogInterval,
		SaveInterval: a.SaveInterval,
		Agent:        a.Agent,
		Seed:         a.Seed,
	}
}

// formatRatio formats a ratio so that whole numbers keep a decimal
// point, e.g. 1 is formatted as 1.0
func formatRatio(ratio float64) string {
	s := strconv.FormatFloat(ratio, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
