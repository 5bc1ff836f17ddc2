package d4rl

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	env "github.com/samuelfneumann/offlinerl/environment"
	"github.com/samuelfneumann/offlinerl/environment/envconfig"
	"github.com/samuelfneumann/offlinerl/environment/wrappers"
)

// Dataset qualities
const (
	Random       string = "random"
	Medium       string = "medium"
	MediumReplay string = "medium-replay"
	MediumExpert string = "medium-expert"
	Expert       string = "expert"
)

// Qualities returns the known dataset qualities
func Qualities() []string {
	return []string{Random, Medium, MediumReplay, MediumExpert, Expert}
}

// ValidQuality returns whether quality is a known dataset quality
func ValidQuality(quality string) bool {
	for _, q := range Qualities() {
		if q == strings.ToLower(quality) {
			return true
		}
	}
	return false
}

// DatasetName returns the name of the dataset of agent with the given
// quality
func DatasetName(agent, quality string) string {
	return fmt.Sprintf("%v-%v-v2", strings.ToLower(agent),
		strings.ToLower(quality))
}

// MixConfig describes how a dataset is mixed from two qualities of
// datasets of the same agent
type MixConfig struct {
	Agent           string
	Quality1        string
	Quality2        string
	Ratio           float64
	NumData         int
	KeepTraj        bool
	NormalizeObs    bool
	NormalizeReward bool
	DatasetDir      string
}

// Validate returns an error if the MixConfig is invalid
func (m MixConfig) Validate() error {
	if !envconfig.Valid(m.Agent) {
		return fmt.Errorf("validate: unknown agent %v", m.Agent)
	}
	for _, q := range []string{m.Quality1, m.Quality2} {
		if !ValidQuality(q) {
			return fmt.Errorf("validate: unknown quality %v", q)
		}
	}
	if m.Ratio < 0 || m.Ratio > 1 {
		return fmt.Errorf("validate: ratio must be in [0, 1] but got %v",
			m.Ratio)
	}
	if m.NumData < 1 {
		return fmt.Errorf("validate: num data must be positive but got %v",
			m.NumData)
	}
	return nil
}

// MixedMujoco loads the two datasets described by cfg, mixes them, and
// normalizes the result as requested. The environment that the
// datasets were collected in is also returned; if observations are
// normalized, so are the observations of the environment.
func MixedMujoco(cfg MixConfig, seed uint64, logger *zap.Logger) (
	env.Environment, *Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("mixedMujoco: %v", err)
	}

	names := []string{
		DatasetName(cfg.Agent, cfg.Quality1),
		DatasetName(cfg.Agent, cfg.Quality2),
	}
	datasets := make([]*Dataset, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			d, err := Load(cfg.DatasetDir, name)
			if err != nil {
				return err
			}
			datasets[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("mixedMujoco: %v", err)
	}

	n1, n2 := Quotas(cfg.NumData, cfg.Ratio)
	for i, quota := range []int{n1, n2} {
		if quota > datasets[i].Len() {
			logger.Warn("quota exceeds dataset size, using entire dataset",
				zap.String("dataset", names[i]),
				zap.Int("quota", quota),
				zap.Int("size", datasets[i].Len()))
		}
	}

	rng := rand.New(rand.NewSource(seed))
	mixed, err := Mix(datasets[0], datasets[1], cfg.NumData, cfg.Ratio,
		cfg.KeepTraj, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("mixedMujoco: %v", err)
	}

	if cfg.NormalizeReward {
		scale := NormalizeReward(mixed)
		logger.Debug("normalized rewards", zap.Float64("scale", scale))
	}
	var mean, std []float64
	if cfg.NormalizeObs {
		mean, std = NormalizeObs(mixed)
	}

	e, _, err := envconfig.Create(cfg.Agent, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("mixedMujoco: %v", err)
	}
	if cfg.NormalizeObs {
		e, err = wrappers.NewNormalizeObs(e, mean, std)
		if err != nil {
			return nil, nil, fmt.Errorf("mixedMujoco: %v", err)
		}
	}

	logger.Info("loaded mixed dataset",
		zap.Strings("datasets", names),
		zap.Int("transitions", mixed.Len()),
		zap.Int("trajectories", len(mixed.Trajectories())))

	return e, mixed, nil
}
