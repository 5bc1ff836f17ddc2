// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/samuelfneumann/offlinerl/buffer/expreplay"
)

// Experiment outlines structs that can run experiments. The Run()
// method runs the experiment until it is finished or ctx is cancelled.
type Experiment interface {
	Run(ctx context.Context) error
}

// Logger logs messages and scalar metrics generated during an
// experiment
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)

	// LogScalars logs each scalar under the tag mainTag/name, or name
	// if mainTag is empty
	LogScalars(mainTag string, scalars map[string]float64, step int) error
}

// Sampler samples batches of transitions to learn from
type Sampler interface {
	Sample() (expreplay.Batch, error)
}

// Config represents a configuration of an offline experiment. Every
// interval is measured in epochs.
type Config struct {
	MaxEpoch     int
	StepPerEpoch int
	EvalInterval int
	EvalEpisodes int
	LogInterval  int
	SaveInterval int

	// Agent is the name of the D4RL agent being learned, used to
	// normalize evaluation scores
	Agent string
	Seed  uint64
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	values := []struct {
		name  string
		value int
	}{
		{"max epoch", c.MaxEpoch},
		{"steps per epoch", c.StepPerEpoch},
		{"eval interval", c.EvalInterval},
		{"eval episodes", c.EvalEpisodes},
		{"log interval", c.LogInterval},
		{"save interval", c.SaveInterval},
	}
	for _, v := range values {
		if v.value < 1 {
			return fmt.Errorf("validate: %v must be positive but got %v",
				v.name, v.value)
		}
	}
	return nil
}
