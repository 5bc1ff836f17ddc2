package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestNames(t *testing.T) {
	args := Default()
	args.Name = "run"
	args.Agent = "walker2d"
	args.Quality1 = "medium-replay"
	args.Quality2 = "random"
	args.Seed = 3

	tests := []struct {
		ratio float64
		task  string
	}{
		{0.01, "mixed-walker2d-medium-replay-random-0.01"},
		{1, "mixed-walker2d-medium-replay-random-1.0"},
		{0, "mixed-walker2d-medium-replay-random-0.0"},
		{0.5, "mixed-walker2d-medium-replay-random-0.5"},
	}
	for _, test := range tests {
		args.Ratio = test.ratio
		assert.Equal(t, test.task, args.Task())
		assert.Equal(t, test.task+"_seed3", args.ExpName())
		assert.Equal(t, filepath.Join("log", "inac", "run"), args.LogDir())
		assert.Equal(t,
			filepath.Join("out", "inac", "run", test.task, "seed3", "policy"),
			args.PolicyDir())
	}
}

func TestLoadAndOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
name: sweep
agent: halfcheetah
ratio: 0.1
hidden_dims: [64, 64, 64]
debug: true
seed: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sweep", loaded.Name)
	assert.Equal(t, "halfcheetah", loaded.Agent)
	assert.Equal(t, []int{64, 64, 64}, loaded.HiddenDims)
	assert.True(t, loaded.Debug)

	// Unset values keep their defaults
	assert.Equal(t, Default().BatchSize, loaded.BatchSize)
	assert.Equal(t, "uniform", loaded.Sampler)
	assert.Equal(t, Default().Quality1, loaded.Quality1)

	flags := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--seed=4",
		"--hidden_dims=32,32",
		"--keep_traj=false",
		"--sampler=shuffle",
	}))

	loaded.Override(flags, fs)
	assert.Equal(t, uint64(4), loaded.Seed)
	assert.Equal(t, []int{32, 32}, loaded.HiddenDims)
	assert.False(t, loaded.KeepTraj)
	assert.Equal(t, "shuffle", loaded.Sampler)

	// Flags which were not set do not override the file
	assert.Equal(t, "halfcheetah", loaded.Agent)
	assert.Equal(t, 0.1, loaded.Ratio)
	assert.True(t, loaded.Debug)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ratio: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Args){
		"empty name":       func(a *Args) { a.Name = "" },
		"unknown agent":    func(a *Args) { a.Agent = "ant" },
		"unknown quality":  func(a *Args) { a.Quality2 = "perfect" },
		"ratio":            func(a *Args) { a.Ratio = 1.5 },
		"num data":         func(a *Args) { a.NumData = 0 },
		"device":           func(a *Args) { a.Device = "cuda" },
		"no hidden layers": func(a *Args) { a.HiddenDims = nil },
		"hidden dim":       func(a *Args) { a.HiddenDims = []int{64, 0} },
		"temperature":      func(a *Args) { a.Temperature = 0 },
		"discount":         func(a *Args) { a.Discount = 1.1 },
		"tau":              func(a *Args) { a.Tau = 0 },
		"learning rate":    func(a *Args) { a.LearningRate = -1 },
		"batch size":       func(a *Args) { a.BatchSize = 0 },
		"sampler":          func(a *Args) { a.Sampler = "prioritized" },
		"max epoch":        func(a *Args) { a.MaxEpoch = 0 },
		"eval interval":    func(a *Args) { a.EvalInterval = -1 },
	}

	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			args := Default()
			modify(&args)
			assert.Error(t, args.Validate())
		})
	}
}
