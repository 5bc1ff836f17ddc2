package logger

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTag(t *testing.T) {
	assert.Equal(t, "loss", Tag("", "loss"))
	assert.Equal(t, "Eval/return_mean", Tag("Eval", "return_mean"))
}

func TestCompositeActive(t *testing.T) {
	dir := t.TempDir()
	var terminal bytes.Buffer

	l, err := New(Options{
		Dir:      dir,
		Name:     "exp",
		Activate: true,
		Terminal: &terminal,
	})
	require.NoError(t, err)

	l.Info("hello", zap.Int("epoch", 3))
	require.NoError(t, l.LogScalars("", map[string]float64{
		"loss/q": 1.5,
		"misc/v": -2,
	}, 1))
	require.NoError(t, l.LogScalars("Eval", map[string]float64{
		"return_mean": 10,
	}, 2))
	require.NoError(t, l.LogConfig(map[string]interface{}{"seed": 7}))

	config, err := l.tracker.Config()
	require.NoError(t, err)
	assert.JSONEq(t, `{"seed": 7}`, config)

	points, err := l.tracker.Scalars("Eval/return_mean")
	require.NoError(t, err)
	assert.Equal(t, []Point{{Step: 2, Value: 10}}, points)

	require.NoError(t, l.Close())

	assert.Contains(t, terminal.String(), "hello")

	logged, err := os.ReadFile(filepath.Join(dir, "exp", LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logged), `"msg":"hello"`)
	assert.Contains(t, string(logged), `"epoch":3`)

	f, err := os.Open(filepath.Join(dir, "exp", ScalarsFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"step", "tag", "value"},
		{"1", "loss/q", "1.5"},
		{"1", "misc/v", "-2"},
		{"2", "Eval/return_mean", "10"},
	}, rows)

	assert.FileExists(t, filepath.Join(dir, TrackerFile))
}

func TestCompositeInactive(t *testing.T) {
	dir := t.TempDir()
	var terminal bytes.Buffer

	l, err := New(Options{Dir: dir, Name: "debug", Terminal: &terminal})
	require.NoError(t, err)

	l.Info("only terminal")
	require.NoError(t, l.LogScalars("", map[string]float64{"x": 1}, 0))
	require.NoError(t, l.LogConfig(struct{ Seed int }{1}))
	require.NoError(t, l.Close())

	assert.Contains(t, terminal.String(), "only terminal")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrackerSharedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TrackerFile)

	first, err := NewTracker(path, "a")
	require.NoError(t, err)
	defer first.Close()
	second, err := NewTracker(path, "b")
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.RunID(), second.RunID())

	require.NoError(t, first.WriteScalars(0, map[string]float64{"x": 1}))
	require.NoError(t, first.WriteScalars(5, map[string]float64{"x": 2}))
	require.NoError(t, second.WriteScalars(0, map[string]float64{"x": 3}))

	points, err := first.Scalars("x")
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 1}, {5, 2}}, points)

	points, err = second.Scalars("x")
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 3}}, points)

	config, err := second.Config()
	require.NoError(t, err)
	assert.Equal(t, "{}", config)
}

func TestLogScalarsNaN(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Name: "exp", Activate: true,
		Terminal: &bytes.Buffer{}})
	require.NoError(t, err)

	require.NoError(t, l.LogScalars("", map[string]float64{
		"loss/critic_q": math.NaN(),
		"loss/actor":    0.5,
	}, 1))

	points, err := l.tracker.Scalars("loss/critic_q")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, math.IsNaN(points[0].Value))

	points, err = l.tracker.Scalars("loss/actor")
	require.NoError(t, err)
	assert.Equal(t, []Point{{1, 0.5}}, points)

	require.NoError(t, l.Close())
}
