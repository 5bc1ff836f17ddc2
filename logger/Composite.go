// Package logger implements a composite experiment logger which fans
// messages and scalar metrics out to several backends: the terminal,
// a JSON log file, a CSV file of scalars, and an SQLite run tracker.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Files written in the experiment directory
const (
	LogFile     = "output.log"
	ScalarsFile = "scalars.csv"
	TrackerFile = "runs.db"
)

// ScalarWriter is a backend which records scalar metrics
type ScalarWriter interface {
	WriteScalars(step int, scalars map[string]float64) error
	Close() error
}

// Options configures a Composite logger
type Options struct {
	// Dir is the directory holding the tracker database. Files of the
	// experiment are written to Dir/Name.
	Dir  string
	Name string

	// Activate activates the file, scalar, and tracker backends. The
	// terminal backend is always active.
	Activate bool

	// Terminal is written to by the terminal backend, os.Stdout if nil
	Terminal io.Writer
}

// Composite logs messages through zap to the terminal and a log file,
// and scalars to each activated ScalarWriter
type Composite struct {
	name    string
	logger  *zap.Logger
	logFile *os.File
	scalars []ScalarWriter
	tracker *Tracker
}

// New returns a new Composite logger
func New(opts Options) (*Composite, error) {
	terminal := opts.Terminal
	if terminal == nil {
		terminal = os.Stdout
	}
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(zapcore.AddSync(terminal)),
			zapcore.DebugLevel,
		),
	}

	c := &Composite{name: opts.Name}
	if opts.Activate {
		expDir := filepath.Join(opts.Dir, opts.Name)
		if err := os.MkdirAll(expDir, 0o755); err != nil {
			return nil, fmt.Errorf("new: could not create log directory: %v",
				err)
		}

		f, err := os.OpenFile(filepath.Join(expDir, LogFile),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("new: could not open log file: %v", err)
		}
		c.logFile = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.InfoLevel,
		))

		csv, err := NewCSV(filepath.Join(expDir, ScalarsFile))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("new: %v", err)
		}

		tracker, err := NewTracker(filepath.Join(opts.Dir, TrackerFile),
			opts.Name)
		if err != nil {
			f.Close()
			csv.Close()
			return nil, fmt.Errorf("new: %v", err)
		}
		c.tracker = tracker
		c.scalars = []ScalarWriter{csv, tracker}
	}

	c.logger = zap.New(zapcore.NewTee(cores...)).Named(opts.Name)
	return c, nil
}

// Logger returns the zap Logger writing to the terminal and log file
func (c *Composite) Logger() *zap.Logger {
	return c.logger
}

// Info logs a message with structured fields
func (c *Composite) Info(msg string, fields ...zap.Field) {
	c.logger.Info(msg, fields...)
}

// Warn logs a warning with structured fields
func (c *Composite) Warn(msg string, fields ...zap.Field) {
	c.logger.Warn(msg, fields...)
}

// LogScalars logs each scalar to every scalar backend under the tag
// mainTag/name, or name if mainTag is empty. A failing backend does
// not stop the others; all failures are returned together.
func (c *Composite) LogScalars(mainTag string, scalars map[string]float64,
	step int) error {
	tagged := make(map[string]float64, len(scalars))
	for name, value := range scalars {
		tagged[Tag(mainTag, name)] = value
	}

	var err error
	for _, w := range c.scalars {
		err = multierr.Append(err, w.WriteScalars(step, tagged))
	}
	if err != nil {
		return fmt.Errorf("logScalars: %v", err)
	}
	return nil
}

// LogConfig logs the configuration of the experiment, and records it
// with the run tracker if active
func (c *Composite) LogConfig(config interface{}) error {
	c.logger.Info("config", zap.Any("config", config))
	if c.tracker == nil {
		return nil
	}

	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("logConfig: could not encode config: %v", err)
	}
	if err := c.tracker.SetConfig(data); err != nil {
		return fmt.Errorf("logConfig: %v", err)
	}
	return nil
}

// Close flushes and closes every backend
func (c *Composite) Close() error {
	// Syncing a terminal can fail spuriously
	_ = c.logger.Sync()

	var err error
	for _, w := range c.scalars {
		err = multierr.Append(err, w.Close())
	}
	if c.logFile != nil {
		err = multierr.Append(err, c.logFile.Close())
	}
	return err
}

// Tag returns the tag of a scalar name under mainTag
func Tag(mainTag, name string) string {
	if mainTag == "" {
		return name
	}
	return mainTag + "/" + name
}
