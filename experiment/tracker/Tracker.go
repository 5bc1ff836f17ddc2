// Package tracker implements Trackers, which track and save metrics
// generated during an experiment
package tracker

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Interface Tracker keeps track of experiment metrics and saves them
// after the experiment has finished
type Tracker interface {
	Track(epoch int, metrics map[string]float64)
	Save() error
}

// Data is the data saved by a Metrics tracker. Values[name][i] is the
// value of metric name at epoch Epochs[i], or NaN if the metric was
// not recorded at that epoch.
type Data struct {
	Epochs []int
	Values map[string][]float64
}

// Metrics tracks every metric it is given and saves them to a file
type Metrics struct {
	filename string
	data     Data
}

// NewMetrics returns a new Metrics tracker which saves to filename
func NewMetrics(filename string) *Metrics {
	return &Metrics{
		filename: filename,
		data:     Data{Values: make(map[string][]float64)},
	}
}

// Track records the metrics of an epoch
func (m *Metrics) Track(epoch int, metrics map[string]float64) {
	n := len(m.data.Epochs)
	m.data.Epochs = append(m.data.Epochs, epoch)

	for name, value := range metrics {
		if _, ok := m.data.Values[name]; !ok {
			m.data.Values[name] = nans(n)
		}
		m.data.Values[name] = append(m.data.Values[name], value)
	}

	// Metrics that were not given at this epoch
	for name, values := range m.data.Values {
		if len(values) == n {
			m.data.Values[name] = append(values, math.NaN())
		}
	}
}

// Data returns the tracked data
func (m *Metrics) Data() Data {
	return m.data
}

// Save gob encodes the tracked data to the tracker's file
func (m *Metrics) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.filename), 0o755); err != nil {
		return fmt.Errorf("save: could not create directory: %v", err)
	}

	file, err := os.Create(m.filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}

	if err := gob.NewEncoder(file).Encode(m.data); err != nil {
		file.Close()
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return file.Close()
}

// LoadData loads and returns the data saved by a Metrics tracker
func LoadData(filename string) (Data, error) {
	file, err := os.Open(filename)
	if err != nil {
		return Data{}, fmt.Errorf("loadData: could not open data file: %v",
			err)
	}
	defer file.Close()

	var data Data
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return Data{}, fmt.Errorf("loadData: could not decode data: %v", err)
	}
	return data, nil
}

// nans returns a slice of n NaNs
func nans(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
