package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// CSV is a ScalarWriter which writes one step,tag,value row per scalar
// to a CSV file
type CSV struct {
	f *os.File
	w *csv.Writer
}

// NewCSV creates the CSV file path and writes its header
func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("newCSV: could not create file: %v", err)
	}

	c := &CSV{f: f, w: csv.NewWriter(f)}
	if err := c.write([]string{"step", "tag", "value"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("newCSV: %v", err)
	}
	return c, nil
}

// WriteScalars writes the scalars in order of their tags
func (c *CSV) WriteScalars(step int, scalars map[string]float64) error {
	tags := make([]string, 0, len(scalars))
	for tag := range scalars {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		value := strconv.FormatFloat(scalars[tag], 'g', -1, 64)
		if err := c.write([]string{strconv.Itoa(step), tag, value}); err != nil {
			return fmt.Errorf("writeScalars: %v", err)
		}
	}
	return nil
}

// Close closes the file
func (c *CSV) Close() error {
	return c.f.Close()
}

// write writes a single row and flushes it to the file
func (c *CSV) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
