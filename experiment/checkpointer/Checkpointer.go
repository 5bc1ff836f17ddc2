// Package checkpointer implements checkpointing of serializable
// objects, such as agents, during an experiment
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints/saves serializable objects based on the
// current epoch of an experiment
type Checkpointer interface {
	Checkpoint(epoch int) error
}

// Save gob encodes object to the file filename, creating its directory
// if needed
func Save(object Serializable, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("save: could not create directory: %v", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %v", err)
	}

	if err := gob.NewEncoder(file).Encode(object); err != nil {
		file.Close()
		return fmt.Errorf("save: could not encode %T: %v", object, err)
	}
	return file.Close()
}

// Load decodes the gob encoded file filename into object
func Load(object Serializable, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(object); err != nil {
		return fmt.Errorf("load: could not decode %v: %v", filename, err)
	}
	return nil
}
