package checkpointer

import "fmt"

// nStep implements checkpointing every N epochs
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the filename of the file to save the object in
	// at an epoch. Use EpochFilename to save each checkpoint to a
	// separate file named by its epoch.
	filename func(epoch int) string
}

// NewNStep returns a checkpointer that checkpoints every n epochs.
func NewNStep(n int, object Serializable,
	filename func(epoch int) string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be positive but "+
			"got %v", n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the Checkpointer's tracked object if epoch is a
// multiple of the checkpointing interval
func (n *nStep) Checkpoint(epoch int) error {
	if epoch%n.interval == 0 {
		if err := Save(n.object, n.filename(epoch)); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}
