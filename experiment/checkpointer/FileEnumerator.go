package checkpointer

import (
	"fmt"
	"path/filepath"
)

// EpochFilename returns a function which returns the filename
// dir/<name>_<epoch><extension> for an epoch. For example,
//
//	EpochFilename("out", "policy", ".gob")(50)
//
// returns out/policy_50.gob.
func EpochFilename(dir, name, extension string) func(int) string {
	return func(epoch int) string {
		return filepath.Join(dir, fmt.Sprintf("%v_%v%v", name, epoch,
			extension))
	}
}
