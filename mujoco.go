//go:build !nomujoco

package main

// The MuJoCo environments need Python through cgo. Build with
// -tags nomujoco to train and collect on the pendulum only.
import _ "github.com/samuelfneumann/offlinerl/environment/gym"
