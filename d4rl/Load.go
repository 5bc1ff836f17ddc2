package d4rl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
)

// Names of the fields of a dataset. Each field is stored in the file
// <field>.npy.
const (
	ObservationsField     = "observations"
	ActionsField          = "actions"
	NextObservationsField = "next_observations"
	RewardsField          = "rewards"
	TerminalsField        = "terminals"
	TimeoutsField         = "timeouts"
)

var fields = []string{
	ObservationsField,
	ActionsField,
	NextObservationsField,
	RewardsField,
	TerminalsField,
	TimeoutsField,
}

// Load loads the dataset stored in the directory dir/name. Each field of
// the dataset is read concurrently from its .npy file. Arrays may be
// stored as float32, float64, or bool.
func Load(dir, name string) (*Dataset, error) {
	path := filepath.Join(dir, name)

	tensors := make(map[string]*tensor.Dense, len(fields))
	results := make([]*tensor.Dense, len(fields))

	var g errgroup.Group
	for i, field := range fields {
		i, field := i, field
		g.Go(func() error {
			t, err := readNpy(filepath.Join(path, field+".npy"))
			if err != nil {
				return fmt.Errorf("could not read %v: %v", field, err)
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load: dataset %v: %v", name, err)
	}
	for i, field := range fields {
		tensors[field] = results[i]
	}

	d, err := fromTensors(tensors)
	if err != nil {
		return nil, fmt.Errorf("load: dataset %v: %v", name, err)
	}
	return d, nil
}

// Save writes each field of the dataset to its own .npy file in the
// directory dir, which is created if needed.
func (d *Dataset) Save(dir string) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save: could not create directory %v: %v", dir, err)
	}

	n := d.Len()
	tensors := map[string]*tensor.Dense{
		ObservationsField: tensor.New(tensor.WithShape(n, d.ObsDim),
			tensor.WithBacking(clone(d.Observations))),
		ActionsField: tensor.New(tensor.WithShape(n, d.ActDim),
			tensor.WithBacking(clone(d.Actions))),
		NextObservationsField: tensor.New(tensor.WithShape(n, d.ObsDim),
			tensor.WithBacking(clone(d.NextObservations))),
		RewardsField: tensor.New(tensor.WithShape(n),
			tensor.WithBacking(clone(d.Rewards))),
		TerminalsField: tensor.New(tensor.WithShape(n),
			tensor.WithBacking(append([]bool{}, d.Terminals...))),
		TimeoutsField: tensor.New(tensor.WithShape(n),
			tensor.WithBacking(append([]bool{}, d.Timeouts...))),
	}

	var g errgroup.Group
	for field, t := range tensors {
		field, t := field, t
		g.Go(func() error {
			return writeNpy(filepath.Join(dir, field+".npy"), t)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// fromTensors constructs a Dataset from the tensors of each field,
// validating their shapes
func fromTensors(tensors map[string]*tensor.Dense) (*Dataset, error) {
	obs := tensors[ObservationsField]
	if obs.Dims() != 2 {
		return nil, fmt.Errorf("observations must be a matrix but got "+
			"shape %v", obs.Shape())
	}
	n, obsDim := obs.Shape()[0], obs.Shape()[1]

	actions := tensors[ActionsField]
	if actions.Dims() != 2 || actions.Shape()[0] != n {
		return nil, fmt.Errorf("actions must have shape (%v, k) but got "+
			"shape %v", n, actions.Shape())
	}

	nextObs := tensors[NextObservationsField]
	if !nextObs.Shape().Eq(obs.Shape()) {
		return nil, fmt.Errorf("next_observations must have shape %v but "+
			"got shape %v", obs.Shape(), nextObs.Shape())
	}

	for _, field := range []string{RewardsField, TerminalsField,
		TimeoutsField} {
		if !isColumn(tensors[field], n) {
			return nil, fmt.Errorf("%v must have shape (%v) or (%v, 1) but "+
				"got shape %v", field, n, n, tensors[field].Shape())
		}
	}

	d := &Dataset{ObsDim: obsDim, ActDim: actions.Shape()[1]}
	var err error
	if d.Observations, err = floatsOf(obs); err != nil {
		return nil, fmt.Errorf("observations: %v", err)
	}
	if d.Actions, err = floatsOf(actions); err != nil {
		return nil, fmt.Errorf("actions: %v", err)
	}
	if d.NextObservations, err = floatsOf(nextObs); err != nil {
		return nil, fmt.Errorf("next_observations: %v", err)
	}
	if d.Rewards, err = floatsOf(tensors[RewardsField]); err != nil {
		return nil, fmt.Errorf("rewards: %v", err)
	}
	if d.Terminals, err = boolsOf(tensors[TerminalsField]); err != nil {
		return nil, fmt.Errorf("terminals: %v", err)
	}
	if d.Timeouts, err = boolsOf(tensors[TimeoutsField]); err != nil {
		return nil, fmt.Errorf("timeouts: %v", err)
	}

	return d, d.Validate()
}

// isColumn returns whether t has shape (n) or (n, 1)
func isColumn(t *tensor.Dense, n int) bool {
	s := t.Shape()
	switch t.Dims() {
	case 1:
		return s[0] == n
	case 2:
		return s[0] == n && s[1] == 1
	}
	return false
}

// floatsOf returns a copy of the data of t as float64
func floatsOf(t *tensor.Dense) ([]float64, error) {
	switch data := t.Data().(type) {
	case []float64:
		return clone(data), nil

	case []float32:
		f := make([]float64, len(data))
		for i, v := range data {
			f[i] = float64(v)
		}
		return f, nil

	case []bool:
		f := make([]float64, len(data))
		for i, v := range data {
			if v {
				f[i] = 1.0
			}
		}
		return f, nil
	}
	return nil, fmt.Errorf("unsupported dtype %v", t.Dtype())
}

// boolsOf returns a copy of the data of t as bool. Floating point
// values are true if non-zero.
func boolsOf(t *tensor.Dense) ([]bool, error) {
	switch data := t.Data().(type) {
	case []bool:
		return append([]bool{}, data...), nil

	case []float64:
		b := make([]bool, len(data))
		for i, v := range data {
			b[i] = v != 0
		}
		return b, nil

	case []float32:
		b := make([]bool, len(data))
		for i, v := range data {
			b[i] = v != 0
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported dtype %v", t.Dtype())
}

// readNpy reads a tensor from a .npy file
func readNpy(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	t := new(tensor.Dense)
	if err := t.ReadNpy(r); err != nil {
		return nil, err
	}
	if t.Dtype() != tensor.Bool {
		return t, nil
	}

	// ReadNpy parses the header of a bool array but leaves its data
	// unread, one byte per element
	raw := make([]byte, t.Shape().TotalSize())
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("could not read bool data: %v", err)
	}
	data := make([]bool, len(raw))
	for i, b := range raw {
		data[i] = b != 0
	}
	return tensor.New(tensor.WithShape(t.Shape().Clone()...),
		tensor.WithBacking(data)), nil
}

// writeNpy writes a tensor to a .npy file
func writeNpy(path string, t *tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := t.WriteNpy(w); err != nil {
		f.Close()
		return fmt.Errorf("could not write %v: %v", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("could not write %v: %v", path, err)
	}
	return f.Close()
}
