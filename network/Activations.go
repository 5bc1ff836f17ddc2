package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

type activationFn func(x *G.Node) (*G.Node, error)

// activationFns maps the name of each supported activation to its
// function
var activationFns = map[string]activationFn{
	"relu":     G.Rectify,
	"tanh":     G.Tanh,
	"sigmoid":  G.Sigmoid,
	"identity": func(x *G.Node) (*G.Node, error) { return x, nil },
}

// Activation is a named activation function. Activations are encoded
// as their names, as text for JSON and as bytes for gob.
type Activation struct {
	name string
	f    activationFn
}

func activationNamed(name string) (*Activation, error) {
	f, ok := activationFns[name]
	if !ok {
		return nil, fmt.Errorf("no activation named %q", name)
	}
	return &Activation{name: name, f: f}, nil
}

func mustActivation(name string) *Activation {
	a, err := activationNamed(name)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Activation) fwd(x *G.Node) (*G.Node, error) {
	return a.f(x)
}

func (a *Activation) String() string {
	return a.name
}

// MarshalText implements encoding.TextMarshaler
func (a *Activation) MarshalText() ([]byte, error) {
	return []byte(a.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Activation) UnmarshalText(text []byte) error {
	act, err := activationNamed(string(text))
	if err != nil {
		return fmt.Errorf("unmarshalText: %v", err)
	}
	*a = *act
	return nil
}

// GobEncode implements gob.GobEncoder
func (a *Activation) GobEncode() ([]byte, error) {
	return a.MarshalText()
}

// GobDecode implements gob.GobDecoder
func (a *Activation) GobDecode(data []byte) error {
	if err := a.UnmarshalText(data); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	return nil
}

func Identity() *Activation { return mustActivation("identity") }
func ReLU() *Activation     { return mustActivation("relu") }
func TanH() *Activation     { return mustActivation("tanh") }
func Sigmoid() *Activation  { return mustActivation("sigmoid") }

// ReLUs returns n ReLU activations, one for each of n hidden layers
func ReLUs(n int) []*Activation {
	acts := make([]*Activation, n)
	for i := range acts {
		acts[i] = ReLU()
	}
	return acts
}
