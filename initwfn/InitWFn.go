// Package initwfn describes the weight initializers of networks as
// JSON serializable configurations. Random initializers draw from a
// seeded source so that networks are reproducible given a seed.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
)

// Type names a weight initialization scheme
type Type string

// Known initializer types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Gaussian Type = "Gaussian"
	Uniform  Type = "Uniform"
	Constant Type = "Constant"
)

// configTypes maps each initializer Type to its concrete Config type
var configTypes = map[Type]reflect.Type{
	GlorotU:  reflect.TypeOf(GlorotUConfig{}),
	GlorotN:  reflect.TypeOf(GlorotNConfig{}),
	HeU:      reflect.TypeOf(HeUConfig{}),
	HeN:      reflect.TypeOf(HeNConfig{}),
	Gaussian: reflect.TypeOf(GaussianConfig{}),
	Uniform:  reflect.TypeOf(UniformConfig{}),
	Constant: reflect.TypeOf(ConstantConfig{}),
}

// defaultSeed seeds the initializer returned by InitWFn
const defaultSeed uint64 = 1

// Config describes a weight initializer
type Config interface {
	// Create returns the Gorgonia InitWFn described by the Config,
	// drawing any random weights from src
	Create(src rand.Source) G.InitWFn

	// Validate returns an error if the parameters are invalid
	Validate() error

	Type() Type
}

// InitWFn is a typed initializer Config. It is JSON serialized as
//
//	{"Type": "GlorotU", "Config": {"Gain": 1}}
type InitWFn struct {
	Type
	Config
}

// newInitWFn validates c and returns it as an InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newInitWFn: %v", err)
	}
	return &InitWFn{Type: c.Type(), Config: c}, nil
}

// InitWFn returns the Gorgonia InitWFn seeded with a fixed seed
func (i *InitWFn) InitWFn() G.InitWFn {
	return i.Seeded(defaultSeed)
}

// Seeded returns a Gorgonia InitWFn whose random weights are drawn
// from a source seeded with seed. Every call of the returned InitWFn
// draws from the same source, so successive layers differ.
func (i *InitWFn) Seeded(seed uint64) G.InitWFn {
	return i.Config.Create(rand.NewSource(seed))
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("%v%+v", i.Type, i.Config)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (i *InitWFn) UnmarshalJSON(data []byte) error {
	var fields struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	ty, ok := configTypes[fields.Type]
	if !ok {
		return fmt.Errorf("unmarshalJSON: unknown initializer type %q",
			fields.Type)
	}
	value := reflect.New(ty)
	if len(fields.Config) > 0 {
		if err := json.Unmarshal(fields.Config, value.Interface()); err != nil {
			return fmt.Errorf("unmarshalJSON: could not decode %v config: %v",
				fields.Type, err)
		}
	}

	c := value.Elem().Interface().(Config)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	i.Type = fields.Type
	i.Config = c
	return nil
}
