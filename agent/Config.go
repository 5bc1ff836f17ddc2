package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/samuelfneumann/offlinerl/environment"
)

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes
	CreateAgent(env environment.Environment, seed uint64) (Agent, error)

	// ValidAgent returns whether the argument agent is valid for the
	// Config
	ValidAgent(Agent) bool

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error

	// Type returns the Type of agent the Config creates
	Type() Type
}

// Type represents a specific type of an agent Config.
// Config's with this type can create Agents of the corresponding type.
type Type string

// Agent types
const (
	InACClippedGaussianMLP Type = "InAC-ClippedGaussianMLP"
)

// Registered types with the package. Once a Type has been registered,
// a TypedConfig with that type can be deserialized.
//
// No Type's are registered wtih this package upon initialization.
// Each separate package is in charge of registering its Type with
// the package separately to avoid circular imports.
var (
	registeredTypes   = make(map[Type]reflect.Type)
	registeredTypesMu sync.RWMutex
)

// Register registers an agent's Type with a concrete Config type so
// that upon deserialization of a TypedConfig, Configs of type
// agentType are deserialized into the concrete type of config.
func Register(agentType Type, config Config) {
	registeredTypesMu.Lock()
	defer registeredTypesMu.Unlock()
	registeredTypes[agentType] = reflect.TypeOf(config)
}

// TypedConfig implements functionality for typing a Config. In this
// way, a Config can explicitly have its type stored so that when
// deserializing the Config, we can deserialize it into its concrete
// type without knowing beforehand or declaring beforehand a variable
// of its concrete type.
type TypedConfig struct {
	Type
	Config
}

// NewTypedConfig types the argument Config and returns it as a
// TypedConfig which explicitly holds its Type.
func NewTypedConfig(c Config) TypedConfig {
	return TypedConfig{Type: c.Type(), Config: c}
}

// LoadTypedConfig reads a JSON serialized TypedConfig from a file
func LoadTypedConfig(path string) (TypedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TypedConfig{}, fmt.Errorf("loadTypedConfig: could not read "+
			"config file: %v", err)
	}

	var c TypedConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return TypedConfig{}, fmt.Errorf("loadTypedConfig: could not "+
			"decode %v: %v", path, err)
	}
	return c, nil
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (t *TypedConfig) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(data, "Type", "Config")
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	t.Type = typeName
	t.Config = config

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField,
	valueJsonField string) (Config, Type, error) {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	var typeName Type
	if err := json.Unmarshal(m[typeJsonField], &typeName); err != nil {
		return nil, "", fmt.Errorf("could not decode %v field: %v",
			typeJsonField, err)
	}

	registeredTypesMu.RLock()
	ty, found := registeredTypes[typeName]
	registeredTypesMu.RUnlock()
	if !found {
		return nil, "", fmt.Errorf("agent type %q is not registered",
			typeName)
	}

	value := reflect.New(ty).Interface()
	if err := json.Unmarshal(m[valueJsonField], value); err != nil {
		return nil, "", err
	}
	concreteValue := reflect.ValueOf(value).Elem().Interface().(Config)

	return concreteValue, typeName, nil
}
