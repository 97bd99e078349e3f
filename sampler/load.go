package sampler

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON string

const configSchemaURL = "https://github.com/miretskiy/pqcbench/config.schema.json"

var (
	configSchemaOnce sync.Once
	configSchema     *jsonschema.Schema
	configSchemaErr  error
)

func compiledConfigSchema() (*jsonschema.Schema, error) {
	configSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(configSchemaURL, strings.NewReader(configSchemaJSON)); err != nil {
			configSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		configSchema, configSchemaErr = compiler.Compile(configSchemaURL)
		if configSchemaErr != nil {
			configSchemaErr = fmt.Errorf("compile schema: %w", configSchemaErr)
		}
	})
	return configSchema, configSchemaErr
}

// LoadConfig reads and parses a YAML (or JSON) configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a configuration document. Structural problems (missing
// required fields, wrong types) are reported against the embedded JSON
// schema; unknown keys and out-of-range values are rejected afterwards. All
// failures are returned as a single ConfigError.
func ParseConfig(data []byte) (*Config, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, ErrInvalidConfig(fmt.Sprintf("parse: %v", err))
	}
	if tree == nil {
		return nil, ErrInvalidConfig("empty document")
	}
	if err := validateAgainstSchema(tree); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ErrInvalidConfig(fmt.Sprintf("decode: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateAgainstSchema(tree any) error {
	schema, err := compiledConfigSchema()
	if err != nil {
		return err
	}
	// Round-trip through encoding/json so the validator sees JSON types
	raw, err := json.Marshal(tree)
	if err != nil {
		return ErrInvalidConfig(fmt.Sprintf("document is not a JSON-compatible mapping: %v", err))
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ErrInvalidConfig(fmt.Sprintf("document is not a JSON-compatible mapping: %v", err))
	}
	if err := schema.Validate(payload); err != nil {
		return ErrInvalidConfig(fmt.Sprintf("schema: %v", err))
	}
	return nil
}

// YAML renders cfg as a YAML document accepted by ParseConfig
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
