// Package config loads YAML configuration files with ${VAR} expansion from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configs that check themselves after decoding.
type Validator interface {
	Validate() error
}

// Load decodes filename into target. Fields absent from the file keep the
// values target already holds, so callers pass a pre-filled default. Unknown
// keys are rejected.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config %s: %w", filename, err)
	}
	if err := decode(os.ExpandEnv(string(data)), target); err != nil {
		return fmt.Errorf("parse config %s: %w", filename, err)
	}

	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

func decode(doc string, target any) error {
	dec := yaml.NewDecoder(bytes.NewBufferString(doc))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadWithDefaults loads filename, or defaultFile when filename does not exist.
func LoadWithDefaults[T any](filename, defaultFile string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile == "" {
			return fmt.Errorf("config file not found: %s", filename)
		}
		return Load(defaultFile, target)
	}
	return Load(filename, target)
}
