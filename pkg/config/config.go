// Package config loads YAML configuration files into typed structs.
//
// References of the form ${VAR} or $VAR are replaced from the environment
// before parsing; ${VAR:-fallback} uses fallback when VAR is unset or empty.
// Keys that match no struct field are rejected so typos surface at startup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config structs that check themselves after
// loading.
type Validator interface {
	Validate() error
}

// Load reads filename into target and validates it.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := decode(data, target); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return validate(target)
}

// LoadOptional behaves like Load but tolerates a missing file: target keeps
// its defaults and is still validated.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return Load(filename, target)
}

func decode(data []byte, target any) error {
	expanded := os.Expand(string(data), lookupEnv)
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// lookupEnv resolves one os.Expand reference, honouring ":-" defaults.
func lookupEnv(ref string) string {
	name, fallback, hasFallback := strings.Cut(ref, ":-")
	if v := os.Getenv(name); v != "" || !hasFallback {
		return v
	}
	return fallback
}

func validate(target any) error {
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Example renders v as YAML, for printing a starting config file.
func Example(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
