package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a model file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath selects the model encoding from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("unsupported configuration file extension %q", filepath.Ext(path))
}

// LoadFile reads and validates a model from a .yaml, .yml or .hcl file
func LoadFile(path string) (*Model, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	m, err := parse(data, format, path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes and validates an in-memory model
func Parse(data []byte, format Format) (*Model, error) {
	m, err := parse(data, format, "<memory>."+string(format))
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parse(data []byte, format Format, name string) (*Model, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data, name)
	case FormatHCL:
		return parseHCL(data, name)
	}
	return nil, fmt.Errorf("unsupported configuration format %q", format)
}

func parseYAML(data []byte, name string) (*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Model
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty configuration", name)
		}
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", name, err)
	}
	return &m, nil
}

// WriteYAML encodes the model; unset optional fields are omitted
func (m *Model) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode model %q: %w", m.ModelName, err)
	}
	return enc.Close()
}

// SaveYAML writes the model to path, creating parent directories
func (m *Model) SaveYAML(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if err := m.WriteYAML(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
