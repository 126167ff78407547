package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a manifest file, validates it against the schema, and applies
// defaults. YAML or JSON is chosen by extension; with an unknown extension
// YAML is tried first.
//
// Validation runs on the raw document before it is decoded into the struct,
// so unknown fields are rejected instead of silently dropped.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes. The path is
// used only for format detection and error messages.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	jsonData, yamlDoc, err := normalize(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	var m Manifest
	if yamlDoc {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	m.ApplyDefaults()
	return &m, nil
}

// LoadFromReader is LoadFromBytes over an io.Reader.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// normalize returns the document as JSON for schema validation and reports
// whether the source was YAML.
func normalize(data []byte, path string) ([]byte, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if !json.Valid(data) {
			return nil, false, fmt.Errorf("invalid JSON in manifest: %s", path)
		}
		return data, false, nil
	case ".yaml", ".yml":
		jsonData, err := yamlToJSON(data)
		return jsonData, true, err
	default:
		// YAML is a superset of JSON, so try it first.
		if jsonData, err := yamlToJSON(data); err == nil {
			return jsonData, true, nil
		}
		if json.Valid(data) {
			return data, false, nil
		}
		return nil, false, errors.New("failed to parse manifest (tried YAML and JSON)")
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert manifest to JSON: %w", err)
	}
	return jsonData, nil
}
