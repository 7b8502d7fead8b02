package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// detectFormat picks the decoder from the file extension. Files without a
// known extension are treated as JSON when they start with '{'.
func detectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '{' {
		return formatJSON
	}
	return formatYAML
}

// decode strictly decodes data into a Config. YAML is first rewritten as
// JSON so both formats share DisallowUnknownFields and the trailing-data check.
func decode(path string, data []byte) (*Config, error) {
	format := detectFormat(path, data)
	if format == formatYAML {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		if v == nil {
			v = map[string]any{}
		}
		j, err := json.Marshal(yamlToJSON(v))
		if err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		data = j
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%s: invalid config: trailing data", format)
		}
		return nil, fmt.Errorf("%s: %w", format, err)
	}
	return &cfg, nil
}

// yamlToJSON makes a decoded YAML tree JSON-marshalable: map keys become
// strings and time.Time values become RFC3339 strings.
func yamlToJSON(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = yamlToJSON(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = yamlToJSON(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = yamlToJSON(x[i])
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return in
	}
}
