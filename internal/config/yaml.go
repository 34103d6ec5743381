package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// toJSON returns data as JSON bytes. Files with a .yaml/.yml extension are
// converted first; everything else is assumed to be JSON already. One strict
// decoder (DisallowUnknownFields) then covers both formats.
func toJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	b, err := json.Marshal(stringifyKeys(v))
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return b, nil
}

// stringifyKeys rewrites yaml's map[any]any nodes so the tree can be
// marshaled as JSON.
func stringifyKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = stringifyKeys(e)
		}
		return m
	case map[string]any:
		for k, e := range x {
			x[k] = stringifyKeys(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = stringifyKeys(e)
		}
		return x
	}
	return v
}
