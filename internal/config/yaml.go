package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// fileJSON returns the body of a config file as JSON plus the format name.
// YAML goes through JSON so both formats share the strict decoder.
func fileJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	case ".json", "":
		return data, "json", nil
	default:
		return nil, "", fmt.Errorf("config %s: unsupported file type (use .json, .yaml or .yml)", path)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("config %s: %w", path, err)
	}
	if doc == nil {
		return nil, "yaml", nil
	}
	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("config %s: %w", path, err)
	}
	return out, "yaml", nil
}

// stringKeys rewrites YAML mappings with non-string keys (e.g. `1: x`) so the
// tree can be marshaled as JSON.
func stringKeys(v any) any {
	switch n := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		for k, val := range n {
			n[k] = stringKeys(val)
		}
		return n
	case []any:
		for i, val := range n {
			n[i] = stringKeys(val)
		}
		return n
	}
	return v
}
