package config

import (
	"fmt"
	"maps"
	"os"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load merges the given configuration files in order and parses the
// result. Later files override earlier ones key by key; with conflictError
// set, two files assigning different values to the same key fail instead.
func Load(files []string, conflictError bool) (*Config, error) {
	docs := make([]map[string]any, 0, len(files))
	for _, f := range files {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %v: %w", f, err)
		}
		var x map[string]any
		if err := yaml.Unmarshal(bs, &x); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration file %v: %w", f, err)
		}
		if x != nil {
			docs = append(docs, x)
		}
	}
	if len(docs) == 0 {
		return Default(), nil
	}

	merged, err := merge(docs, "", conflictError)
	if err != nil {
		return nil, err
	}
	bs, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged configuration: %w", err)
	}
	return Parse(bs)
}

func merge(docs []map[string]any, path string, conflictError bool) (map[string]any, error) {
	result := make(map[string]any)
	for _, doc := range docs {
		for _, key := range slices.Sorted(maps.Keys(doc)) { // Sort keys to ensure deterministic merge errors.
			value := doc[key]
			existing, ok := result[key]
			if !ok {
				result[key] = value
				continue
			}
			existingMap, ok1 := existing.(map[string]any)
			valueMap, ok2 := value.(map[string]any)
			if ok1 && ok2 {
				var err error
				if result[key], err = merge([]map[string]any{existingMap, valueMap}, path+"/"+key, conflictError); err != nil {
					return nil, err
				}
				continue
			}
			if conflictError && !reflect.DeepEqual(existing, value) {
				return nil, fmt.Errorf("conflict for config path %s", path+"/"+key)
			}
			result[key] = value
		}
	}
	return result, nil
}
