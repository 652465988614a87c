package config

import (
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cast"
)

// SetField sets a single config field by dotted key, such as
// "backend.model" or "inference.sampling.temperature". The value is
// converted to the field's type; lists are comma separated. Keys match
// case-insensitively.
func SetField(cfg *Config, key, value string) error {
	shape, err := toTree(Default())
	if err != nil {
		return err
	}
	root, err := toTree(*cfg)
	if err != nil {
		return err
	}
	tree := root

	// Defaults define the known keys and their types; cfg may have dropped
	// empty lists.
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		name, ok := findKey(shape, p)
		if !ok {
			return fmt.Errorf("unknown config key: %s", key)
		}
		section, ok := shape[name].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config key: %s", key)
		}
		child, _ := tree[name].(map[string]any)
		if child == nil {
			child = make(map[string]any)
			tree[name] = child
		}
		shape, tree = section, child
	}
	name, ok := findKey(shape, parts[len(parts)-1])
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if _, isSection := shape[name].(map[string]any); isSection {
		return fmt.Errorf("%s is a section, not a value", key)
	}

	converted, err := convert(shape[name], value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	tree[name] = converted
	return fromTree(root, cfg)
}

// Keys lists every settable dotted key in sorted order.
func Keys() []string {
	tree, err := toTree(Default())
	if err != nil {
		return nil
	}
	var keys []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if child, ok := v.(map[string]any); ok {
				walk(prefix+k+".", child)
				continue
			}
			keys = append(keys, prefix+k)
		}
	}
	walk("", tree)
	sort.Strings(keys)
	return keys
}

func convert(current any, value string) (any, error) {
	switch current.(type) {
	case bool:
		return cast.ToBoolE(value)
	case int64:
		return cast.ToInt64E(value)
	case float64:
		return cast.ToFloat64E(value)
	case []any:
		if strings.TrimSpace(value) == "" {
			return []any{}, nil
		}
		var list []any
		for _, item := range strings.Split(value, ",") {
			list = append(list, strings.TrimSpace(item))
		}
		return list, nil
	default:
		return value, nil
	}
}

func findKey(m map[string]any, key string) (string, bool) {
	if _, ok := m[key]; ok {
		return key, true
	}
	for k := range m {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

func toTree(cfg Config) (map[string]any, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("reading config tree: %w", err)
	}
	return tree, nil
}

func fromTree(tree map[string]any, cfg *Config) error {
	data, err := toml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshaling config tree: %w", err)
	}
	var out Config
	if err := toml.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	*cfg = out
	return nil
}
