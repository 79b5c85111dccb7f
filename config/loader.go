package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Loader is a kong.ConfigurationLoader for TOML and YAML files. Keys are
// flag names; '_' and '-' are interchangeable and nested tables join their
// keys with '-', so [reference] window = 600 sets --reference-window.
func Loader(r io.Reader) (kong.Resolver, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	values, err := decode(raw)
	if err != nil {
		return nil, err
	}

	flat := make(map[string]any, len(values))
	flatten("", values, flat)

	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		if v, ok := flat[flag.Name]; ok {
			return fmt.Sprint(v), nil
		}
		return nil, nil
	}), nil
}

// decode tries TOML first; anything that is not valid TOML is parsed as YAML.
func decode(raw []byte) (map[string]any, error) {
	values := map[string]any{}
	tomlErr := toml.Unmarshal(raw, &values)
	if tomlErr == nil {
		return values, nil
	}

	values = map[string]any{}
	if yamlErr := yaml.Unmarshal(raw, &values); yamlErr != nil {
		return nil, fmt.Errorf("parse config as TOML (%v) or YAML: %w", tomlErr, yamlErr)
	}
	return values, nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for key, v := range in {
		name := strings.ToLower(strings.ReplaceAll(key, "_", "-"))
		if prefix != "" {
			name = prefix + "-" + name
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(name, nested, out)
			continue
		}
		out[name] = v
	}
}
