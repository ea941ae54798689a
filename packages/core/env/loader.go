package env

import (
	"os"
	"strings"
)

// Environment is the variable set for one named target such as "dev" or "uat".
type Environment struct {
	Name      string
	BaseURL   string
	Variables map[string]any
}

// LoadEnvironment merges configured variables with .env files, later sources
// winning. .env values are also exported to the OS environment, without
// overriding variables already set, so {{$NAME}} placeholders can read them.
func LoadEnvironment(name, baseURL string, configVars map[string]any, dotenvPaths ...string) (*Environment, error) {
	env := &Environment{
		Name:      name,
		BaseURL:   baseURL,
		Variables: make(map[string]any),
	}

	for k, v := range configVars {
		env.Variables[k] = v
	}

	for _, path := range dotenvPaths {
		if path == "" {
			continue
		}
		vars, err := LoadAndExportDotEnv(path)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			env.Variables[k] = v
		}
	}

	return env, nil
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns OS variables starting with prefix, with the prefix stripped.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
