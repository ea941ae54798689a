package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/workbook"
	"gopkg.in/yaml.v3"
)

// Config represents the sheetspec configuration
type Config struct {
	DefaultEnvironment string                  `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Environments       map[string]*Environment `json:"environments,omitempty" yaml:"environments,omitempty"`
	Workbook           string                  `json:"workbook,omitempty" yaml:"workbook,omitempty"`
	Sheets             workbook.Sheets         `json:"sheets,omitempty" yaml:"sheets,omitempty"`
	Timeout            int                     `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	Rate               float64                 `json:"rate,omitempty" yaml:"rate,omitempty"`       // requests per second, 0 is unpaced
	Burst              int                     `json:"burst,omitempty" yaml:"burst,omitempty"`
	FollowRedirects    *bool                   `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	ValidateSSL        *bool                   `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string                  `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers            map[string]string       `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	IDs                []string                `json:"ids,omitempty" yaml:"ids,omitempty"`
	Tags               []string                `json:"tags,omitempty" yaml:"tags,omitempty"`
	FieldsFile         string                  `json:"fieldsFile,omitempty" yaml:"fieldsFile,omitempty"`
	KeepFields         *bool                   `json:"keepFields,omitempty" yaml:"keepFields,omitempty"`
	DotEnv             []string                `json:"dotenv,omitempty" yaml:"dotenv,omitempty"`
	Reporter           string                  `json:"reporter,omitempty" yaml:"reporter,omitempty"`
	Verbose            *bool                   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool                   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// Environment is one named target: where requests go, the variables
// placeholders may use, and the databases external checks run against.
type Environment struct {
	BaseURL   string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Variables map[string]any    `json:"variables,omitempty" yaml:"variables,omitempty"`
	Databases map[string]string `json:"databases,omitempty" yaml:"databases,omitempty"` // store name -> connection string
}

// BoolPtr returns a pointer to b, for building configs in code
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetKeepFields reports whether saved fields carry over from the previous run, defaulting to false
func (c *Config) GetKeepFields() bool {
	return getBool(c.KeepFields, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Environment returns the named environment. An empty name selects
// DefaultEnvironment. A name with no entry yields an empty environment so a
// config without environments still works.
func (c *Config) Environment(name string) (*Environment, error) {
	if name == "" {
		name = c.DefaultEnvironment
	}
	if env, ok := c.Environments[name]; ok && env != nil {
		return env, nil
	}
	if len(c.Environments) > 0 && name != "" {
		return nil, fmt.Errorf("unknown environment %q", name)
	}
	return &Environment{}, nil
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".sheetspec.json",
	"sheetspec.json",
	"sheetspec.yaml",
	".sheetspec.yaml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile validates the file against the schema, then decodes it
// over the defaults
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw any
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if raw != nil {
		if err := Validate(raw); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Workbook != "" {
		result.Workbook = other.Workbook
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.Burst > 0 {
		result.Burst = other.Burst
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.FieldsFile != "" {
		result.FieldsFile = other.FieldsFile
	}
	if other.Reporter != "" {
		result.Reporter = other.Reporter
	}
	if len(other.IDs) > 0 {
		result.IDs = other.IDs
	}
	if len(other.Tags) > 0 {
		result.Tags = other.Tags
	}
	if len(other.DotEnv) > 0 {
		result.DotEnv = other.DotEnv
	}

	if other.Sheets.Cases != "" {
		result.Sheets.Cases = other.Sheets.Cases
	}
	if other.Sheets.Templates != "" {
		result.Sheets.Templates = other.Sheets.Templates
	}
	if other.Sheets.Defaults != "" {
		result.Sheets.Defaults = other.Sheets.Defaults
	}
	if other.Sheets.Headers != "" {
		result.Sheets.Headers = other.Sheets.Headers
	}
	if other.Sheets.Endpoints != "" {
		result.Sheets.Endpoints = other.Sheets.Endpoints
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.KeepFields != nil {
		result.KeepFields = other.KeepFields
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Environments) > 0 {
		envs := make(map[string]*Environment, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}

// SaveConfig writes the configuration as YAML or JSON, chosen by extension
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
