package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "dev", cfg.DefaultEnvironment)
	assert.Equal(t, "Cases", cfg.Sheets.Cases)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetKeepFields())
	assert.False(t, cfg.GetNoColor())
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sheetspec.yaml", `
defaultEnvironment: staging
workbook: api.xlsx
sheets:
  cases: API
timeout: 5000
rate: 2.5
keepFields: true
environments:
  staging:
    baseUrl: https://staging.example.com
    variables:
      tenant: acme
      retries: 3
    databases:
      DB: sqlite://./staging.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "api.xlsx", cfg.Workbook)
	assert.Equal(t, "API", cfg.Sheets.Cases)
	assert.Equal(t, "Templates", cfg.Sheets.Templates, "unset sheet names keep their defaults")
	assert.Equal(t, 5*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, 2.5, cfg.Rate)
	assert.True(t, cfg.GetKeepFields())

	env, err := cfg.Environment("")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", env.BaseURL)
	assert.Equal(t, "acme", env.Variables["tenant"])
	assert.Equal(t, "sqlite://./staging.db", env.Databases["DB"])

	_, err = cfg.Environment("prod")
	assert.ErrorContains(t, err, `unknown environment "prod"`)
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".sheetspec.json", `{
  "workbook": "suite.xlsx",
  "tags": ["smoke"],
  "reporter": "json",
  "headers": {"X-Client": "sheetspec"}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "suite.xlsx", cfg.Workbook)
	assert.Equal(t, []string{"smoke"}, cfg.Tags)
	assert.Equal(t, "json", cfg.Reporter)
	assert.Equal(t, "sheetspec", cfg.Headers["X-Client"])

	env, err := cfg.Environment("anything")
	require.NoError(t, err, "a config without environments accepts any name")
	assert.Empty(t, env.BaseURL)
}

func TestLoadConfig_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", "sheetspec.yaml", "workbok: typo.xlsx\n"},
		{"wrong type", "sheetspec.json", `{"timeout": "fast"}`},
		{"negative rate", "sheetspec.yaml", "rate: -1\n"},
		{"bad reporter", "sheetspec.yaml", "reporter: html\n"},
		{"base url scheme", "sheetspec.yaml", "environments:\n  dev:\n    baseUrl: ftp://x\n"},
		{"lower-case store name", "sheetspec.yaml", "environments:\n  dev:\n    databases:\n      db: sqlite://x.db\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sheetspec.json", `{"workbook":`)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestFindAndLoadConfig(t *testing.T) {
	t.Run("no file gives defaults", func(t *testing.T) {
		cfg, err := FindAndLoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("lookup order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "sheetspec.yaml", "workbook: from-yaml.xlsx\n")
		writeFile(t, dir, "sheetspec.json", `{"workbook": "from-json.xlsx"}`)

		cfg, err := FindAndLoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "from-json.xlsx", cfg.Workbook)
	})
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1"}
	base.Environments = map[string]*Environment{"dev": {BaseURL: "http://dev"}}

	override := &Config{
		Workbook:     "other.xlsx",
		Rate:         5,
		Tags:         []string{"smoke"},
		KeepFields:   BoolPtr(true),
		Headers:      map[string]string{"B": "2"},
		Environments: map[string]*Environment{"uat": {BaseURL: "http://uat"}},
	}
	override.Sheets.Cases = "API"

	merged := base.Merge(override)

	assert.Equal(t, "other.xlsx", merged.Workbook)
	assert.Equal(t, "API", merged.Sheets.Cases)
	assert.Equal(t, "Templates", merged.Sheets.Templates)
	assert.Equal(t, 5.0, merged.Rate)
	assert.Equal(t, 30000, merged.Timeout)
	assert.True(t, merged.GetKeepFields())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Len(t, merged.Environments, 2)

	assert.Equal(t, map[string]string{"A": "1"}, base.Headers, "merge does not modify the receiver")
	assert.Same(t, base, base.Merge(nil))
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	for _, name := range []string{"sheetspec.yaml", "sheetspec.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Environments = map[string]*Environment{
				"dev": {BaseURL: "http://localhost:8080", Databases: map[string]string{"DB": "sqlite://dev.db"}},
			}
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveConfig(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Environments["dev"].BaseURL, loaded.Environments["dev"].BaseURL)
			assert.Equal(t, cfg.Workbook, loaded.Workbook)
			assert.Equal(t, cfg.Sheets, loaded.Sheets)
		})
	}
}
