package config

import "github.com/abdul-hamid-achik/sheetspec/packages/workbook"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Workbook:           "tests.xlsx",
		Sheets:             workbook.DefaultSheets(),
		Timeout:            30000, // 30 seconds
		Burst:              1,
		FieldsFile:         ".sheetspec/saved_fields.yaml",
		Reporter:           "console",
	}
}
