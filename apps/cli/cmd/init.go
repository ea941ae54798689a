package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/config"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/abdul-hamid-achik/sheetspec/packages/workbook"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new sheetspec project",
	Long: `Initialize a new sheetspec project in the current directory.

This creates:
  - sheetspec.yaml     - Configuration file with environments
  - tests.xlsx         - Sample workbook with every sheet filled in
  - mock-routes.yaml   - Routes for 'sheetspec mock' that the sample passes against

Examples:
  sheetspec init
  sheetspec init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const sampleRoutes = `routes:
  - name: balance
    path: /accounts/{id}/balance
    responses:
      - body: {account: "{{id}}", balance: 100.00}
      - body: {account: "{{id}}", balance: 100.00}
      - body: {account: "{{id}}", balance: 105.00}
  - name: deposit
    method: POST
    path: /accounts/{id}/deposits
    responses:
      - status: 201
        headers:
          Location: /accounts/{{id}}/deposits/1
        body: '{"id": "{{uuid()}}", "amount": ${$.amount}, "reference": "${$.reference}"}'
`

const depositSchema = `{
  "type": "object",
  "required": ["amount", "reference"],
  "properties": {
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "reference": {"type": "string"}
  }
}`

// sampleSuite is a small banking workbook: a balance read, then a deposit
// checked against a balance snapshot taken before and after it.
func sampleSuite() *parser.Suite {
	s := parser.NewSuite("tests.xlsx")
	s.Endpoints["reset"] = &parser.Endpoint{Name: "reset", Method: "POST", Path: "/__mock/reset"}
	s.Endpoints["balance"] = &parser.Endpoint{Name: "balance", Method: "GET", Path: "/accounts/{{accountId}}/balance"}
	s.Endpoints["deposit"] = &parser.Endpoint{Name: "deposit", Method: "POST", Path: "/accounts/{{accountId}}/deposits"}
	s.Headers["json"] = map[string]string{"Accept": "application/json"}
	s.Templates["deposit"] = &parser.Template{
		Name:    "deposit",
		Content: `{"amount": {{json .amount}}, "reference": {{json .reference}}}`,
		Format:  extract.FormatJSON,
		Schema:  depositSchema,
	}
	s.Defaults["deposit"] = map[string]any{"amount": 1, "reference": "sample"}

	s.Cases = []*parser.TestCase{
		{
			TCID:        "RESET",
			Description: "Rewind the mock API",
			Run:         false,
			Steps: []*parser.TestStep{{
				TCID: "RESET", TSID: "1", Endpoint: "reset", ExpStatus: 204,
			}},
		},
		{
			TCID:        "BAL",
			Description: "Read the account balance",
			Run:         true,
			Tags:        []string{"smoke"},
			Steps: []*parser.TestStep{{
				TCID: "BAL", TSID: "1",
				Conditions: "[suite setup] RESET",
				Endpoint:   "balance",
				Headers:    "json",
				ExpStatus:  200,
				ExpResult:  "$.balance=100",
				SaveFields: []string{"$.balance"},
			}},
		},
		{
			TCID:        "BALQ",
			Description: "Balance snapshot for check-with",
			Run:         false,
			Steps: []*parser.TestStep{{
				TCID: "BALQ", TSID: "1", Endpoint: "balance", Headers: "json", ExpStatus: 200,
			}},
		},
		{
			TCID:        "DEP",
			Description: "Deposit 5.00",
			Run:         true,
			Tags:        []string{"smoke", "payments"},
			Steps: []*parser.TestStep{{
				TCID: "DEP", TSID: "1",
				Conditions:    "[check with] BALQ",
				Endpoint:      "deposit",
				Headers:       "json",
				Template:      "deposit",
				Defaults:      "deposit",
				Modifications: `{"amount": 5}`,
				ExpStatus:     201,
				ExpResult:     "$.amount=5\nBALQ.$.balance=+5\nBALQ.post.$.balance=105",
				SaveFields:    []string{"$.id", "header.Location"},
			}},
		},
	}
	return s
}

func sampleConfig() *config.Config {
	return &config.Config{
		DefaultEnvironment: "dev",
		Workbook:           "tests.xlsx",
		Timeout:            30000,
		FollowRedirects:    config.BoolPtr(true),
		ValidateSSL:        config.BoolPtr(true),
		Headers:            map[string]string{"User-Agent": "sheetspec/1.0"},
		FieldsFile:         ".sheetspec/saved_fields.yaml",
		Environments: map[string]*config.Environment{
			"dev": {
				BaseURL:   "http://localhost:3000",
				Variables: map[string]any{"accountId": "ACC-1"},
			},
			"uat": {
				BaseURL:   "https://uat.api.example.com",
				Variables: map[string]any{"accountId": "ACC-1"},
			},
		},
	}
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "sheetspec.yaml")
	workbookFile := filepath.Join(cwd, "tests.xlsx")
	routesFile := filepath.Join(cwd, "mock-routes.yaml")

	if !forceInit {
		for _, f := range []string{configFile, workbookFile, routesFile} {
			if _, err := os.Stat(f); err == nil {
				return withCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	if err := sampleConfig().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := workbook.Save(workbookFile, sampleSuite(), workbook.DefaultSheets()); err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", workbookFile)

	if err := os.WriteFile(routesFile, []byte(sampleRoutes), 0644); err != nil {
		return fmt.Errorf("failed to create mock routes: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", routesFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nsheetspec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'sheetspec mock mock-routes.yaml' in one terminal and 'sheetspec run' in another.\n")

	return nil
}
