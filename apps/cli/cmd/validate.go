package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
	"github.com/abdul-hamid-achik/sheetspec/packages/workbook"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workbook]",
	Short: "Check a workbook for errors without sending requests",
	Long: `Load a workbook and report every problem that would make a case fail
before anything is sent: malformed sheets, unknown or cyclic conditions,
missing endpoints, templates, defaults or headers, and Exp Result cells
that do not parse.

Examples:
  sheetspec validate tests.xlsx
  sheetspec validate --env uat`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("SHEETSPEC_ENV", ""), "Environment whose endpoints are checked (env: SHEETSPEC_ENV)")
	validateCmd.Flags().StringVar(&configFlag, "config", getEnvString("SHEETSPEC_CONFIG", ""), "Path to config file (env: SHEETSPEC_CONFIG)")

	validateCmd.ValidArgsFunction = completeWorkbook
	_ = validateCmd.RegisterFlagCompletionFunc("env", completeEnvironment)
}

// loadSource resolves the workbook and environment shared by validate and list.
func loadSource(args []string) (*workbook.Source, error) {
	cfg, err := loadRunConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Workbook
	if len(args) > 0 {
		path = args[0]
	}
	envName := envFlag
	if envName == "" {
		envName = cfg.DefaultEnvironment
	}
	return workbook.NewSource(path, workbook.WithSheets(cfg.Sheets), workbook.WithEnvironment(envName)), nil
}

func validateCommand(cmd *cobra.Command, args []string) error {
	src, err := loadSource(args)
	if err != nil {
		return err
	}

	suite, err := src.Load()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", src.Path(), err)
		return withCode(ExitParseError, fmt.Errorf("validation failed"))
	}

	problems := runner.Lint(suite)
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", src.Path(), p)
	}
	if len(problems) > 0 {
		return withCode(ExitParseError, fmt.Errorf("validation failed: %d problems", len(problems)))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", src.Path(), len(suite.Cases))
	return nil
}
