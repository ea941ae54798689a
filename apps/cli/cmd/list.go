package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [workbook]",
	Short: "List the test cases of a workbook",
	Long: `List every test case of a workbook with its tags, steps and conditions.
Cases whose Run flag is off are marked as skipped.

Examples:
  sheetspec list tests.xlsx
  sheetspec list --tags smoke`,
	Args: cobra.MaximumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVar(&configFlag, "config", getEnvString("SHEETSPEC_CONFIG", ""), "Path to config file (env: SHEETSPEC_CONFIG)")
	listCmd.Flags().StringVar(&idsFlag, "ids", "", "List only cases whose TCID matches (comma-separated, * globs)")
	listCmd.Flags().StringVarP(&tagsFlag, "tags", "t", "", "List only cases with one of the tags (comma-separated)")

	listCmd.ValidArgsFunction = completeWorkbook
}

func listCommand(cmd *cobra.Command, args []string) error {
	src, err := loadSource(args)
	if err != nil {
		return err
	}
	suite, err := src.Load()
	if err != nil {
		return withCode(ExitParseError, err)
	}

	ids, tags := splitList(idsFlag), splitList(tagsFlag)
	selected := make(map[string]bool)
	for _, tc := range suite.Select(ids, tags) {
		selected[tc.TCID] = true
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s:\n", src.Path())
	for _, tc := range suite.Cases {
		if !tc.Run {
			if len(ids) == 0 && len(tags) == 0 {
				fmt.Fprintf(w, "  - %s (skipped)\n", caseTitle(tc))
			}
			continue
		}
		if !selected[tc.TCID] {
			continue
		}
		fmt.Fprintf(w, "  - %s\n", caseTitle(tc))
		if len(tc.Tags) > 0 {
			fmt.Fprintf(w, "    tags: %s\n", strings.Join(tc.Tags, ", "))
		}
		for _, step := range tc.Steps {
			fmt.Fprintf(w, "    %s %s\n", step.TSID, stepTitle(step))
			for _, d := range step.Directives {
				fmt.Fprintf(w, "      [%s] %s\n", d.Scope, strings.Join(d.TCIDs, ", "))
			}
		}
	}
	return nil
}

func caseTitle(tc *parser.TestCase) string {
	if tc.Description == "" {
		return tc.TCID
	}
	return tc.TCID + " " + tc.Description
}

func stepTitle(step *parser.TestStep) string {
	if step.Description != "" {
		return step.Description
	}
	return step.Endpoint
}
