package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var shortVersionFlag bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		if shortVersionFlag {
			fmt.Fprintln(w, version)
			return
		}
		fmt.Fprintf(w, "sheetspec %s\n", version)
		fmt.Fprintf(w, "  built:    %s\n", buildTime)
		fmt.Fprintf(w, "  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(w, "  reports:  console, json, tap\n")
	},
}

func init() {
	versionCmd.Flags().BoolVar(&shortVersionFlag, "short", false, "Print only the version number")
}
