package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag    int
	mockDelayFlag   string
	mockVerboseFlag bool
)

var mockCmd = &cobra.Command{
	Use:   "mock <routes.yaml>...",
	Short: "Start a mock API from YAML route files",
	Long: `Start an HTTP mock server answering the routes of one or more YAML files.

The mock server:
- Matches method and path, with chi-style parameters such as /accounts/{id}
- Serves each route's responses in order, then keeps the last one
- Echoes path parameters, query values and request body fields into bodies
- Rewinds every sequence on POST /__mock/reset

Examples:
  sheetspec mock mock-routes.yaml
  sheetspec mock mock-routes.yaml --port 3000 --delay 100ms`,
	Args: cobra.MinimumNArgs(1),
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", 3000, "Port to run the mock server on")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Log every route at startup")

	mockCmd.ValidArgsFunction = completeRouteFiles
}

func mockCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withCode(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	verbosity := 1
	if mockVerboseFlag {
		verbosity = 2
	}
	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithLogger(newLogger(cmd.ErrOrStderr(), verbosity, false)),
	)

	for _, path := range args {
		if err := server.LoadFile(path); err != nil {
			return withCode(ExitConfigError, err)
		}
	}
	if len(server.Routes()) == 0 {
		return withCode(ExitConfigError, fmt.Errorf("no routes found in the provided files"))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d routes from %d files\n", len(server.Routes()), len(args))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return withCode(ExitNetworkError, err)
	}
	return nil
}
