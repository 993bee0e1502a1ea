package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// Exit codes
const (
	exitOK     = 0
	exitConfig = 1
	exitRead   = 2
	exitWrite  = 3
)

// Set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch domain.KindOf(err) {
	case domain.KindRead:
		return exitRead
	case domain.KindIO, domain.KindEncoding:
		return exitWrite
	default:
		return exitConfig
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "climate-etl",
		Short: "Summarize daily temperature observations per country",
		Long: `climate-etl reads daily temperature observations from Parquet or CSV,
drops implausible readings, filters by country and year, converts units,
and writes per-country (or aggregated) summary statistics to CSV, JSON,
Parquet and SQLite files. Summaries can also be published to Kafka.

Exit codes:
  0 - Run completed
  1 - Invalid configuration
  2 - Input could not be read
  3 - Output could not be written`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "climate-etl %s (%s)\n", version, commit)
		},
	}
}
