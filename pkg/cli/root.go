package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build.
	Version = "dev"
	// Commit is injected during build.
	Commit = "none"
	// BuildDate is injected during build.
	BuildDate = "unknown"
)

// rootCmd is the base command. Called without a subcommand it serves.
var rootCmd = &cobra.Command{
	Use:   "mocksmith",
	Short: "mocksmith serves a mock API from handler files and an OpenAPI contract",
	Long: `mocksmith serves HTTP responses described by handler files on disk,
constrained by an OpenAPI contract. Handler files are hot-swapped as
they change; the server never needs a restart.

Running mocksmith without a subcommand starts the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. A bare invocation defaults to serve. The serve
// wiring happens here rather than in init so every subcommand has
// registered its flags first.
func Execute() {
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
