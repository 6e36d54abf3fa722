// mocksmith serves a mock API from handler files and an OpenAPI
// contract.
package main

import (
	"github.com/mocksmith/mocksmith/pkg/cli"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
