// Package main provides the stepfix CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/stepfix/pkg/observability"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	err := newRootCmd().Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
