// Package main provides the stepfix-mcp binary, an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/viper"

	"github.com/ormasoftchile/stepfix/pkg/config"
	smcp "github.com/ormasoftchile/stepfix/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/stepfix/pkg/observability"
)

var version = "dev"

func main() {
	v := viper.New()
	if err := config.Load(v, os.Getenv("STEPFIX_CONFIG")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()

	s := smcp.NewServer(version, cfg.Rewrite, observability.GetLogger().Named("mcp"))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
