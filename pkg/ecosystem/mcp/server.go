package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ormasoftchile/stepfix/pkg/config"
)

// NewServer creates an MCP server with the stepfix tools registered.
func NewServer(version string, cfg config.RewriteConfig, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"stepfix",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Validate, verify and rewrite automation templates. "+
			"stepfix/rewrite never writes unless write is true."),
	)
	h := NewHandlers(cfg, logger)

	s.AddTool(
		mcp.NewTool("stepfix/validate",
			mcp.WithDescription("Validate an automation template JSON file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the template JSON file")),
			mcp.WithBoolean("repair", mcp.Description("Repair malformed JSON before validating")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("stepfix/verify",
			mcp.WithDescription("Report whether a template is fully migrated to validated-retry inputs"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the template JSON file")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		h.HandleVerify,
	)

	s.AddTool(
		mcp.NewTool("stepfix/rewrite",
			mcp.WithDescription("Rewrite legacy field inputs (defaults to dry-run; pass write=true to save)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the template JSON file")),
			mcp.WithBoolean("write", mcp.Description("Save the rewritten template in place")),
			mcp.WithString("strategy", mcp.Description("Rewrite strategy"), mcp.Enum("collapse", "confirm")),
			mcp.WithString("sentinel", mcp.Description("Settle wait check"), mcp.Enum("adjacent", "anywhere")),
			mcp.WithDestructiveHintAnnotation(false),
		),
		h.HandleRewrite,
	)

	s.AddTool(
		mcp.NewTool("stepfix/schema",
			mcp.WithDescription("Export stepfix JSON Schema (template or profile)"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type"), mcp.Enum("template", "profile")),
		),
		h.HandleSchema,
	)

	return s
}
