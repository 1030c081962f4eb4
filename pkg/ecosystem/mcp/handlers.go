// Package mcp exposes stepfix operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ormasoftchile/stepfix/pkg/config"
	"github.com/ormasoftchile/stepfix/pkg/diff"
	"github.com/ormasoftchile/stepfix/pkg/rewrite"
	"github.com/ormasoftchile/stepfix/pkg/schema"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Handlers implements the tool callbacks.
type Handlers struct {
	cfg    config.RewriteConfig
	logger *zap.Logger
}

// NewHandlers returns handlers using cfg as the rewrite defaults.
func NewHandlers(cfg config.RewriteConfig, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{cfg: cfg, logger: logger}
}

// HandleValidate implements the stepfix/validate tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	p, err := h.cfg.LoadProfile()
	if err != nil {
		return errorResult(err.Error()), nil
	}

	doc, errs := schema.ValidateFile(path, p, template.LoadOptions{Repair: req.GetBool("repair", false)})
	if schema.HasErrors(errs) {
		return errorResult(formatFindings(errs, schema.SeverityError)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps)", path, countSteps(doc))
	if warn := formatFindings(errs, schema.SeverityWarning); warn != "" {
		msg += "\nwarnings: " + warn
	}
	return textResult(msg), nil
}

// HandleVerify implements the stepfix/verify tool.
func (h *Handlers) HandleVerify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	rw, err := h.rewriter(req, path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	doc, err := template.LoadFile(path, template.LoadOptions{})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	v, err := rw.Verify(doc)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(map[string]any{
		"upToDate": v.UpToDate(),
		"branches": v.Branches,
	}, "", "  ")
	return textResult(string(data)), nil
}

// HandleRewrite implements the stepfix/rewrite tool. Nothing is saved
// unless the write argument is true.
func (h *Handlers) HandleRewrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	write := req.GetBool("write", false)

	rw, err := h.rewriter(req, path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	doc, err := template.LoadFile(path, template.LoadOptions{})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, report, err := rw.RewriteDocument(doc)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	enc := template.EncodeOptions{Indent: h.cfg.IndentString()}
	d, err := diff.NewGenerator(h.cfg.DiffContext, false).Documents(doc, out, path, enc)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	written := false
	if write && report.Changed() {
		if err := template.SaveFile(path, out, template.SaveOptions{EncodeOptions: enc, Backup: h.cfg.Backup}); err != nil {
			return errorResult(err.Error()), nil
		}
		written = true
	}

	data, _ := json.MarshalIndent(map[string]any{
		"changed": report.Changed(),
		"written": written,
		"summary": d.FormatSummary(),
		"diff":    d.UnifiedDiff,
		"report":  report,
	}, "", "  ")
	return textResult(string(data)), nil
}

// HandleSchema implements the stepfix/schema tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		data []byte
		err  error
	)
	switch kind := req.GetString("type", ""); kind {
	case "template":
		data, err = schema.GenerateJSONSchema()
	case "profile":
		data, err = schema.GenerateProfileJSONSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q, use 'template' or 'profile'", kind)), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func (h *Handlers) rewriter(req mcp.CallToolRequest, path string) (*rewrite.Rewriter, error) {
	cfg := h.cfg
	cfg.Strategy = req.GetString("strategy", cfg.Strategy)
	cfg.Sentinel = req.GetString("sentinel", cfg.Sentinel)
	p, err := cfg.LoadProfile()
	if err != nil {
		return nil, err
	}
	return rewrite.New(p,
		rewrite.WithLogger(h.logger),
		rewrite.WithRunID(uuid.NewString()),
		rewrite.WithSource(path),
	), nil
}

func countSteps(doc *template.Document) int {
	if doc == nil {
		return 0
	}
	return template.Fold(doc.Steps, 0, func(n int, _ template.Path, _ template.Step) int { return n + 1 })
}

func formatFindings(errs []*schema.ValidationError, severity string) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == severity {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
