// Package diff renders line-based unified diffs of encoded templates.
package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Generator handles unified diff generation
type Generator struct {
	contextLines int
	colorEnabled bool
}

// NewGenerator creates a new diff generator
func NewGenerator(contextLines int, colorEnabled bool) *Generator {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Generator{
		contextLines: contextLines,
		colorEnabled: colorEnabled,
	}
}

// DiffResult contains the generated diff and statistics
type DiffResult struct {
	UnifiedDiff  string
	AddedLines   int
	DeletedLines int
	Hunks        int
}

// Changed reports whether the inputs differ.
func (dr *DiffResult) Changed() bool { return dr.Hunks > 0 }

type lineOp struct {
	kind diffmatchpatch.Operation
	text string
}

// GenerateUnified creates a unified diff between old and new content
func (g *Generator) GenerateUnified(oldContent, newContent, filename string) (*DiffResult, error) {
	if oldContent == newContent {
		return &DiffResult{}, nil
	}

	// Diff whole lines: map each line to a rune, diff, map back.
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var ops []lineOp
	for _, d := range diffs {
		for _, l := range splitLines(d.Text) {
			ops = append(ops, lineOp{kind: d.Type, text: l})
		}
	}

	result := &DiffResult{}
	var out strings.Builder
	out.WriteString(g.colorize("--- a/"+filename+"\n", color.FgRed))
	out.WriteString(g.colorize("+++ b/"+filename+"\n", color.FgGreen))

	for _, h := range g.hunks(ops) {
		result.Hunks++
		out.WriteString(g.colorize(h.header(), color.FgCyan))
		for _, op := range ops[h.from:h.to] {
			line := strings.TrimSuffix(op.text, "\n")
			switch op.kind {
			case diffmatchpatch.DiffInsert:
				result.AddedLines++
				out.WriteString(g.colorize("+"+line+"\n", color.FgGreen))
			case diffmatchpatch.DiffDelete:
				result.DeletedLines++
				out.WriteString(g.colorize("-"+line+"\n", color.FgRed))
			default:
				out.WriteString(" " + line + "\n")
			}
			if !strings.HasSuffix(op.text, "\n") {
				out.WriteString("\\ No newline at end of file\n")
			}
		}
	}
	result.UnifiedDiff = out.String()
	return result, nil
}

// Documents diffs the encoded forms of two documents.
func (g *Generator) Documents(before, after *template.Document, filename string, opts template.EncodeOptions) (*DiffResult, error) {
	old, err := template.Marshal(before, opts)
	if err != nil {
		return nil, fmt.Errorf("encode original: %w", err)
	}
	cur, err := template.Marshal(after, opts)
	if err != nil {
		return nil, fmt.Errorf("encode rewritten: %w", err)
	}
	return g.GenerateUnified(string(old), string(cur), filename)
}

type hunk struct {
	from, to           int // op range
	oldStart, oldCount int
	newStart, newCount int
}

func (h hunk) header() string {
	return fmt.Sprintf("@@ -%s +%s @@\n", span(h.oldStart, h.oldCount), span(h.newStart, h.newCount))
}

func span(start, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", start-1)
	}
	if count == 1 {
		return fmt.Sprint(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// hunks groups changed lines with their surrounding context. Changes
// separated by at most twice the context size share a hunk.
func (g *Generator) hunks(ops []lineOp) []hunk {
	keep := make([]bool, len(ops))
	for i, op := range ops {
		if op.kind == diffmatchpatch.DiffEqual {
			continue
		}
		for j := max(i-g.contextLines, 0); j <= min(i+g.contextLines, len(ops)-1); j++ {
			keep[j] = true
		}
	}

	var out []hunk
	oldLine, newLine := 1, 1
	for i := 0; i < len(ops); {
		if !keep[i] {
			oldLine, newLine = advance(ops[i], oldLine, newLine)
			i++
			continue
		}
		h := hunk{from: i, oldStart: oldLine, newStart: newLine}
		for ; i < len(ops) && keep[i]; i++ {
			switch ops[i].kind {
			case diffmatchpatch.DiffInsert:
				h.newCount++
			case diffmatchpatch.DiffDelete:
				h.oldCount++
			default:
				h.oldCount++
				h.newCount++
			}
			oldLine, newLine = advance(ops[i], oldLine, newLine)
		}
		h.to = i
		out = append(out, h)
	}
	return out
}

func advance(op lineOp, oldLine, newLine int) (int, int) {
	switch op.kind {
	case diffmatchpatch.DiffInsert:
		return oldLine, newLine + 1
	case diffmatchpatch.DiffDelete:
		return oldLine + 1, newLine
	}
	return oldLine + 1, newLine + 1
}

func splitLines(s string) []string {
	parts := strings.SplitAfter(s, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// colorize applies color to text if color is enabled
func (g *Generator) colorize(text string, colorAttr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	c := color.New(colorAttr)
	c.EnableColor()
	return c.Sprint(text)
}

// FormatSummary returns a human-readable summary of changes
func (dr *DiffResult) FormatSummary() string {
	if dr.AddedLines == 0 && dr.DeletedLines == 0 {
		return "No changes"
	}

	parts := []string{}
	if dr.AddedLines > 0 {
		parts = append(parts, fmt.Sprintf("+%d lines", dr.AddedLines))
	}
	if dr.DeletedLines > 0 {
		parts = append(parts, fmt.Sprintf("-%d lines", dr.DeletedLines))
	}

	return strings.Join(parts, ", ")
}
