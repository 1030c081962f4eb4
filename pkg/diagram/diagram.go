// Package diagram generates visual diagrams from automation step trees.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Options tune the rendering.
type Options struct {
	// Title names the diagram; defaults to "Template".
	Title string
	// ThenLabel and ElseLabel name the branches of if steps.
	ThenLabel string
	ElseLabel string
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Template"
	}
	if o.ThenLabel == "" {
		o.ThenLabel = "then"
	}
	if o.ElseLabel == "" {
		o.ElseLabel = "else"
	}
	return o
}

// Generate produces a diagram string from a step list.
func Generate(steps template.StepList, format Format, opts Options) (string, error) {
	opts = opts.withDefaults()
	switch format {
	case FormatMermaid:
		return generateMermaid(steps, opts), nil
	case FormatASCII:
		return generateASCII(steps, opts), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// GenerateDocument renders a whole document, titled with its name field.
func GenerateDocument(doc *template.Document, format Format, opts Options) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("nil document")
	}
	if opts.Title == "" {
		opts.Title, _ = doc.Root().String("name")
	}
	return Generate(doc.Steps, format, opts)
}

// --- Mermaid flowchart ---

type mermaid struct {
	b      strings.Builder
	opts   Options
	styled []string
}

func generateMermaid(steps template.StepList, opts Options) string {
	m := &mermaid{opts: opts}
	m.b.WriteString("flowchart TD\n")
	if len(steps) == 0 {
		return m.b.String()
	}

	m.line(fmt.Sprintf("START([%q])", escMermaid(opts.Title)))
	first, _ := m.list(steps, template.Path{}, template.ParamSteps)
	m.line("START --> " + first)

	for _, id := range m.styled {
		m.line(fmt.Sprintf("style %s fill:#1a3a4a,stroke:#0af", id))
	}
	return m.b.String()
}

func (m *mermaid) line(s string) { m.b.WriteString("    " + s + "\n") }

func (m *mermaid) edge(from, to, label string) {
	if label == "" {
		m.line(from + " --> " + to)
		return
	}
	m.line(fmt.Sprintf("%s -->|%q| %s", from, escMermaid(label), to))
}

// list emits a sequence and returns its entry node and exit nodes.
func (m *mermaid) list(l template.StepList, at template.Path, key string) (string, []string) {
	var first string
	var prev []string
	for i, s := range l {
		id, exits := m.step(s, at.Child(key, i))
		if first == "" {
			first = id
		}
		for _, e := range prev {
			m.edge(e, id, "")
		}
		prev = exits
	}
	return first, prev
}

func (m *mermaid) step(s template.Step, path template.Path) (string, []string) {
	id := nodeID(path)
	m.line(nodeDefinition(id, s))
	if s.Is(template.ActionRetryInput) {
		m.styled = append(m.styled, id)
	}

	switch s.Kind() {
	case template.KindForEach, template.KindForEachProperty:
		first, exits := m.list(s.Body(), path, template.ParamSteps)
		if first != "" {
			m.edge(id, first, "each")
			for _, e := range exits {
				m.line(e + " -.-> " + id)
			}
		}
		return id, []string{id}
	case template.KindIf:
		var exits []string
		for _, br := range []struct {
			key, label string
			steps      template.StepList
		}{
			{template.ParamThenSteps, m.opts.ThenLabel, s.Then()},
			{template.ParamElseSteps, m.opts.ElseLabel, s.Else()},
		} {
			first, ex := m.list(br.steps, path, br.key)
			if first == "" {
				exits = append(exits, id)
				continue
			}
			m.edge(id, first, br.label)
			exits = append(exits, ex...)
		}
		return id, slices.Compact(exits)
	}
	return id, []string{id}
}

func nodeDefinition(id string, s template.Step) string {
	label := escMermaid(stepIcon(s) + " " + title(s))
	switch s.Kind() {
	case template.KindIf:
		return fmt.Sprintf(`%s{"%s"}`, id, label)
	case template.KindForEach, template.KindForEachProperty:
		return fmt.Sprintf(`%s[["%s"]]`, id, label)
	}
	if s.Is(template.ActionRetryInput) {
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	}
	return fmt.Sprintf(`%s["%s"]`, id, label)
}

// nodeID derives a stable identifier from the step's position,
// e.g. steps[2].params.thenSteps[1] -> s2_t1.
func nodeID(p template.Path) string {
	parts := make([]string, len(p))
	for i, e := range p {
		prefix := "s"
		switch e.Key {
		case template.ParamThenSteps:
			prefix = "t"
		case template.ParamElseSteps:
			prefix = "e"
		}
		parts[i] = prefix + strconv.Itoa(e.Index)
	}
	return strings.Join(parts, "_")
}

// --- ASCII ---

func generateASCII(steps template.StepList, opts Options) string {
	var b strings.Builder
	name := opts.Title

	if len(steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Compute uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(steps, name)
	connCol := indent + 1 + boxWidth/2 // +1 accounts for the └/┌ border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	// Header, same width as body boxes, name centered.
	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, s := range steps {
		writeASCIIStep(&b, s, indent, boxWidth)

		if children := s.Children(); len(children) > 0 {
			b.WriteString(connPad + "│\n")
			brLines := nestedLines(s, opts, 1)

			// Branch box width = widest content line, minimum 9 (for diamond)
			brWidth := 9
			for _, l := range brLines {
				if w := runewidth.StringWidth(l); w > brWidth {
					brWidth = w
				}
			}
			// Ensure odd width so ◇ and ┬ land at center
			if brWidth%2 == 0 {
				brWidth++
			}
			brHalf := brWidth / 2

			brPad := strings.Repeat(" ", max(connCol-brHalf-1, 0))
			b.WriteString(brPad + "┌" + strings.Repeat("─", brHalf) + "◇" + strings.Repeat("─", brHalf) + "┐\n")
			for _, l := range brLines {
				lw := runewidth.StringWidth(l)
				b.WriteString(brPad + "│" + l + strings.Repeat(" ", brWidth-lw) + "│\n")
			}
			b.WriteString(brPad + "└" + strings.Repeat("─", brHalf) + "┬" + strings.Repeat("─", brHalf) + "┘\n")
		}

		if i < len(steps)-1 {
			b.WriteString(connPad + "│\n")
		}
	}
	return b.String()
}

// nestedLines renders the nested lists of s as indented lines.
func nestedLines(s template.Step, opts Options, depth int) []string {
	var lines []string
	ind := strings.Repeat("  ", depth)
	for _, c := range s.Children() {
		switch c.Key {
		case template.ParamThenSteps:
			lines = append(lines, ind+opts.ThenLabel+":")
		case template.ParamElseSteps:
			lines = append(lines, ind+opts.ElseLabel+":")
		}
		if len(c.Steps) == 0 {
			lines = append(lines, ind+"  (none) ")
		}
		for _, cs := range c.Steps {
			lines = append(lines, ind+"  "+stepIcon(cs)+" "+truncate(title(cs), 60)+" ")
			lines = append(lines, nestedLines(cs, opts, depth+2)...)
		}
	}
	return lines
}

// computeUniformBoxWidth returns the widest interior width needed
// across all steps and the header name.
func computeUniformBoxWidth(steps template.StepList, name string) int {
	minWidth := 22
	w := minWidth

	// Header name with padding
	nameWidth := runewidth.StringWidth(name) + 4 // "  name  "
	if nameWidth > w {
		w = nameWidth
	}

	for _, s := range steps {
		if sw := runewidth.StringWidth(boxContent(s)); sw > w {
			w = sw
		}
	}
	return w
}

func boxContent(s template.Step) string {
	return fmt.Sprintf(" %s %s ", stepIcon(s), truncate(title(s), 60))
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func writeASCIIStep(b *strings.Builder, s template.Step, indent, boxWidth int) {
	content := boxContent(s)
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	topBot := strings.Repeat("─", boxWidth)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + topBot + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func stepIcon(s template.Step) string {
	switch s.Action {
	case template.ActionForEach, template.ActionForEachProperty:
		return "↻"
	case template.ActionIf:
		return "◇"
	case template.ActionTypeInput:
		return "✎"
	case template.ActionRetryInput:
		return "⟳"
	case template.ActionPressKey, template.ActionPress:
		return "⏎"
	case template.ActionWait, template.ActionWaitForElement:
		return "⏱"
	case template.ActionParseChargeJob:
		return "⚙"
	default:
		return "○"
	}
}

// summaryParams are shown, first match wins, when a step has no comment.
var summaryParams = []string{"selector", "key", "duration", "message", "text", "url", "chargeJob", "filename"}

// title is the display label of a step: its comment, or its action and
// most telling parameter.
func title(s template.Step) string {
	if s.Comment != "" {
		return s.Comment
	}
	p := s.Params()
	str := func(k, def string) string {
		if v, ok := p.String(k); ok && v != "" {
			return v
		}
		if raw, ok := p.Raw(k); ok {
			return string(raw)
		}
		return def
	}
	switch s.Kind() {
	case template.KindForEach:
		return fmt.Sprintf("forEach %s in %s", str("itemName", "item"), str("items", str("array", "?")))
	case template.KindForEachProperty:
		return fmt.Sprintf("forEachProperty %s, %s of %s", str("keyName", "key"), str("valueName", "value"), str("object", "?"))
	case template.KindIf:
		return "if " + str("condition", "?")
	}
	for _, k := range summaryParams {
		if p.Has(k) {
			return s.Action + " " + str(k, "")
		}
	}
	return s.Action
}

// --- string helpers ---

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}
