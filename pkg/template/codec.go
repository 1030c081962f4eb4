package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/kaptinlin/jsonrepair"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultIndent is the indentation used by the form authoring tool.
const DefaultIndent = "    "

// Document is a whole persisted template: a root object holding the step
// list plus any other root fields, re-emitted in their original order.
type Document struct {
	Steps StepList

	root            Params
	trailingNewline bool

	// Repaired is set when the source only parsed after JSON repair.
	Repaired bool
}

// NewDocument builds a document holding only a step list.
func NewDocument(steps StepList) *Document {
	return &Document{Steps: steps, trailingNewline: true}
}

// WithSteps returns a copy of d with the root step list replaced.
func (d *Document) WithSteps(steps StepList) *Document {
	out := *d
	out.Steps = steps
	return &out
}

// Root returns the root fields other than steps.
func (d *Document) Root() Params { return d.root.Without(ParamSteps) }

// LoadError describes a document that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load template: %v", e.Err)
	}
	return fmt.Sprintf("load template %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions control decoding.
type LoadOptions struct {
	// Repair runs a JSON repair pass over sources that fail to parse.
	Repair bool
}

// Load decodes a document from r.
func Load(r io.Reader, opts LoadOptions) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	doc, err := Decode(data, opts)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	return doc, nil
}

// LoadFile reads and decodes a document from disk.
func LoadFile(path string, opts LoadOptions) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	doc, err := Decode(data, opts)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return doc, nil
}

// Decode parses document bytes.
func Decode(data []byte, opts LoadOptions) (*Document, error) {
	doc, err := decode(data)
	if err == nil || !opts.Repair {
		return doc, err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return nil, fmt.Errorf("%w (repair failed: %v)", err, rerr)
	}
	doc, err2 := decode([]byte(fixed))
	if err2 != nil {
		return nil, fmt.Errorf("after repair: %w", err2)
	}
	doc.Repaired = true
	doc.trailingNewline = bytes.HasSuffix(data, []byte("\n"))
	return doc, nil
}

func decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("document root must be a JSON object")
	}
	if !json.Valid(trimmed) {
		var v any
		err := json.Unmarshal(trimmed, &v)
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	m := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(trimmed, m); err != nil {
		return nil, fmt.Errorf("decode root: %w", err)
	}
	raw, ok := m.Get(ParamSteps)
	if !ok {
		return nil, errors.New(`document root has no "steps" array`)
	}
	var steps StepList
	if err := decodeList(raw, &steps, "steps"); err != nil {
		return nil, err
	}
	m.Set(ParamSteps, nil)
	return &Document{
		Steps:           steps,
		root:            Params{m: m},
		trailingNewline: bytes.HasSuffix(data, []byte("\n")),
	}, nil
}

func decodeList(raw json.RawMessage, out *StepList, where string) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return fmt.Errorf("%s: expected an array of steps", where)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	list := make(StepList, 0, len(items))
	for i, item := range items {
		var s Step
		if err := s.decode(item, fmt.Sprintf("%s[%d]", where, i)); err != nil {
			return err
		}
		list = append(list, s)
	}
	*out = list
	return nil
}

// UnmarshalJSON decodes one step, keeping field and parameter order.
func (s *Step) UnmarshalJSON(data []byte) error {
	return s.decode(data, "step")
}

func (s *Step) decode(data []byte, where string) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("%s: expected an object", where)
	}
	top := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, top); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	var out Step
	if raw, ok := top.Get("action"); ok {
		if err := json.Unmarshal(raw, &out.Action); err != nil {
			return fmt.Errorf("%s.action: must be a string", where)
		}
	}
	extra := orderedmap.New[string, json.RawMessage]()
	for pair := top.Oldest(); pair != nil; pair = pair.Next() {
		out.order = append(out.order, pair.Key)
		switch pair.Key {
		case "action":
		case "comment":
			if err := json.Unmarshal(pair.Value, &out.Comment); err != nil {
				return fmt.Errorf("%s.comment: must be a string", where)
			}
		case "params":
			p, err := out.decodeParams(pair.Value, where+".params")
			if err != nil {
				return err
			}
			out.params = p
		default:
			extra.Set(pair.Key, pair.Value)
		}
	}
	if out.Action == "" {
		return fmt.Errorf("%s: missing action", where)
	}
	if extra.Len() > 0 {
		out.extra = Params{m: extra}
	}
	*s = out
	return nil
}

func (s *Step) decodeParams(raw json.RawMessage, where string) (Params, error) {
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" {
		return Params{}, nil
	}
	if len(raw) == 0 || raw[0] != '{' {
		return Params{}, fmt.Errorf("%s: expected an object", where)
	}
	m := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, m); err != nil {
		return Params{}, fmt.Errorf("%s: %w", where, err)
	}
	for _, key := range nestedKeys(s.Kind()) {
		v, ok := m.Get(key)
		if !ok {
			continue
		}
		var list StepList
		if err := decodeList(v, &list, where+"."+key); err != nil {
			return Params{}, err
		}
		switch key {
		case ParamSteps:
			s.body = list
		case ParamThenSteps:
			s.then = list
		case ParamElseSteps:
			s.els = list
		}
		m.Set(key, nil)
	}
	return Params{m: m}, nil
}

func nestedKeys(k Kind) []string {
	switch k {
	case KindForEach, KindForEachProperty:
		return []string{ParamSteps}
	case KindIf:
		return []string{ParamThenSteps, ParamElseSteps}
	}
	return nil
}

// MarshalJSON encodes the step compactly in its original field order.
func (s Step) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s Step) fieldOrder() []string {
	if s.order == nil {
		order := []string{"action"}
		if s.Comment != "" {
			order = append(order, "comment")
		}
		if s.params.Len() > 0 || s.Kind() != KindLeaf {
			order = append(order, "params")
		}
		return order
	}
	order := s.order
	if !slices.Contains(order, "params") && (s.params.Len() > 0 || s.Kind() != KindLeaf) {
		order = append(slices.Clone(order), "params")
	}
	return order
}

func (s Step) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, key := range s.fieldOrder() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, key)
		switch key {
		case "action":
			buf.Write(mustEncodeValue(s.Action))
		case "comment":
			buf.Write(mustEncodeValue(s.Comment))
		case "params":
			if err := s.encodeParams(buf); err != nil {
				return err
			}
		default:
			raw, _ := s.extra.Raw(key)
			if len(raw) == 0 {
				raw = json.RawMessage("null")
			}
			buf.Write(raw)
		}
	}
	buf.WriteByte('}')
	return nil
}

func (s Step) encodeParams(buf *bytes.Buffer) error {
	p := s.params
	for _, key := range nestedKeys(s.Kind()) {
		p = p.reserve(key)
	}
	buf.WriteByte('{')
	for i, key := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, key)
		if list, ok := s.listFor(key); ok {
			if err := encodeList(buf, list); err != nil {
				return err
			}
			continue
		}
		raw, _ := p.Raw(key)
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return nil
}

func encodeList(buf *bytes.Buffer, l StepList) error {
	buf.WriteByte('[')
	for i, s := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := s.encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeKey(buf *bytes.Buffer, key string) {
	buf.Write(mustEncodeValue(key))
	buf.WriteByte(':')
}

// EncodeOptions control document output.
type EncodeOptions struct {
	// Indent defaults to four spaces.
	Indent string
}

// Marshal encodes the document, indented, without HTML escaping.
func Marshal(d *Document, opts EncodeOptions) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	root := d.root
	if !root.Has(ParamSteps) {
		root = root.reserve(ParamSteps)
	}
	for i, key := range root.Keys() {
		if i > 0 {
			compact.WriteByte(',')
		}
		writeKey(&compact, key)
		if key == ParamSteps {
			if err := encodeList(&compact, d.Steps); err != nil {
				return nil, err
			}
			continue
		}
		raw, _ := root.Raw(key)
		compact.Write(raw)
	}
	compact.WriteByte('}')

	indent := opts.Indent
	if indent == "" {
		indent = DefaultIndent
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", indent); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	if d.trailingNewline {
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

// Encode writes the document to w.
func Encode(w io.Writer, d *Document, opts EncodeOptions) error {
	data, err := Marshal(d, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SaveOptions control how a document is written to disk.
type SaveOptions struct {
	EncodeOptions
	// Backup copies the existing file to path+".bak" before replacing it.
	Backup bool
}

// SaveFile writes the document atomically: a temporary file in the target
// directory is renamed over path once fully written.
func SaveFile(path string, d *Document, opts SaveOptions) error {
	data, err := Marshal(d, opts.EncodeOptions)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
		if opts.Backup {
			if err := copyFile(path, path+".bak", mode); err != nil {
				return fmt.Errorf("backup %s: %w", path, err)
			}
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, mode)
}
