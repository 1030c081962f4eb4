package template

import (
	"regexp"
	"slices"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// Placeholders returns the ${name} references in s, in order, deduplicated.
func Placeholders(s string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		name := strings.TrimSpace(m[1])
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// Root returns the variable name a placeholder is rooted at:
// "employee.ChargeJob" -> "employee".
func Root(name string) string {
	if i := strings.IndexAny(name, ".["); i >= 0 {
		return name[:i]
	}
	return name
}

// Substitute replaces known ${name} references in s. Unknown names are left
// in place.
func Substitute(s string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-1])
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// StringParams returns every string-valued parameter of a step, including
// strings nested inside arrays and objects.
func (s Step) StringParams() map[string][]string {
	out := map[string][]string{}
	for _, k := range s.params.Keys() {
		v, ok := s.params.Value(k)
		if !ok {
			continue
		}
		collectStrings(v, func(str string) { out[k] = append(out[k], str) })
	}
	return out
}

func collectStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case []any:
		for _, e := range t {
			collectStrings(e, fn)
		}
	case map[string]any:
		for _, e := range t {
			collectStrings(e, fn)
		}
	}
}

// SubstituteStep returns a copy of s with placeholders replaced in every
// string-valued parameter.
func SubstituteStep(s Step, vars map[string]string) Step {
	out := s
	for _, k := range s.params.Keys() {
		v, ok := s.params.Value(k)
		if !ok {
			continue
		}
		nv, changed := substituteValue(v, vars)
		if changed {
			out = out.WithParam(k, nv)
		}
	}
	return out
}

// SubstituteList applies SubstituteStep across a whole tree.
func SubstituteList(l StepList, vars map[string]string) StepList {
	return Map(l, func(_ Path, s Step) Step { return SubstituteStep(s, vars) })
}

func substituteValue(v any, vars map[string]string) (any, bool) {
	switch t := v.(type) {
	case string:
		r := Substitute(t, vars)
		return r, r != t
	case []any:
		changed := false
		out := make([]any, len(t))
		for i, e := range t {
			ne, c := substituteValue(e, vars)
			out[i], changed = ne, changed || c
		}
		return out, changed
	case map[string]any:
		// Left untouched: re-encoding a decoded object loses its key order.
		return t, false
	}
	return v, false
}
