package template

import (
	"strconv"
	"strings"
)

// PathElem addresses one step inside one list: the nested list key that
// holds it ("steps" at the root) and its position.
type PathElem struct {
	Key   string
	Index int
}

// Path locates a step from the root list down.
type Path []PathElem

// Depth is the nesting level; root steps are at depth 0.
func (p Path) Depth() int { return len(p) - 1 }

// Child returns a copy of p extended by one element.
func (p Path) Child(key string, index int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, PathElem{Key: key, Index: index})
}

// String renders the path in JSON-pointer-like dotted form,
// e.g. steps[2].params.thenSteps[0].
func (p Path) String() string {
	var b strings.Builder
	for i, e := range p {
		if i > 0 {
			b.WriteString(".params.")
		}
		b.WriteString(e.Key)
		b.WriteString("[" + strconv.Itoa(e.Index) + "]")
	}
	return b.String()
}

// Walk visits every step in pre-order. Returning false from fn skips the
// step's nested lists.
func Walk(l StepList, fn func(Path, Step) bool) {
	walk(l, Path{}, ParamSteps, fn)
}

func walk(l StepList, parent Path, key string, fn func(Path, Step) bool) {
	for i, s := range l {
		p := parent.Child(key, i)
		if !fn(p, s) {
			continue
		}
		for _, c := range s.Children() {
			walk(c.Steps, p, c.Key, fn)
		}
	}
}

// Fold reduces the tree in pre-order.
func Fold[T any](l StepList, init T, fn func(T, Path, Step) T) T {
	acc := init
	Walk(l, func(p Path, s Step) bool {
		acc = fn(acc, p, s)
		return true
	})
	return acc
}

// Map rebuilds the tree bottom-up: nested lists are mapped first, then fn
// receives the step with its already-mapped children.
func Map(l StepList, fn func(Path, Step) Step) StepList {
	return mapList(l, Path{}, ParamSteps, fn)
}

func mapList(l StepList, parent Path, key string, fn func(Path, Step) Step) StepList {
	if l == nil {
		return nil
	}
	out := make(StepList, len(l))
	for i, s := range l {
		p := parent.Child(key, i)
		switch s.Kind() {
		case KindForEach, KindForEachProperty:
			if s.body != nil {
				s = s.WithBody(mapList(s.body, p, ParamSteps, fn))
			}
		case KindIf:
			if s.then != nil || s.els != nil {
				s = s.WithBranches(mapList(s.then, p, ParamThenSteps, fn), mapList(s.els, p, ParamElseSteps, fn))
			}
		}
		out[i] = fn(p, s)
	}
	return out
}

// Find returns the first step in pre-order matching pred.
func Find(l StepList, pred func(Step) bool) (Step, Path, bool) {
	var (
		found Step
		at    Path
		ok    bool
	)
	Walk(l, func(p Path, s Step) bool {
		if ok {
			return false
		}
		if pred(s) {
			found, at, ok = s, p, true
			return false
		}
		return true
	})
	return found, at, ok
}

// CountActions tallies steps by action across the whole tree.
func CountActions(l StepList) map[string]int {
	return Fold(l, map[string]int{}, func(acc map[string]int, _ Path, s Step) map[string]int {
		acc[s.Action]++
		return acc
	})
}
