// Package locate finds the two target branches of a template by walking a
// path of action tags, and substitutes rewritten branches back in.
package locate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// DefaultPath is the branch path of the attendance template family.
var DefaultPath = []string{template.ActionForEach, template.ActionForEachProperty, template.ActionIf}

// ErrStructureNotFound is matched by every *StructureNotFoundError.
var ErrStructureNotFound = errors.New("structure not found")

// StructureNotFoundError names the tag that could not be found and the depth
// (0-based) of the list that was scanned for it.
type StructureNotFoundError struct {
	Tag   string
	Depth int
	Path  []string
}

func (e *StructureNotFoundError) Error() string {
	return fmt.Sprintf("structure not found: no %q step at depth %d (path %s)",
		e.Tag, e.Depth, strings.Join(e.Path, " → "))
}

func (e *StructureNotFoundError) Is(target error) bool { return target == ErrStructureNotFound }

// Branches are the two step lists held by the final if step: Then is the
// regular procedure, Else the overtime one.
type Branches struct {
	Then template.StepList
	Else template.StepList
}

// Find selects, at each level, the first step whose action equals the next
// tag and descends into its nested list. The last tag must name an if step.
func Find(root template.StepList, path []string) (Branches, error) {
	if err := checkPath(path); err != nil {
		return Branches{}, err
	}
	list := root
	for depth, tag := range path {
		i := list.Index(0, func(s template.Step) bool { return s.Action == tag })
		if i < 0 {
			return Branches{}, &StructureNotFoundError{Tag: tag, Depth: depth, Path: path}
		}
		step := list[i]
		if depth == len(path)-1 {
			return Branches{Then: step.Then(), Else: step.Else()}, nil
		}
		list = step.Body()
	}
	return Branches{}, nil
}

// Replace returns a new root with the branches substituted along the same
// first-match path. Steps off the path are shared with root.
func Replace(root template.StepList, path []string, b Branches) (template.StepList, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return replace(root, path, 0, b)
}

func replace(list template.StepList, path []string, depth int, b Branches) (template.StepList, error) {
	tag := path[depth]
	i := list.Index(0, func(s template.Step) bool { return s.Action == tag })
	if i < 0 {
		return nil, &StructureNotFoundError{Tag: tag, Depth: depth, Path: path}
	}
	var updated template.Step
	if depth == len(path)-1 {
		updated = list[i].WithBranches(b.Then, b.Else)
	} else {
		body, err := replace(list[i].Body(), path, depth+1, b)
		if err != nil {
			return nil, err
		}
		updated = list[i].WithBody(body)
	}
	out := make(template.StepList, len(list))
	copy(out, list)
	out[i] = updated
	return out, nil
}

func checkPath(path []string) error {
	if len(path) == 0 {
		return errors.New("branch path is empty")
	}
	for _, tag := range path[:len(path)-1] {
		if k := template.KindOf(tag); k != template.KindForEach && k != template.KindForEachProperty {
			return fmt.Errorf("branch path: %q does not hold a nested step list", tag)
		}
	}
	if last := path[len(path)-1]; template.KindOf(last) != template.KindIf {
		return fmt.Errorf("branch path must end at an if step, got %q", last)
	}
	return nil
}
