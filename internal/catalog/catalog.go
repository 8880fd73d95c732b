// Package catalog derives the renderer facing operation contracts for a set
// of detected elements.
package catalog

import (
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// Builder turns detected elements into method descriptors.
type Builder struct {
	testIDAttrs []string
	logger      *zap.Logger
}

// NewBuilder creates a Builder. testIDAttrs is the same ordered list the
// scanner used, so nouns follow the same attribute priority as element IDs.
func NewBuilder(testIDAttrs []string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		testIDAttrs: slices.Clone(testIDAttrs),
		logger:      logger.Named("catalog"),
	}
}

// Build returns one descriptor per (element, operation) pair in document
// order of the owning elements, and vocabulary order within an element.
// Names are unique across the result.
func (b *Builder) Build(elements []schemas.DetectedElement) []schemas.MethodDescriptor {
	ordered := slices.Clone(elements)
	slices.SortStableFunc(ordered, func(a, c schemas.DetectedElement) int {
		return a.DocumentIndex - c.DocumentIndex
	})

	names := newNameSet()
	var methods []schemas.MethodDescriptor
	for _, el := range ordered {
		noun := Noun(el, b.testIDAttrs)
		for _, op := range Vocabulary(el.Role) {
			name := names.claim(MethodName(op.Kind, noun))
			methods = append(methods, schemas.MethodDescriptor{
				Name:           name,
				OwnerElementID: el.ID,
				Operation:      op.Kind,
				Parameters:     slices.Clone(op.Params),
				Returns:        op.Returns,
			})
		}
	}

	b.logger.Debug("Catalog built.",
		zap.Int("elements", len(ordered)),
		zap.Int("methods", len(methods)),
		zap.Int("renamed", names.renamed),
	)
	return methods
}

// nameSet hands out unique names, suffixing repeats with 2, 3, ... in the
// order they are first requested.
type nameSet struct {
	used    map[string]struct{}
	next    map[string]int
	renamed int
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]struct{}), next: make(map[string]int)}
}

func (s *nameSet) claim(base string) string {
	if _, taken := s.used[base]; !taken {
		s.used[base] = struct{}{}
		return base
	}
	n := s.next[base]
	if n < 2 {
		n = 2
	}
	for {
		candidate := base + strconv.Itoa(n)
		n++
		if _, taken := s.used[candidate]; !taken {
			s.next[base] = n
			s.used[candidate] = struct{}{}
			s.renamed++
			return candidate
		}
	}
}
