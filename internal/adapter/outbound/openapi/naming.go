package openapi

import (
	"fmt"
	"unicode/utf8"

	"github.com/i2y/restmcp/internal/domain"
)

// minNameBudget keeps room for a suffixed name when the namespace is very long.
const minNameBudget = 8

// nameAllocator hands out catalogue-unique tool names for one build.
//
// An identifier that fits the budget is used as is. One that is too long, or
// already taken, is cut and given a "-NNNN" suffix from a counter that starts
// at 1 for every build. The exposed name is "<namespace>-<name>", and the
// budget is chosen so it never exceeds domain.MaxToolNameLength.
type nameAllocator struct {
	namespace string
	budget    int
	counter   int
	used      map[string]struct{}
}

func newNameAllocator(namespace string) *nameAllocator {
	budget := domain.MaxToolNameLength
	if namespace != "" {
		budget -= utf8.RuneCountInString(namespace) + 1
	}
	if budget < minNameBudget {
		budget = minNameBudget
	}
	return &nameAllocator{
		namespace: namespace,
		budget:    budget,
		used:      make(map[string]struct{}),
	}
}

// Allocate returns the exposed tool name for an operation identifier.
func (a *nameAllocator) Allocate(operationID string) string {
	name := operationID
	if utf8.RuneCountInString(name) > a.budget || a.taken(name) {
		name = a.suffixed(operationID)
	}
	a.used[name] = struct{}{}
	if a.namespace == "" {
		return name
	}
	return a.namespace + "-" + name
}

func (a *nameAllocator) suffixed(id string) string {
	runes := []rune(id)
	for {
		a.counter++
		suffix := fmt.Sprintf("-%04d", a.counter)
		keep := a.budget - len(suffix)
		if keep > len(runes) {
			keep = len(runes)
		}
		name := string(runes[:keep]) + suffix
		if !a.taken(name) {
			return name
		}
	}
}

func (a *nameAllocator) taken(name string) bool {
	_, ok := a.used[name]
	return ok
}
