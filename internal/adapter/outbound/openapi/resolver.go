package openapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/jsonpointer"
)

var (
	ErrCyclicReference            = errors.New("cyclic reference")
	ErrReferenceNotFound          = errors.New("reference not found")
	ErrUnsupportedReference       = errors.New("unsupported reference")
	ErrOperationMissingIdentifier = errors.New("operation has no operationId")
)

// RefSet holds the reference pointers currently being expanded on one path.
type RefSet map[string]struct{}

func (s RefSet) clone() RefSet {
	c := make(RefSet, len(s)+1)
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

// Resolver follows document-local "#/..." pointers.
type Resolver struct {
	doc *openapi3.T
}

// NewResolver creates a Resolver over doc.
func NewResolver(doc *openapi3.T) *Resolver {
	return &Resolver{doc: doc}
}

// Resolve returns the node ptr points at. The pointer is recorded in
// inProgress; a pointer already present there yields ErrCyclicReference.
// The node is whatever the document model holds at that location, e.g.
// *openapi3.Schema, *openapi3.Parameter or *openapi3.Ref for a component
// that is itself an alias.
func (r *Resolver) Resolve(ptr string, inProgress RefSet) (any, error) {
	if !strings.HasPrefix(ptr, "#/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedReference, ptr)
	}
	if _, busy := inProgress[ptr]; busy {
		return nil, fmt.Errorf("%w: %s", ErrCyclicReference, ptr)
	}
	inProgress[ptr] = struct{}{}

	p, err := jsonpointer.New(ptr[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedReference, ptr, err)
	}
	node, _, err := p.Get(r.doc)
	if err != nil || isNilNode(node) {
		return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, ptr)
	}
	return node, nil
}

// ResolveSchema resolves ptr to a schema, following component aliases.
func (r *Resolver) ResolveSchema(ptr string, inProgress RefSet) (*openapi3.Schema, error) {
	node, err := r.Resolve(ptr, inProgress)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *openapi3.Ref:
		return r.ResolveSchema(n.Ref, inProgress)
	case *openapi3.SchemaRef:
		if n.Ref != "" {
			return r.ResolveSchema(n.Ref, inProgress)
		}
		if n.Value != nil {
			return n.Value, nil
		}
	case *openapi3.Schema:
		return n, nil
	case openapi3.Schema:
		return &n, nil
	}
	return nil, fmt.Errorf("%w: %s is not a schema", ErrReferenceNotFound, ptr)
}

// ResolveParameter returns the parameter behind ref, resolving references.
func (r *Resolver) ResolveParameter(ref *openapi3.ParameterRef) (*openapi3.Parameter, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: empty parameter", ErrReferenceNotFound)
	}
	if ref.Ref == "" {
		return ref.Value, nil
	}
	return resolveTyped[openapi3.Parameter](r, ref.Ref, RefSet{})
}

// ResolveRequestBody returns the request body behind ref, resolving references.
func (r *Resolver) ResolveRequestBody(ref *openapi3.RequestBodyRef) (*openapi3.RequestBody, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: empty request body", ErrReferenceNotFound)
	}
	if ref.Ref == "" {
		return ref.Value, nil
	}
	return resolveTyped[openapi3.RequestBody](r, ref.Ref, RefSet{})
}

// ResolveResponse returns the response behind ref, resolving references.
func (r *Resolver) ResolveResponse(ref *openapi3.ResponseRef) (*openapi3.Response, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: empty response", ErrReferenceNotFound)
	}
	if ref.Ref == "" {
		return ref.Value, nil
	}
	return resolveTyped[openapi3.Response](r, ref.Ref, RefSet{})
}

func resolveTyped[T any](r *Resolver, ptr string, inProgress RefSet) (*T, error) {
	node, err := r.Resolve(ptr, inProgress)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *T:
		return n, nil
	case T:
		return &n, nil
	case *openapi3.Ref:
		return resolveTyped[T](r, n.Ref, inProgress)
	}
	return nil, fmt.Errorf("%w: %s has unexpected type %T", ErrReferenceNotFound, ptr, node)
}

func isNilNode(node any) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *openapi3.Schema:
		return n == nil
	case *openapi3.Parameter:
		return n == nil
	case *openapi3.RequestBody:
		return n == nil
	case *openapi3.Response:
		return n == nil
	}
	return false
}

// componentSchemaName returns X for "#/components/schemas/X[/...]".
func componentSchemaName(ptr string) (string, bool) {
	rest, ok := strings.CutPrefix(ptr, "#/components/schemas/")
	if !ok || rest == "" {
		return "", false
	}
	name, _, _ := strings.Cut(rest, "/")
	return unescapePointerToken(name), true
}

// localRef rewrites a component schema pointer into the tool-local form.
// Deeper pointers keep their suffix so they stay resolvable inside $defs.
func localRef(ptr string) string {
	return "#/$defs/" + strings.TrimPrefix(ptr, "#/components/schemas/")
}

func unescapePointerToken(s string) string {
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}
