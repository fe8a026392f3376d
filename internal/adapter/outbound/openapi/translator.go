package openapi

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/restmcp/internal/domain"
)

const localFileSuffix = "(absolute paths to local files)"

// FallbackRecorder counts schemas that could not be translated faithfully.
type FallbackRecorder interface {
	RecordFallback(kind string)
}

type cacheSlot struct {
	schema *domain.Schema
	done   bool
}

// Translator converts OpenAPI schema objects into tool schemas.
//
// In preserved mode a component reference becomes {"$ref": "#/$defs/<name>"}.
// In inline mode it is expanded; expansions are cached per pointer, and a
// pointer met again while its own expansion is still running becomes the
// local reference instead, so cyclic type graphs terminate. A Translator
// belongs to one catalogue build.
type Translator struct {
	resolver  *Resolver
	doc       *openapi3.T
	cache     map[string]*cacheSlot
	fallbacks FallbackRecorder
	logger    *slog.Logger
}

// NewTranslator creates a Translator over doc. fallbacks may be nil.
func NewTranslator(doc *openapi3.T, fallbacks FallbackRecorder, logger *slog.Logger) *Translator {
	return &Translator{
		resolver:  NewResolver(doc),
		doc:       doc,
		cache:     make(map[string]*cacheSlot),
		fallbacks: fallbacks,
		logger:    logger.With("component", "SchemaTranslator"),
	}
}

// Resolver returns the resolver the translator follows references with.
func (t *Translator) Resolver() *Resolver { return t.resolver }

// Translate converts node. The result may be shared with other callers'
// results below the top level; callers modify only the returned node itself.
func (t *Translator) Translate(node *openapi3.SchemaRef, inProgress RefSet, inline bool) *domain.Schema {
	if node == nil {
		return &domain.Schema{}
	}
	if node.Ref != "" {
		return t.translateRef(node.Ref, inProgress, inline)
	}
	return t.TranslateSchema(node.Value, inProgress, inline)
}

// TranslateComponents translates every named component schema in preserved
// mode. The result is the $defs table attached to tool schemas.
func (t *Translator) TranslateComponents() map[string]*domain.Schema {
	defs := make(map[string]*domain.Schema)
	if t.doc == nil || t.doc.Components == nil {
		return defs
	}
	for name, ref := range t.doc.Components.Schemas {
		if ref == nil {
			continue
		}
		defs[name] = t.Translate(ref, RefSet{}, false)
	}
	return defs
}

func (t *Translator) translateRef(ptr string, inProgress RefSet, inline bool) *domain.Schema {
	_, isComponent := componentSchemaName(ptr)
	if !inline {
		if isComponent {
			return t.placeholder(ptr, true)
		}
		t.logger.Warn("Reference outside components/schemas expanded inline", slog.String("ref", ptr))
		t.fallback("non_component_ref")
		return t.expand(ptr, inProgress, false)
	}

	if slot, ok := t.cache[ptr]; ok {
		if slot.done {
			return slot.schema.Clone()
		}
		return t.placeholder(ptr, isComponent)
	}

	scope := inProgress.clone()
	target, err := t.resolver.ResolveSchema(ptr, scope)
	if err != nil {
		t.logger.Warn("Failed to resolve schema reference", slog.String("ref", ptr), slog.Any("error", err))
		t.fallback(fallbackKind(err))
		return t.placeholder(ptr, isComponent)
	}

	slot := &cacheSlot{}
	t.cache[ptr] = slot
	slot.schema = t.TranslateSchema(target, scope, inline)
	slot.done = true
	return slot.schema.Clone()
}

// expand resolves a non-component pointer and translates its target in
// place. Component references below it keep the given mode.
func (t *Translator) expand(ptr string, inProgress RefSet, inline bool) *domain.Schema {
	scope := inProgress.clone()
	target, err := t.resolver.ResolveSchema(ptr, scope)
	if err != nil {
		t.logger.Warn("Failed to resolve schema reference", slog.String("ref", ptr), slog.Any("error", err))
		t.fallback(fallbackKind(err))
		return t.placeholder(ptr, false)
	}
	return t.TranslateSchema(target, scope, inline)
}

// TranslateSchema converts an already resolved schema object.
func (t *Translator) TranslateSchema(s *openapi3.Schema, inProgress RefSet, inline bool) *domain.Schema {
	if s == nil {
		return &domain.Schema{}
	}
	out := &domain.Schema{
		Description: s.Description,
		Format:      s.Format,
		Enum:        s.Enum,
		Default:     s.Default,
	}

	switch types := s.Type.Slice(); len(types) {
	case 0:
	case 1:
		out.Type = types[0]
	default:
		out.Type = append([]string(nil), types...)
	}
	if s.Nullable {
		out.Type = withNull(out.Type)
	}

	if s.Format == "binary" {
		out.Format = "uri-reference"
		out.Description = strings.TrimSpace(s.Description + " " + localFileSuffix)
	}

	if s.Type.Includes("object") || len(s.Properties) > 0 {
		if len(s.Properties) > 0 {
			out.Properties = make(map[string]*domain.Schema, len(s.Properties))
			for name, prop := range s.Properties {
				out.Properties[name] = t.Translate(prop, inProgress, inline)
			}
		}
		out.AdditionalProperties = t.additionalProperties(s.AdditionalProperties, inProgress, inline)
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}

	if s.Items != nil {
		out.Items = t.Translate(s.Items, inProgress, inline)
	}

	out.OneOf = t.translateAll(s.OneOf, inProgress, inline)
	out.AnyOf = t.translateAll(s.AnyOf, inProgress, inline)
	out.AllOf = t.translateAll(s.AllOf, inProgress, inline)
	return out
}

func (t *Translator) additionalProperties(ap openapi3.AdditionalProperties, inProgress RefSet, inline bool) any {
	switch {
	case ap.Schema != nil:
		return t.Translate(ap.Schema, inProgress, inline)
	case ap.Has != nil && !*ap.Has:
		return false
	default:
		return true
	}
}

func (t *Translator) translateAll(refs openapi3.SchemaRefs, inProgress RefSet, inline bool) []*domain.Schema {
	if len(refs) == 0 {
		return nil
	}
	out := make([]*domain.Schema, len(refs))
	for i, r := range refs {
		out[i] = t.Translate(r, inProgress, inline)
	}
	return out
}

// placeholder stands in for a schema that is not expanded. Component
// pointers become local references into $defs. Any other pointer becomes
// a local reference named after its last segment with an empty description.
func (t *Translator) placeholder(ptr string, isComponent bool) *domain.Schema {
	if isComponent {
		return &domain.Schema{Ref: localRef(ptr)}
	}
	name := ptr
	if i := strings.LastIndexAny(ptr, "/#"); i >= 0 {
		name = ptr[i+1:]
	}
	return &domain.Schema{Ref: "#/$defs/" + unescapePointerToken(name)}
}

func (t *Translator) fallback(kind string) {
	if t.fallbacks != nil {
		t.fallbacks.RecordFallback(kind)
	}
}

func fallbackKind(err error) string {
	switch {
	case errors.Is(err, ErrCyclicReference):
		return "cyclic_reference"
	case errors.Is(err, ErrUnsupportedReference):
		return "unsupported_reference"
	default:
		return "reference_not_found"
	}
}

func withNull(typ any) any {
	switch v := typ.(type) {
	case string:
		if v == "null" {
			return v
		}
		return []string{v, "null"}
	case []string:
		for _, x := range v {
			if x == "null" {
				return v
			}
		}
		return append(v, "null")
	}
	return typ
}
