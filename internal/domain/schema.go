package domain

// SchemaType defines the kind of source an API document was fetched from.
type SchemaType string

const (
	SchemaTypeOpenAPI SchemaType = "openapi"
	SchemaTypeGitHub  SchemaType = "github" // OpenAPI documents hosted in a GitHub repository
)

// APISchema represents a fetched API document before conversion.
type APISchema struct {
	// Source indicates the origin of the document (URL, file path, github:// reference).
	Source string
	// Type specifies how the document was obtained.
	Type SchemaType
	// RawData holds the unprocessed document content when available.
	RawData []byte
	// ParsedData holds the parsed document, *openapi3.T for OpenAPI.
	// Kept as any so the domain does not depend on the parser.
	ParsedData any
}

// Schema is a JSON-Schema node as exposed to MCP clients.
//
// Type is either a string or a []string. AdditionalProperties is either a bool
// or a *Schema. Every "$ref" of the form "#/$defs/<name>" must resolve inside
// the Defs of the root schema it belongs to.
type Schema struct {
	Ref                  string             `json:"$ref,omitempty"`
	Type                 any                `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Format               string             `json:"format,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Default              any                `json:"default,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	OneOf                []*Schema          `json:"oneOf,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
	AllOf                []*Schema          `json:"allOf,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
}

// Clone returns a shallow copy of s. Child schemas are shared.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// HasType reports whether t is one of the schema's declared types.
func (s *Schema) HasType(t string) bool {
	if s == nil {
		return false
	}
	switch v := s.Type.(type) {
	case string:
		return v == t
	case []string:
		for _, x := range v {
			if x == t {
				return true
			}
		}
	}
	return false
}

// IsComposite reports whether the schema is a reference or a oneOf/anyOf/allOf composition.
func (s *Schema) IsComposite() bool {
	return s != nil && (s.Ref != "" || len(s.OneOf) > 0 || len(s.AnyOf) > 0 || len(s.AllOf) > 0)
}

// Walk calls fn for s and every schema nested under it, depth first.
// Defs are visited as well.
func (s *Schema) Walk(fn func(*Schema)) {
	if s == nil {
		return
	}
	fn(s)
	for _, p := range s.Properties {
		p.Walk(fn)
	}
	if ap, ok := s.AdditionalProperties.(*Schema); ok {
		ap.Walk(fn)
	}
	s.Items.Walk(fn)
	for _, group := range [][]*Schema{s.OneOf, s.AnyOf, s.AllOf} {
		for _, m := range group {
			m.Walk(fn)
		}
	}
	for _, d := range s.Defs {
		d.Walk(fn)
	}
}
