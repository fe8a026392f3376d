package domain

import (
	"strings"
	"unicode"
)

// Tool is a callable function derived from one API operation and exposed over MCP.
type Tool struct {
	// Name is unique within a catalogue and at most MaxToolNameLength characters long.
	Name string `json:"name"`

	// Description tells the model what the operation does and how it can fail.
	Description string `json:"description"`

	// InputSchema is always an object schema carrying the document's components in $defs.
	InputSchema *Schema `json:"inputSchema"`

	// ReturnSchema describes the success response. Nil when the operation declares none.
	ReturnSchema *Schema `json:"returnSchema,omitempty"`
}

// MaxToolNameLength is the longest tool name accepted by MCP clients.
const MaxToolNameLength = 64

// HTTPMethod is the closed set of verbs that produce tools.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodPatch  HTTPMethod = "PATCH"
)

// Methods lists the supported verbs in catalogue order.
var Methods = []HTTPMethod{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch}

// ReadOnly reports whether calls with this verb leave server state untouched.
func (m HTTPMethod) ReadOnly() bool {
	return m == MethodGet
}

// RequestKind is the closed set of MCP requests the bridge answers.
type RequestKind string

const (
	RequestListTools RequestKind = "tools/list"
	RequestCallTool  RequestKind = "tools/call"
)

// Annotations are the MCP behaviour hints attached to a listed tool.
type Annotations struct {
	Title           string
	ReadOnlyHint    bool
	DestructiveHint bool
}

// AnnotationsFor derives the hints for an operation identifier and verb.
func AnnotationsFor(operationID string, method HTTPMethod) Annotations {
	return Annotations{
		Title:           TitleFromOperationID(operationID),
		ReadOnlyHint:    method.ReadOnly(),
		DestructiveHint: !method.ReadOnly(),
	}
}

// TitleFromOperationID splits an identifier at camelCase boundaries and at
// '_', '-', '.' and whitespace, then title-cases every word.
// "retrieveABlock_v2" becomes "Retrieve A Block V2".
func TitleFromOperationID(id string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(id)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
