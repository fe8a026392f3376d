package openapi

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"mime"
	"net/url"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

// DefaultNamespace is prepended to every exposed tool name.
const DefaultNamespace = "API"

// DefaultDescriptionPrefixes maps a document's info.title to the text put in
// front of every tool description of that API.
var DefaultDescriptionPrefixes = map[string]string{
	"Notion API": "Notion | ",
}

// successCodes are the responses a return schema is taken from, in order.
var successCodes = []string{"200", "201", "202", "204"}

// GeneratorOptions configures a ToolGenerator.
type GeneratorOptions struct {
	// Namespace is prepended to tool names as "<Namespace>-". Empty disables it.
	Namespace string
	// BaseURL overrides the document's servers block when set.
	BaseURL string
	// DescriptionPrefixes defaults to DefaultDescriptionPrefixes when nil.
	DescriptionPrefixes map[string]string
	// Fallbacks receives translation anomalies. May be nil.
	Fallbacks FallbackRecorder
}

// ToolGenerator implements usecase.ToolGenerator for OpenAPI documents.
type ToolGenerator struct {
	opts       GeneratorOptions
	logger     *slog.Logger
	baseLogger *slog.Logger
}

// NewToolGenerator creates a new OpenAPI ToolGenerator.
func NewToolGenerator(opts GeneratorOptions, logger *slog.Logger) *ToolGenerator {
	if opts.DescriptionPrefixes == nil {
		opts.DescriptionPrefixes = DefaultDescriptionPrefixes
	}
	return &ToolGenerator{
		opts:       opts,
		logger:     logger.With("component", "openapi_generator"),
		baseLogger: logger,
	}
}

// Generate walks every path and supported method of the document and builds
// one tool and one lookup entry per operation. Operations without an
// operationId are skipped. Schema anomalies degrade to placeholders and never
// fail the build.
func (g *ToolGenerator) Generate(schema domain.APISchema) ([]domain.Tool, []usecase.InvocationDetails, error) {
	log := g.logger.With(slog.String("source", schema.Source))

	doc, ok := schema.ParsedData.(*openapi3.T)
	if !ok || doc == nil {
		log.Error("Invalid or missing parsed OpenAPI document in APISchema.")
		return nil, nil, fmt.Errorf("invalid or missing parsed OpenAPI document in APISchema")
	}

	host, basePath, err := g.determineHostAndBasePath(schema.Source, doc.Servers)
	if err != nil {
		log.Warn("No usable server URL, tools will fail to invoke until a base URL is configured", slog.Any("error", err))
	}

	b := &catalogueBuilder{
		tr:       NewTranslator(doc, g.opts.Fallbacks, g.baseLogger),
		names:    newNameAllocator(g.opts.Namespace),
		host:     host,
		basePath: basePath,
		log:      log,
	}
	b.defs = b.tr.TranslateComponents()
	if doc.Info != nil {
		b.prefix = g.opts.DescriptionPrefixes[doc.Info.Title]
	}

	var tools []domain.Tool
	var details []usecase.InvocationDetails
	skipped := 0
	paths := doc.Paths.Map()
	for _, path := range slices.Sorted(maps.Keys(paths)) {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, method := range domain.Methods {
			op := item.GetOperation(string(method))
			if op == nil {
				continue
			}
			if op.OperationID == "" {
				log.Warn("Skipping operation", slog.String("path", path), slog.String("method", string(method)),
					slog.Any("error", ErrOperationMissingIdentifier))
				skipped++
				continue
			}
			tool, d := b.build(path, method, item, op)
			tools = append(tools, tool)
			details = append(details, d)
		}
	}

	log.Info("Finished generating tools from OpenAPI schema.",
		slog.Int("generated_count", len(tools)),
		slog.Int("skipped_count", skipped))
	return tools, details, nil
}

// catalogueBuilder holds the state shared by every operation of one build.
type catalogueBuilder struct {
	tr       *Translator
	names    *nameAllocator
	defs     map[string]*domain.Schema
	prefix   string
	host     string
	basePath string
	log      *slog.Logger
}

func (b *catalogueBuilder) build(path string, method domain.HTTPMethod, item *openapi3.PathItem, op *openapi3.Operation) (domain.Tool, usecase.InvocationDetails) {
	name := b.names.Allocate(op.OperationID)
	log := b.log.With(slog.String("path", path), slog.String("method", string(method)), slog.String("tool_name", name))

	input := &domain.Schema{
		Type:       "object",
		Properties: make(map[string]*domain.Schema),
		Defs:       b.defs,
	}
	details := usecase.InvocationDetails{
		ToolName:    name,
		OperationID: op.OperationID,
		Host:        b.host,
		BasePath:    b.basePath,
		HTTPMethod:  method,
		HTTPPath:    path,
		Operation:   op,
	}

	for _, param := range b.parameters(log, item.Parameters, op.Parameters) {
		ps := b.parameterSchema(param)
		if param.Description != "" {
			ps.Description = param.Description
		}
		input.Properties[param.Name] = withStringFallback(ps)
		if param.Required {
			input.Required = append(input.Required, param.Name)
		}
		switch param.In {
		case openapi3.ParameterInPath:
			details.PathParams = append(details.PathParams, param.Name)
		case openapi3.ParameterInQuery:
			details.QueryParams = append(details.QueryParams, param.Name)
		case openapi3.ParameterInHeader:
			details.HeaderParams = append(details.HeaderParams, param.Name)
		case openapi3.ParameterInCookie:
			details.CookieParams = append(details.CookieParams, param.Name)
		}
	}

	if op.RequestBody != nil {
		b.requestBody(log, op.RequestBody, input, &details)
	}
	input.Required = uniqueStrings(input.Required)

	tool := domain.Tool{
		Name:         name,
		Description:  b.prefix + b.description(log, op),
		InputSchema:  input,
		ReturnSchema: b.returnSchema(log, op.Responses),
	}
	log.Debug("Generated tool")
	return tool, details
}

// parameters resolves path-level and operation-level parameters. An
// operation-level parameter replaces a path-level one with the same name and location.
func (b *catalogueBuilder) parameters(log *slog.Logger, pathLevel, opLevel openapi3.Parameters) []*openapi3.Parameter {
	var out []*openapi3.Parameter
	index := make(map[string]int)
	for _, group := range []openapi3.Parameters{pathLevel, opLevel} {
		for _, ref := range group {
			param, err := b.tr.Resolver().ResolveParameter(ref)
			if err != nil || param == nil {
				log.Warn("Skipping unresolvable parameter", slog.Any("error", err))
				continue
			}
			key := param.In + "\x00" + param.Name
			if i, seen := index[key]; seen {
				out[i] = param
				continue
			}
			index[key] = len(out)
			out = append(out, param)
		}
	}
	return out
}

func (b *catalogueBuilder) parameterSchema(param *openapi3.Parameter) *domain.Schema {
	if param.Schema != nil {
		return b.tr.Translate(param.Schema, RefSet{}, false).Clone()
	}
	for _, mt := range param.Content {
		if mt != nil && mt.Schema != nil {
			return b.tr.Translate(mt.Schema, RefSet{}, false).Clone()
		}
	}
	return &domain.Schema{Type: "string"}
}

func (b *catalogueBuilder) requestBody(log *slog.Logger, ref *openapi3.RequestBodyRef, input *domain.Schema, details *usecase.InvocationDetails) {
	body, err := b.tr.Resolver().ResolveRequestBody(ref)
	if err != nil || body == nil {
		log.Warn("Skipping unresolvable request body", slog.Any("error", err))
		return
	}

	if mt := mediaType(body.Content, isMultipart); mt != nil && mt.Schema != nil {
		details.ContentType = "multipart/form-data"
		form, raw := b.expandTopLevel(mt.Schema)
		if !isObjectSchema(form) {
			log.Warn("Multipart body is not an object, no fields exposed")
			return
		}
		for name, prop := range form.Properties {
			b.mergeProperty(log, input, name, prop)
			if raw != nil && b.isBinary(raw.Properties[name]) {
				details.FileParams = append(details.FileParams, name)
			}
		}
		slices.Sort(details.FileParams)
		input.Required = append(input.Required, form.Required...)
		return
	}

	mt := mediaType(body.Content, isJSON)
	if mt == nil || mt.Schema == nil {
		log.Warn("Request body has neither multipart nor JSON content, body not exposed")
		return
	}
	details.ContentType = "application/json"
	schema, _ := b.expandTopLevel(mt.Schema)
	if isObjectSchema(schema) {
		for name, prop := range schema.Properties {
			b.mergeProperty(log, input, name, prop)
		}
		input.Required = append(input.Required, schema.Required...)
		return
	}
	details.BodyParam = "body"
	input.Properties["body"] = withStringFallback(schema)
	input.Required = append(input.Required, "body")
}

func (b *catalogueBuilder) mergeProperty(log *slog.Logger, input *domain.Schema, name string, prop *domain.Schema) {
	if _, exists := input.Properties[name]; exists {
		log.Warn("Body field collides with a parameter, keeping the parameter", slog.String("field_name", name))
		return
	}
	input.Properties[name] = withStringFallback(prop)
}

// expandTopLevel translates a body schema, expanding a top-level component
// reference one level so an object body can be flattened into the input.
func (b *catalogueBuilder) expandTopLevel(ref *openapi3.SchemaRef) (*domain.Schema, *openapi3.Schema) {
	if ref.Ref == "" {
		return b.tr.TranslateSchema(ref.Value, RefSet{}, false), ref.Value
	}
	resolved, err := b.tr.Resolver().ResolveSchema(ref.Ref, RefSet{})
	if err != nil {
		b.log.Warn("Failed to expand body schema reference", slog.String("ref", ref.Ref), slog.Any("error", err))
		return b.tr.Translate(ref, RefSet{}, false), nil
	}
	return b.tr.TranslateSchema(resolved, RefSet{}, false), resolved
}

// isBinary reports whether a form field carries file content.
func (b *catalogueBuilder) isBinary(ref *openapi3.SchemaRef) bool {
	s := b.resolveSchemaRef(ref)
	if s == nil {
		return false
	}
	if s.Format == "binary" {
		return true
	}
	items := b.resolveSchemaRef(s.Items)
	return items != nil && items.Format == "binary"
}

func (b *catalogueBuilder) resolveSchemaRef(ref *openapi3.SchemaRef) *openapi3.Schema {
	if ref == nil {
		return nil
	}
	if ref.Ref == "" {
		return ref.Value
	}
	s, err := b.tr.Resolver().ResolveSchema(ref.Ref, RefSet{})
	if err != nil {
		return nil
	}
	return s
}

// description is the summary (or description) followed by one line per
// declared 4xx/5xx response.
func (b *catalogueBuilder) description(log *slog.Logger, op *openapi3.Operation) string {
	desc := op.Summary
	if desc == "" {
		desc = op.Description
	}
	if op.Responses == nil {
		return desc
	}

	responses := op.Responses.Map()
	var lines []string
	for _, code := range slices.Sorted(maps.Keys(responses)) {
		if !strings.HasPrefix(code, "4") && !strings.HasPrefix(code, "5") {
			continue
		}
		resp, err := b.tr.Resolver().ResolveResponse(responses[code])
		if err != nil {
			log.Warn("Skipping unresolvable error response", slog.String("code", code), slog.Any("error", err))
			continue
		}
		lines = append(lines, code+": "+responseDescription(resp))
	}
	if len(lines) > 0 {
		desc += "\nError Responses:\n" + strings.Join(lines, "\n")
	}
	return desc
}

func (b *catalogueBuilder) returnSchema(log *slog.Logger, responses *openapi3.Responses) *domain.Schema {
	if responses == nil {
		return nil
	}
	for _, code := range successCodes {
		ref := responses.Value(code)
		if ref == nil {
			continue
		}
		resp, err := b.tr.Resolver().ResolveResponse(ref)
		if err != nil || resp == nil {
			log.Warn("Success response is unresolvable, no return schema", slog.String("code", code), slog.Any("error", err))
			return nil
		}
		desc := responseDescription(resp)

		if mt := mediaType(resp.Content, isJSON); mt != nil && mt.Schema != nil {
			out := b.tr.Translate(mt.Schema, RefSet{}, true).Clone()
			out.Defs = b.defs
			if out.Description == "" {
				out.Description = desc
			}
			return out
		}
		if mediaType(resp.Content, isImage) != nil {
			return &domain.Schema{Type: "string", Format: "binary", Description: desc}
		}
		return &domain.Schema{Type: "string", Description: desc}
	}
	return nil
}

// isObjectSchema reports whether a body schema is flattened into the tool
// input. An object without properties contributes no fields.
func isObjectSchema(s *domain.Schema) bool {
	return s.HasType("object") || (s.Type == nil && len(s.Properties) > 0)
}

// withStringFallback lets a structured property also be sent as JSON text.
func withStringFallback(s *domain.Schema) *domain.Schema {
	switch {
	case s.HasType("object") || s.IsComposite():
		return &domain.Schema{AnyOf: []*domain.Schema{s, {Type: "string"}}}
	case s.HasType("array") && s.Items != nil:
		c := s.Clone()
		c.Items = &domain.Schema{AnyOf: []*domain.Schema{
			s.Items,
			{Type: "string"},
			{Type: "object", AdditionalProperties: true},
		}}
		return c
	default:
		return s
	}
}

func responseDescription(resp *openapi3.Response) string {
	if resp == nil || resp.Description == nil {
		return ""
	}
	return *resp.Description
}

// mediaType returns the first content entry whose media type matches, in key order.
func mediaType(content openapi3.Content, match func(string) bool) *openapi3.MediaType {
	for _, key := range slices.Sorted(maps.Keys(content)) {
		mt, _, err := mime.ParseMediaType(key)
		if err != nil {
			mt = strings.ToLower(key)
		}
		if match(mt) {
			return content[key]
		}
	}
	return nil
}

func isJSON(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func isMultipart(mt string) bool { return mt == "multipart/form-data" }

func isImage(mt string) bool { return strings.HasPrefix(mt, "image/") }

// determineHostAndBasePath picks the base URL calls are sent to: the
// configured override, else the first HTTP(S) entry of the servers block.
// Relative server URLs are resolved against the document source and server
// variables take their default values.
func (g *ToolGenerator) determineHostAndBasePath(source string, servers openapi3.Servers) (string, string, error) {
	if g.opts.BaseURL != "" {
		u, err := url.Parse(g.opts.BaseURL)
		if err != nil || u.Host == "" {
			return "", "", fmt.Errorf("invalid base URL %q", g.opts.BaseURL)
		}
		return splitHostAndBasePath(u)
	}
	if len(servers) == 0 {
		return "", "", errors.New("no servers defined in OpenAPI document")
	}

	sourceURL, err := url.Parse(source)
	if err != nil {
		sourceURL = nil
	}
	for _, server := range servers {
		if server == nil || server.URL == "" {
			continue
		}
		raw := server.URL
		for name, v := range server.Variables {
			if v != nil {
				raw = strings.ReplaceAll(raw, "{"+name+"}", v.Default)
			}
		}
		u, err := url.Parse(raw)
		if err != nil {
			g.logger.Warn("Could not parse server URL, skipping.", slog.String("url", raw), slog.Any("error", err))
			continue
		}
		if !u.IsAbs() {
			if sourceURL == nil || sourceURL.Host == "" {
				g.logger.Debug("Cannot resolve relative server URL against a non-URL source", slog.String("url", raw))
				continue
			}
			u = sourceURL.ResolveReference(u)
		}
		if (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return splitHostAndBasePath(u)
		}
	}
	return "", "", errors.New("no suitable HTTP/HTTPS server URL found in OpenAPI document")
}

func splitHostAndBasePath(u *url.URL) (string, string, error) {
	basePath := strings.TrimSuffix(u.Path, "/")
	return u.Scheme + "://" + u.Host, basePath, nil
}

// uniqueStrings removes duplicate strings from a slice, keeping the first occurrence.
func uniqueStrings(input []string) []string {
	seen := make(map[string]struct{}, len(input))
	j := 0
	for _, v := range input {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		input[j] = v
		j++
	}
	return input[:j]
}
