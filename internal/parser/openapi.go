package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prasenjit/go-mockserver/internal/models"
)

// maxSchemaDepth bounds recursion through self-referencing schemas
const maxSchemaDepth = 6

// Options controls how operations become mocks
type Options struct {
	// BasePath is prefixed to every imported path.
	BasePath string
	// Dynamic renders schemas without examples as placeholder templates
	// instead of zero values.
	Dynamic bool
}

// Result contains the generated mocks and any operations that were skipped
type Result struct {
	Title   string        `json:"title"`
	Version string        `json:"version"`
	Mocks   []models.Mock `json:"mocks"`
	Skipped []string      `json:"skipped,omitempty"`
}

// Parser turns OpenAPI 3 documents into mock definitions
type Parser struct{}

// NewParser creates a new OpenAPI parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse loads and validates an OpenAPI 3 document (JSON or YAML) and
// generates one mock per operation.
func (p *Parser) Parse(content []byte, opts Options) (*Result, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	result := &Result{}
	if doc.Info != nil {
		result.Title = doc.Info.Title
		result.Version = doc.Info.Version
	}

	basePath := normalizeBasePath(opts.BasePath)
	paths := make([]string, 0, doc.Paths.Len())
	for pathPattern := range doc.Paths.Map() {
		paths = append(paths, pathPattern)
	}
	sort.Strings(paths)

	for _, pathPattern := range paths {
		pathItem := doc.Paths.Value(pathPattern)
		if pathItem == nil {
			continue
		}

		for _, mo := range operationsOf(pathItem) {
			mock, ok := p.buildMock(mo.method, pathPattern, basePath, pathItem, mo.op, opts)
			if !ok {
				result.Skipped = append(result.Skipped, mo.method+" "+pathPattern)
				continue
			}
			result.Mocks = append(result.Mocks, mock)
		}
	}

	return result, nil
}

type methodOp struct {
	method string
	op     *openapi3.Operation
}

func operationsOf(item *openapi3.PathItem) []methodOp {
	all := []methodOp{
		{"GET", item.Get},
		{"POST", item.Post},
		{"PUT", item.Put},
		{"PATCH", item.Patch},
		{"DELETE", item.Delete},
		{"HEAD", item.Head},
		{"OPTIONS", item.Options},
	}
	ops := all[:0]
	for _, mo := range all {
		if mo.op != nil {
			ops = append(ops, mo)
		}
	}
	return ops
}

func (p *Parser) buildMock(method, pathPattern, basePath string, item *openapi3.PathItem, op *openapi3.Operation, opts Options) (models.Mock, bool) {
	status, body, headers, ok := exampleResponse(op, opts.Dynamic)
	if !ok {
		return models.Mock{}, false
	}

	mock := models.Mock{
		Name:            operationName(method, pathPattern, op),
		Method:          method,
		Path:            basePath + concretePath(pathPattern, item, op),
		Response:        body,
		ResponseHeaders: headers,
		StatusCode:      status,
	}

	params := append(openapi3.Parameters{}, item.Parameters...)
	params = append(params, op.Parameters...)
	for _, ref := range params {
		if ref == nil || ref.Value == nil || !ref.Value.Required {
			continue
		}
		param := ref.Value
		switch param.In {
		case openapi3.ParameterInQuery:
			mock.QueryParams = append(mock.QueryParams, models.QueryRule{
				Key:       param.Name,
				MatchType: models.MatchExists,
			})
		case openapi3.ParameterInHeader:
			if ex := parameterExample(param); ex != "" {
				if mock.Headers == nil {
					mock.Headers = make(map[string]string)
				}
				mock.Headers[param.Name] = ex
			}
		}
	}

	if !opts.Dynamic {
		dynamic := false
		mock.Dynamic = &dynamic
	}

	return mock, true
}

func operationName(method, pathPattern string, op *openapi3.Operation) string {
	switch {
	case op.Summary != "":
		return op.Summary
	case op.OperationID != "":
		return op.OperationID
	default:
		return method + " " + pathPattern
	}
}

// concretePath substitutes path parameters that carry an example value.
// Parameters without one stay templated and match only literally.
func concretePath(pathPattern string, item *openapi3.PathItem, op *openapi3.Operation) string {
	out := pathPattern
	params := append(openapi3.Parameters{}, item.Parameters...)
	params = append(params, op.Parameters...)
	for _, ref := range params {
		if ref == nil || ref.Value == nil || ref.Value.In != openapi3.ParameterInPath {
			continue
		}
		if ex := parameterExample(ref.Value); ex != "" {
			out = strings.ReplaceAll(out, "{"+ref.Value.Name+"}", ex)
		}
	}
	return out
}

func parameterExample(param *openapi3.Parameter) string {
	if param.Example != nil {
		return models.Stringify(param.Example)
	}
	for _, ex := range sortedExamples(param.Examples) {
		if ex.Value != nil && ex.Value.Value != nil {
			return models.Stringify(ex.Value.Value)
		}
	}
	if param.Schema != nil && param.Schema.Value != nil && param.Schema.Value.Example != nil {
		return models.Stringify(param.Schema.Value.Example)
	}
	return ""
}

// exampleResponse picks the first success response and renders its JSON body
func exampleResponse(op *openapi3.Operation, dynamic bool) (int, json.RawMessage, map[string]string, bool) {
	if op.Responses == nil {
		return 0, nil, nil, false
	}

	for _, statusCode := range []int{200, 201, 202, 204} {
		response := op.Responses.Status(statusCode)
		if response == nil || response.Value == nil {
			continue
		}

		headers := make(map[string]string)
		for name, header := range response.Value.Headers {
			if header.Value != nil && header.Value.Example != nil {
				headers[name] = models.Stringify(header.Value.Example)
			}
		}

		mediaTypes := make([]string, 0, len(response.Value.Content))
		for mediaType := range response.Value.Content {
			mediaTypes = append(mediaTypes, mediaType)
		}
		sort.Strings(mediaTypes)

		for _, mediaType := range mediaTypes {
			if !strings.Contains(mediaType, "json") {
				continue
			}
			content := response.Value.Content[mediaType]

			var value any
			switch {
			case content.Example != nil:
				value = content.Example
			case len(content.Examples) > 0:
				for _, ex := range sortedExamples(content.Examples) {
					if ex.Value != nil && ex.Value.Value != nil {
						value = ex.Value.Value
						break
					}
				}
			case content.Schema != nil && content.Schema.Value != nil:
				value = exampleFromSchema(content.Schema.Value, "", dynamic, 0)
			}

			if value == nil {
				break
			}
			body, err := json.Marshal(value)
			if err != nil {
				break
			}
			return statusCode, body, headersOrNil(headers), true
		}

		// a body-less success still makes a usable mock
		return statusCode, json.RawMessage(`{}`), headersOrNil(headers), true
	}

	return 0, nil, nil, false
}

func headersOrNil(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	return h
}

func sortedExamples(examples openapi3.Examples) []*openapi3.ExampleRef {
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*openapi3.ExampleRef, 0, len(names))
	for _, name := range names {
		out = append(out, examples[name])
	}
	return out
}

// exampleFromSchema builds a value from a schema. With dynamic set, leaves
// become placeholders chosen from the property name and format.
func exampleFromSchema(schema *openapi3.Schema, property string, dynamic bool, depth int) any {
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		if dynamic && len(schema.Enum) > 1 {
			vals := make([]string, 0, len(schema.Enum))
			for _, v := range schema.Enum {
				vals = append(vals, models.Stringify(v))
			}
			return "{{oneOf:" + strings.Join(vals, ",") + "}}"
		}
		return schema.Enum[0]
	}
	if depth > maxSchemaDepth {
		return nil
	}
	if len(schema.AllOf) > 0 {
		merged := map[string]any{}
		for _, ref := range schema.AllOf {
			if ref == nil || ref.Value == nil {
				continue
			}
			if obj, ok := exampleFromSchema(ref.Value, property, dynamic, depth+1).(map[string]any); ok {
				for k, v := range obj {
					merged[k] = v
				}
			}
		}
		return merged
	}
	for _, alts := range []openapi3.SchemaRefs{schema.OneOf, schema.AnyOf} {
		if len(alts) > 0 && alts[0] != nil && alts[0].Value != nil {
			return exampleFromSchema(alts[0].Value, property, dynamic, depth+1)
		}
	}

	switch {
	case schema.Type.Is(openapi3.TypeObject) || (schema.Type == nil && len(schema.Properties) > 0):
		obj := make(map[string]any, len(schema.Properties))
		for name, ref := range schema.Properties {
			if ref == nil || ref.Value == nil {
				continue
			}
			obj[name] = exampleFromSchema(ref.Value, name, dynamic, depth+1)
		}
		return obj
	case schema.Type.Is(openapi3.TypeArray):
		if schema.Items == nil || schema.Items.Value == nil {
			return []any{}
		}
		return []any{exampleFromSchema(schema.Items.Value, property, dynamic, depth+1)}
	case schema.Type.Is(openapi3.TypeString):
		if dynamic {
			return stringPlaceholder(schema.Format, property)
		}
		return "string"
	case schema.Type.Is(openapi3.TypeInteger):
		if dynamic {
			return fmt.Sprintf("{{number:%d:%d}}", intBound(schema.Min, 1), intBound(schema.Max, 1000))
		}
		return 0
	case schema.Type.Is(openapi3.TypeNumber):
		if dynamic {
			return fmt.Sprintf("{{float:%d:%d}}", intBound(schema.Min, 0), intBound(schema.Max, 1000))
		}
		return 0.0
	case schema.Type.Is(openapi3.TypeBoolean):
		if dynamic {
			return "{{boolean}}"
		}
		return false
	default:
		return nil
	}
}

func intBound(v *float64, fallback int) int {
	if v == nil {
		return fallback
	}
	return int(*v)
}

// stringPlaceholder maps a string format or a well-known property name to a
// placeholder expression.
func stringPlaceholder(format, property string) string {
	switch format {
	case "uuid":
		return "{{uuid}}"
	case "email":
		return "{{email}}"
	case "date-time":
		return "{{timestamp}}"
	case "date":
		return "{{date}}"
	case "time":
		return "{{time}}"
	case "uri", "url":
		return "{{url}}"
	case "hostname":
		return "{{domain}}"
	case "ipv4":
		return "{{ip}}"
	case "ipv6":
		return "{{internet.ipv6}}"
	}

	name := strings.ToLower(property)
	switch {
	case name == "id" || strings.HasSuffix(name, "id"):
		return "{{uuid}}"
	case strings.Contains(name, "email"):
		return "{{email}}"
	case name == "firstname":
		return "{{firstName}}"
	case name == "lastname":
		return "{{lastName}}"
	case strings.Contains(name, "name"):
		return "{{name}}"
	case strings.Contains(name, "phone"):
		return "{{phone}}"
	case strings.Contains(name, "city"):
		return "{{city}}"
	case strings.Contains(name, "country"):
		return "{{country}}"
	case strings.Contains(name, "address"):
		return "{{address}}"
	case strings.Contains(name, "company"):
		return "{{company}}"
	case strings.Contains(name, "url") || strings.Contains(name, "website"):
		return "{{url}}"
	case strings.Contains(name, "description"):
		return "{{sentence}}"
	case strings.Contains(name, "title"):
		return "{{title}}"
	}
	return "{{word}}"
}

// normalizeBasePath ensures the base path is properly formatted
func normalizeBasePath(basePath string) string {
	if basePath == "" {
		return ""
	}

	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	return strings.TrimSuffix(basePath, "/")
}
