package template

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasttemplate"
)

// ISO-8601 with millisecond precision, always UTC
const isoLayout = "2006-01-02T15:04:05.000Z"

var (
	// placeholderPattern matches template variables like {{name}}
	placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	// wholePlaceholderPattern matches a string that is exactly one placeholder
	wholePlaceholderPattern = regexp.MustCompile(`^\{\{([^}]+)\}\}$`)
)

// ErrInvalidResponse is returned when a response template is not valid JSON
var ErrInvalidResponse = errors.New("response is not valid JSON")

// GeneratorFunc produces the value for a placeholder.
// params are the ':'-separated parts after the placeholder name.
type GeneratorFunc func(params []string, req *Request) (any, error)

// Metadata describes a generated response
type Metadata struct {
	ProcessingTime int64  `json:"processingTime"`
	Generated      string `json:"generated"`
	DynamicValues  bool   `json:"dynamicValues"`
}

// Result is an expanded response with its metadata
type Result struct {
	Response json.RawMessage `json:"response"`
	Metadata Metadata        `json:"metadata"`
}

// Generator expands placeholders in response templates and applies delays
type Generator struct {
	faker  *gofakeit.Faker
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	funcs  map[string]GeneratorFunc
	custom []string
}

// Option configures a Generator
type Option func(*Generator)

// WithSeed makes generated values reproducible. Zero picks a random seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.faker = gofakeit.New(seed)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logging.OrNop(logger)
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator with all built-in placeholders registered
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		faker:  gofakeit.New(0),
		logger: logging.Nop(),
		now:    time.Now,
		funcs:  make(map[string]GeneratorFunc),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, group := range g.builtins() {
		for _, def := range group.defs {
			g.funcs[strings.ToLower(def.name)] = def.fn
		}
	}

	return g
}

// Register adds or replaces a placeholder. Names are case-insensitive.
func (g *Generator) Register(name string, fn GeneratorFunc) {
	key := strings.ToLower(strings.TrimSpace(name))
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.funcs[key]; !exists {
		g.custom = append(g.custom, name)
	}
	g.funcs[key] = fn
}

func (g *Generator) lookup(name string) (GeneratorFunc, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn, ok := g.funcs[strings.ToLower(name)]
	return fn, ok
}

// ProcessResponse applies the mock's delay, then expands every placeholder
// in its response.
func (g *Generator) ProcessResponse(ctx context.Context, mock *models.Mock, req *Request) (*Result, error) {
	start := time.Now()
	dynamic := HasDynamicValues(mock.Response)

	if _, err := g.ApplyDelay(ctx, mock.Delay); err != nil {
		return nil, err
	}

	body, err := g.ProcessDynamicValues(mock.Response, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Response: body,
		Metadata: Metadata{
			ProcessingTime: time.Since(start).Milliseconds(),
			Generated:      g.Timestamp(),
			DynamicValues:  dynamic,
		},
	}, nil
}

// Timestamp returns the current instant in the generator's ISO format
func (g *Generator) Timestamp() string {
	return g.now().UTC().Format(isoLayout)
}

// HasDynamicValues reports whether the serialized response contains a placeholder
func HasDynamicValues(raw json.RawMessage) bool {
	return placeholderPattern.Match(raw)
}

// ProcessDynamicValues expands placeholders in every string of the JSON
// document. Object key order and untouched scalars are preserved.
func (g *Generator) ProcessDynamicValues(raw json.RawMessage, req *Request) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}
	if !json.Valid(raw) {
		return nil, ErrInvalidResponse
	}

	var buf bytes.Buffer
	if err := g.processValue(&buf, gjson.ParseBytes(raw), req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) processValue(buf *bytes.Buffer, v gjson.Result, req *Request) error {
	switch {
	case v.Type == gjson.String:
		if !strings.Contains(v.Str, "{{") {
			buf.WriteString(v.Raw)
			return nil
		}
		out, err := g.ProcessString(v.Str, req)
		if err != nil {
			return err
		}
		return writeJSON(buf, out)

	case v.IsArray():
		var err error
		first := true
		buf.WriteByte('[')
		v.ForEach(func(_, item gjson.Result) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			err = g.processValue(buf, item, req)
			return err == nil
		})
		buf.WriteByte(']')
		return err

	case v.IsObject():
		var err error
		first := true
		buf.WriteByte('{')
		v.ForEach(func(key, item gjson.Result) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err = writeJSON(buf, key.Str); err != nil {
				return false
			}
			buf.WriteByte(':')
			err = g.processValue(buf, item, req)
			return err == nil
		})
		buf.WriteByte('}')
		return err

	default:
		buf.WriteString(v.Raw)
		return nil
	}
}

// ProcessString expands the placeholders of a single string.
// A string that is exactly one placeholder yields the generated value with
// its own type; otherwise every placeholder is substituted as text.
func (g *Generator) ProcessString(s string, req *Request) (any, error) {
	if m := wholePlaceholderPattern.FindStringSubmatch(s); m != nil {
		return g.GenerateValue(strings.TrimSpace(m[1]), req)
	}

	var out strings.Builder
	_, err := fasttemplate.ExecuteFunc(s, "{{", "}}", &out, func(w io.Writer, tag string) (int, error) {
		if tag == "" || strings.Contains(tag, "}") {
			return io.WriteString(w, "{{"+tag+"}}")
		}
		val, err := g.GenerateValue(strings.TrimSpace(tag), req)
		if err != nil {
			return 0, err
		}
		return io.WriteString(w, models.Stringify(val))
	})
	if err != nil {
		return nil, err
	}
	return out.String(), nil
}

// GenerateValue resolves one placeholder expression such as "number:1:10".
// Unknown placeholders come back verbatim as "{{expr}}".
func (g *Generator) GenerateValue(placeholder string, req *Request) (any, error) {
	parts := strings.Split(placeholder, ":")
	name := strings.TrimSpace(parts[0])

	fn, ok := g.lookup(name)
	if !ok {
		g.logger.Debug("unknown placeholder", "placeholder", placeholder)
		return "{{" + placeholder + "}}", nil
	}

	val, err := fn(parts[1:], req)
	if err != nil {
		return nil, fmt.Errorf("placeholder %q: %w", name, err)
	}
	return val, nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
