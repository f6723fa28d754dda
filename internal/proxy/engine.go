package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/matcher"
	"github.com/prasenjit/go-mockserver/internal/metrics"
	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/prasenjit/go-mockserver/internal/registry"
	"github.com/prasenjit/go-mockserver/internal/requestlog"
	"github.com/prasenjit/go-mockserver/internal/stats"
	"github.com/prasenjit/go-mockserver/internal/telemetry"
	"github.com/prasenjit/go-mockserver/internal/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultMaxBodyBytes = 10 << 20

// StatusClientClosedRequest is recorded when the client leaves during a delay
const StatusClientClosedRequest = 499

// Response headers set on every matched response
const (
	HeaderMockID         = "X-Mock-Id"
	HeaderMockName       = "X-Mock-Name"
	HeaderGenerated      = "X-Mock-Generated"
	HeaderDynamic        = "X-Mock-Dynamic"
	HeaderProcessingTime = "X-Mock-Processing-Time"
)

// devRequestMarkers identify browser and dev-tool noise
var devRequestMarkers = []string{
	"/.well-known/",
	"/favicon.ico",
	"/apple-touch-icon",
	"/_next/",
	"/__webpack",
	"/sockjs-node/",
	"/hot-update",
	"/.vscode/",
	"/manifest.json",
	"/sw.js",
	"/robots.txt",
}

// Options wires the engine's collaborators. Only Registry is required.
type Options struct {
	Registry       *registry.Registry
	Matcher        *matcher.Matcher
	Generator      *template.Generator
	Stats          *stats.Collector
	Requests       *requestlog.Service
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	LogDevRequests bool
	MaxBodyBytes   int64
}

// Engine answers requests on the mock surface
type Engine struct {
	registry       *registry.Registry
	matcher        *matcher.Matcher
	generator      *template.Generator
	stats          *stats.Collector
	requests       *requestlog.Service
	metrics        *metrics.Metrics
	logger         *slog.Logger
	logDevRequests bool
	maxBodyBytes   int64
}

// NewEngine creates a new serving engine
func NewEngine(opts Options) *Engine {
	e := &Engine{
		registry:       opts.Registry,
		matcher:        opts.Matcher,
		generator:      opts.Generator,
		stats:          opts.Stats,
		requests:       opts.Requests,
		metrics:        opts.Metrics,
		logger:         logging.OrNop(opts.Logger),
		logDevRequests: opts.LogDevRequests,
		maxBodyBytes:   opts.MaxBodyBytes,
	}
	if e.matcher == nil {
		e.matcher = matcher.New(nil)
	}
	if e.generator == nil {
		e.generator = template.NewGenerator(template.WithLogger(e.logger))
	}
	if e.maxBodyBytes <= 0 {
		e.maxBodyBytes = defaultMaxBodyBytes
	}
	return e
}

// Handler returns the engine instrumented with server spans
func (e *Engine) Handler() http.Handler {
	return telemetry.WrapHandler(e, "mock-request")
}

// Match runs the matcher against the current mock set
func (e *Engine) Match(req matcher.Request) matcher.Result {
	return e.matcher.FindMock(req, e.registry.List())
}

// Preview expands mock's response for req, skipping the delay and recording
func (e *Engine) Preview(mock *models.Mock, req *template.Request) (*template.Result, error) {
	start := time.Now()
	body, err := e.generator.ProcessDynamicValues(mock.Response, req)
	if err != nil {
		return nil, err
	}
	return &template.Result{
		Response: body,
		Metadata: template.Metadata{
			ProcessingTime: time.Since(start).Milliseconds(),
			Generated:      e.generator.Timestamp(),
			DynamicValues:  template.HasDynamicValues(mock.Response),
		},
	}, nil
}

// ServeHTTP handles incoming requests
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		body = nil
	}

	matchReq, tmplReq := NewRequests(r, body)

	ctx, span := telemetry.Tracer().Start(r.Context(), "mock.match")
	result := e.Match(matchReq)
	span.SetAttributes(attribute.Bool("mock.matched", result.Found))

	rec := &models.RequestRecord{
		Timestamp: start.UTC(),
		Method:    matchReq.Method,
		Path:      matchReq.Path,
		Query:     matchReq.Query,
		Headers:   matchReq.Headers,
	}

	if !result.Found {
		span.End()
		e.logMiss(matchReq)
		writeJSON(w, http.StatusNotFound, result.Response)
		rec.StatusCode = http.StatusNotFound
		e.record(rec, start)
		return
	}

	mock := result.Mock
	span.SetAttributes(
		attribute.String("mock.id", mock.ID),
		attribute.String("mock.name", mock.Name),
	)
	rec.Matched = true
	rec.MockID = mock.ID
	rec.MockName = mock.Name

	_, genSpan := telemetry.Tracer().Start(ctx, "mock.generate")
	payload, meta, err := e.respond(ctx, mock, tmplReq)
	if meta.fallbackErr != nil {
		genSpan.RecordError(meta.fallbackErr)
		genSpan.SetStatus(codes.Error, "dynamic generation failed")
		rec.Error = meta.fallbackErr.Error()
	}
	genSpan.End()
	span.End()

	if err != nil {
		// the client is gone; nothing can be written
		rec.StatusCode = StatusClientClosedRequest
		rec.Error = err.Error()
		e.logger.Debug("request cancelled during delay", "mockId", mock.ID, "path", matchReq.Path)
		e.record(rec, start)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	for k, v := range mock.ResponseHeaders {
		h.Set(k, v)
	}
	h.Set(HeaderMockID, mock.ID)
	h.Set(HeaderMockName, mock.Name)
	h.Set(HeaderGenerated, meta.Generated)
	if meta.DynamicValues {
		h.Set(HeaderDynamic, "true")
	}
	if meta.ProcessingTime > 0 {
		h.Set(HeaderProcessingTime, strconv.FormatInt(meta.ProcessingTime, 10)+"ms")
	}

	status := mock.EffectiveStatusCode()
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(payload)
	}

	rec.StatusCode = status
	rec.Dynamic = meta.DynamicValues
	e.record(rec, start)
}

type responseMeta struct {
	template.Metadata
	fallbackErr error
}

// respond produces the body for a matched mock. A generation failure falls
// back to the static response; only cancellation is returned as an error.
func (e *Engine) respond(ctx context.Context, mock *models.Mock, req *template.Request) (json.RawMessage, responseMeta, error) {
	start := time.Now()

	if !mock.TemplatingEnabled() {
		if _, err := e.generator.ApplyDelay(ctx, mock.Delay); err != nil {
			return nil, responseMeta{}, err
		}
		return staticBody(mock), responseMeta{Metadata: template.Metadata{
			ProcessingTime: time.Since(start).Milliseconds(),
			Generated:      e.generator.Timestamp(),
		}}, nil
	}

	res, err := e.generator.ProcessResponse(ctx, mock, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, responseMeta{}, ctx.Err()
		}
		e.logger.Error("dynamic response generation failed, serving static response",
			"mockId", mock.ID, "error", err)
		e.metrics.GenerationError(mock.ID)
		return staticBody(mock), responseMeta{
			Metadata: template.Metadata{
				ProcessingTime: time.Since(start).Milliseconds(),
				Generated:      e.generator.Timestamp(),
			},
			fallbackErr: err,
		}, nil
	}

	return res.Response, responseMeta{Metadata: res.Metadata}, nil
}

func staticBody(mock *models.Mock) json.RawMessage {
	if len(bytes.TrimSpace(mock.Response)) == 0 {
		return json.RawMessage("null")
	}
	return mock.Response
}

func (e *Engine) record(rec *models.RequestRecord, start time.Time) {
	elapsed := time.Since(start)
	rec.DurationMs = float64(elapsed.Microseconds()) / 1000

	if e.stats != nil {
		e.stats.RecordRequest(rec)
	}
	if e.requests != nil {
		e.requests.Record(rec)
	}
	e.metrics.ObserveRequest(rec.Method, rec.Matched, rec.StatusCode, elapsed)
}

func (e *Engine) logMiss(req matcher.Request) {
	if IsDevRequest(req.Path) {
		if e.logDevRequests {
			e.logger.Debug("dev tool request without mock", "method", req.Method, "path", req.Path)
		}
		return
	}
	e.logger.Warn("no mock found", "method", req.Method, "path", req.Path)
}

// IsDevRequest reports whether path looks like browser or dev-tool noise
func IsDevRequest(path string) bool {
	for _, marker := range devRequestMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// NewRequests derives the matcher and template views of r.
// Header names are lowercased; repeated headers and query parameters keep
// their first value.
func NewRequests(r *http.Request, body []byte) (matcher.Request, *template.Request) {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}
	if r.Host != "" {
		if _, ok := headers["host"]; !ok {
			headers["host"] = r.Host
		}
	}

	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	mreq := matcher.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
		Query:   query,
	}
	treq := &template.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: headers,
		Query:   query,
		Body:    body,
	}
	return mreq, treq
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
