package matcher

import (
	"net/http"

	"github.com/prasenjit/go-mockserver/internal/condition"
	"github.com/prasenjit/go-mockserver/internal/models"
)

// Request is the request view the matcher works on.
// Headers should carry lowercase names; Query holds the first value of each parameter.
type Request struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
}

// Result is the outcome of a lookup
type Result struct {
	Found      bool         `json:"found"`
	Mock       *models.Mock `json:"mock,omitempty"`
	StatusCode int          `json:"statusCode,omitempty"`
	Response   *NotFound    `json:"response,omitempty"`
}

// Matcher selects the most specific mock for a request
type Matcher struct {
	evaluator *condition.Evaluator
}

// New creates a new matcher
func New(evaluator *condition.Evaluator) *Matcher {
	if evaluator == nil {
		evaluator = condition.NewEvaluator(nil)
	}
	return &Matcher{evaluator: evaluator}
}

// FindMock returns the best mock for req out of mocks, or a 404 diagnostic.
//
// Candidates share the request's method and exact path.
// Among those whose header and query requirements all hold, the mock with
// the most query rules wins, then the most headers. Ties keep registration
// order.
func (m *Matcher) FindMock(req Request, mocks []models.Mock) Result {
	candidates := candidatesFor(req, mocks)

	best := -1
	for _, i := range candidates {
		mock := &mocks[i]
		if !m.evaluator.MatchHeaders(mock.Headers, req.Headers) {
			continue
		}
		if !m.evaluator.MatchQueryParameters(req.Query, mock.QueryParams) {
			continue
		}
		if best < 0 || moreSpecific(mock, &mocks[best]) {
			best = i
		}
	}

	if best < 0 {
		return Result{
			Found:      false,
			StatusCode: http.StatusNotFound,
			Response:   newNotFound(req, mocks, candidates),
		}
	}

	selected := mocks[best]
	return Result{Found: true, Mock: &selected}
}

func candidatesFor(req Request, mocks []models.Mock) []int {
	var idx []int
	for i := range mocks {
		if mocks[i].Method == req.Method && mocks[i].Path == req.Path {
			idx = append(idx, i)
		}
	}
	return idx
}

// moreSpecific reports whether a strictly outranks b.
func moreSpecific(a, b *models.Mock) bool {
	if len(a.QueryParams) != len(b.QueryParams) {
		return len(a.QueryParams) > len(b.QueryParams)
	}
	return len(a.Headers) > len(b.Headers)
}
