package matcher

import (
	"strings"

	"github.com/prasenjit/go-mockserver/internal/models"
)

// Suggestions returned in the 404 diagnostic
const (
	SuggestionRequirements = "Check if your request headers and query parameters match the requirements of existing mocks"
	SuggestionSimilar      = "Check method, path, headers, or query parameters - similar endpoints exist"
	SuggestionNone         = "No similar mocks found. Register a new mock for this endpoint."
)

// NotFound is the diagnostic body returned when no mock answers a request
type NotFound struct {
	Error                 string        `json:"error"`
	Request               RequestEcho   `json:"request"`
	AvailableSimilarMocks []SimilarMock `json:"availableSimilarMocks"`
	ExactPathMatches      []PathMatch   `json:"exactPathMatches,omitempty"`
	Suggestion            string        `json:"suggestion"`
}

// RequestEcho repeats the parts of the request relevant to matching
type RequestEcho struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
}

// SimilarMock is a mock sharing the method or the path of the request
type SimilarMock struct {
	Method      string             `json:"method"`
	Path        string             `json:"path"`
	Headers     map[string]string  `json:"headers,omitempty"`
	QueryParams []models.QueryRule `json:"queryParams,omitempty"`
}

// PathMatch is a same-method same-path mock whose requirements did not hold
type PathMatch struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	RequiredHeaders     map[string]string  `json:"requiredHeaders,omitempty"`
	RequiredQueryParams []models.QueryRule `json:"requiredQueryParams,omitempty"`
}

func newNotFound(req Request, mocks []models.Mock, candidates []int) *NotFound {
	nf := &NotFound{
		Error: "No mock found for this request",
		Request: RequestEcho{
			Method:  req.Method,
			Path:    req.Path,
			Headers: customHeaders(req.Headers),
			Query:   req.Query,
		},
		AvailableSimilarMocks: []SimilarMock{},
	}
	if nf.Request.Query == nil {
		nf.Request.Query = map[string]string{}
	}

	for i := range mocks {
		mock := &mocks[i]
		if mock.Method == req.Method || mock.Path == req.Path {
			nf.AvailableSimilarMocks = append(nf.AvailableSimilarMocks, SimilarMock{
				Method:      mock.Method,
				Path:        mock.Path,
				Headers:     mock.Headers,
				QueryParams: mock.QueryParams,
			})
		}
	}

	for _, i := range candidates {
		mock := &mocks[i]
		nf.ExactPathMatches = append(nf.ExactPathMatches, PathMatch{
			ID:                  mock.ID,
			Name:                mock.Name,
			RequiredHeaders:     mock.Headers,
			RequiredQueryParams: mock.QueryParams,
		})
	}

	switch {
	case len(candidates) > 0:
		nf.Suggestion = SuggestionRequirements
	case len(nf.AvailableSimilarMocks) > 0:
		nf.Suggestion = SuggestionSimilar
	default:
		nf.Suggestion = SuggestionNone
	}

	return nf
}

// customHeaders keeps only the x- prefixed request headers.
func customHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range headers {
		if strings.HasPrefix(strings.ToLower(k), "x-") {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}
