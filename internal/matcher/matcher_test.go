package matcher

import (
	"net/http"
	"testing"

	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productMocks() []models.Mock {
	return []models.Mock{
		{
			ID:     "electronics",
			Method: "GET",
			Path:   "/api/products",
			QueryParams: models.QueryRules{
				{Key: "category", MatchType: "equals", Value: "electronics"},
			},
		},
		{
			ID:     "fallback",
			Method: "GET",
			Path:   "/api/products",
		},
	}
}

func TestFindMock_ProductScenario(t *testing.T) {
	m := New(nil)
	mocks := productMocks()

	tests := []struct {
		name   string
		query  map[string]string
		wantID string
	}{
		{"query rule satisfied", map[string]string{"category": "electronics"}, "electronics"},
		{"no query falls back", map[string]string{}, "fallback"},
		{"failed predicate falls back", map[string]string{"category": "clothing"}, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.FindMock(Request{Method: "GET", Path: "/api/products", Query: tt.query}, mocks)
			require.True(t, res.Found)
			assert.Equal(t, tt.wantID, res.Mock.ID)
		})
	}
}

func TestFindMock_SpecificityOrdering(t *testing.T) {
	m := New(nil)
	mocks := []models.Mock{
		{ID: "plain", Method: "GET", Path: "/users"},
		{ID: "header", Method: "GET", Path: "/users", Headers: map[string]string{"X-Role": "admin"}},
		{
			ID: "two-rules", Method: "GET", Path: "/users",
			QueryParams: models.QueryRules{{Key: "page"}, {Key: "size"}},
		},
	}

	req := Request{
		Method:  "GET",
		Path:    "/users",
		Headers: map[string]string{"x-role": "admin"},
		Query:   map[string]string{"page": "1", "size": "10"},
	}
	res := m.FindMock(req, mocks)
	require.True(t, res.Found)
	assert.Equal(t, "two-rules", res.Mock.ID)

	req.Query = nil
	res = m.FindMock(req, mocks)
	require.True(t, res.Found)
	assert.Equal(t, "header", res.Mock.ID)

	req.Headers = nil
	res = m.FindMock(req, mocks)
	require.True(t, res.Found)
	assert.Equal(t, "plain", res.Mock.ID)
}

func TestFindMock_TiesKeepRegistrationOrder(t *testing.T) {
	m := New(nil)
	mocks := []models.Mock{
		{ID: "first", Method: "GET", Path: "/a", Headers: map[string]string{"x-a": "1"}},
		{ID: "second", Method: "GET", Path: "/a", Headers: map[string]string{"x-b": "2"}},
	}
	req := Request{Method: "GET", Path: "/a", Headers: map[string]string{"x-a": "1", "x-b": "2"}}

	for i := 0; i < 5; i++ {
		res := m.FindMock(req, mocks)
		require.True(t, res.Found)
		assert.Equal(t, "first", res.Mock.ID)
	}
}

func TestFindMock_ReturnsCopy(t *testing.T) {
	m := New(nil)
	mocks := productMocks()

	res := m.FindMock(Request{Method: "GET", Path: "/api/products"}, mocks)
	require.True(t, res.Found)
	res.Mock.Name = "changed"
	assert.Empty(t, mocks[1].Name)
}

func TestFindMock_NotFoundNoCandidates(t *testing.T) {
	m := New(nil)
	mocks := productMocks()

	res := m.FindMock(Request{
		Method:  "POST",
		Path:    "/api/orders",
		Headers: map[string]string{"X-Trace": "abc", "accept": "*/*"},
	}, mocks)

	assert.False(t, res.Found)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	require.NotNil(t, res.Response)
	assert.Equal(t, "No mock found for this request", res.Response.Error)
	assert.Equal(t, map[string]string{"x-trace": "abc"}, res.Response.Request.Headers)
	assert.Empty(t, res.Response.AvailableSimilarMocks)
	assert.Empty(t, res.Response.ExactPathMatches)
	assert.Equal(t, SuggestionNone, res.Response.Suggestion)
}

func TestFindMock_NotFoundSimilar(t *testing.T) {
	m := New(nil)
	mocks := productMocks()

	res := m.FindMock(Request{Method: "GET", Path: "/api/orders"}, mocks)

	assert.False(t, res.Found)
	assert.Len(t, res.Response.AvailableSimilarMocks, 2)
	assert.Equal(t, SuggestionSimilar, res.Response.Suggestion)
}

func TestFindMock_NotFoundCandidatesMismatched(t *testing.T) {
	m := New(nil)
	mocks := []models.Mock{
		{ID: "admin", Name: "Admin users", Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "admin"}},
	}

	res := m.FindMock(Request{Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "guest"}}, mocks)

	assert.False(t, res.Found)
	require.Len(t, res.Response.ExactPathMatches, 1)
	assert.Equal(t, "admin", res.Response.ExactPathMatches[0].ID)
	assert.Equal(t, map[string]string{"x-role": "admin"}, res.Response.ExactPathMatches[0].RequiredHeaders)
	assert.Equal(t, SuggestionRequirements, res.Response.Suggestion)
}

func TestFindMock_MethodIsPartOfKey(t *testing.T) {
	m := New(nil)
	mocks := []models.Mock{{ID: "get", Method: "GET", Path: "/x"}}

	res := m.FindMock(Request{Method: "DELETE", Path: "/x"}, mocks)
	assert.False(t, res.Found)

	res = m.FindMock(Request{Method: "GET", Path: "/x/"}, mocks)
	assert.False(t, res.Found)
}
