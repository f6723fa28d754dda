package matcher

import (
	"testing"

	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueMock(t *testing.T) {
	fallback := models.Mock{ID: "1", Method: "GET", Path: "/users"}
	admin := models.Mock{ID: "2", Method: "GET", Path: "/users", Headers: map[string]string{"X-Role": "admin"}}
	paged := models.Mock{
		ID: "3", Method: "GET", Path: "/users",
		QueryParams: models.QueryRules{{Key: "page", Value: "1"}},
	}

	tests := []struct {
		name      string
		candidate models.Mock
		existing  []models.Mock
		want      bool
	}{
		{
			name:      "empty set",
			candidate: fallback,
			want:      true,
		},
		{
			name:      "different path",
			candidate: models.Mock{Method: "GET", Path: "/orders"},
			existing:  []models.Mock{fallback},
			want:      true,
		},
		{
			name:      "two unconditional mocks",
			candidate: models.Mock{Method: "GET", Path: "/users"},
			existing:  []models.Mock{fallback},
			want:      false,
		},
		{
			name:      "fallback next to specific",
			candidate: models.Mock{Method: "GET", Path: "/users"},
			existing:  []models.Mock{admin},
			want:      true,
		},
		{
			name:      "specific next to fallback",
			candidate: models.Mock{Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "admin"}},
			existing:  []models.Mock{fallback},
			want:      true,
		},
		{
			name:      "same header signature with different case",
			candidate: models.Mock{Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "admin"}},
			existing:  []models.Mock{admin},
			want:      false,
		},
		{
			name:      "same header key different value",
			candidate: models.Mock{Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "guest"}},
			existing:  []models.Mock{admin},
			want:      true,
		},
		{
			name: "same query signature",
			candidate: models.Mock{
				Method: "GET", Path: "/users",
				QueryParams: models.QueryRules{{Key: "page", MatchType: "equals", Value: "1"}},
			},
			existing: []models.Mock{paged},
			want:     false,
		},
		{
			name: "query value differs",
			candidate: models.Mock{
				Method: "GET", Path: "/users",
				QueryParams: models.QueryRules{{Key: "page", Value: "2"}},
			},
			existing: []models.Mock{paged},
			want:     true,
		},
		{
			name: "disjoint keys are allowed",
			candidate: models.Mock{
				Method: "GET", Path: "/users",
				QueryParams: models.QueryRules{{Key: "sort", Value: "asc"}},
			},
			existing: []models.Mock{admin},
			want:     true,
		},
		{
			name:      "update does not conflict with itself",
			candidate: models.Mock{ID: "1", Method: "GET", Path: "/users"},
			existing:  []models.Mock{fallback},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueMock(tt.candidate, tt.existing))
		})
	}
}

func TestFindConflict_ReturnsExisting(t *testing.T) {
	existing := []models.Mock{{ID: "abc", Name: "Users", Method: "GET", Path: "/users"}}

	conflict, ok := FindConflict(models.Mock{Method: "GET", Path: "/users"}, existing)
	assert.True(t, ok)
	assert.Equal(t, "abc", conflict.ID)
}

func TestFallbackCoexistenceEndToEnd(t *testing.T) {
	fallback := models.Mock{ID: "fallback", Method: "GET", Path: "/users"}
	specific := models.Mock{ID: "specific", Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "admin"}}

	assert.True(t, IsUniqueMock(specific, []models.Mock{fallback}))

	mocks := []models.Mock{fallback, specific}
	m := New(nil)

	res := m.FindMock(Request{Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "admin"}}, mocks)
	assert.Equal(t, "specific", res.Mock.ID)

	res = m.FindMock(Request{Method: "GET", Path: "/users", Headers: map[string]string{"x-role": "guest"}}, mocks)
	assert.Equal(t, "fallback", res.Mock.ID)
}

func TestIsUniqueMock_ValuesCompareAsTheEvaluatorSeesThem(t *testing.T) {
	numeric := models.Mock{
		ID: "1", Method: "GET", Path: "/items",
		QueryParams: models.QueryRules{{Key: "page", Value: float64(1)}},
	}
	text := models.Mock{
		Method: "GET", Path: "/items",
		QueryParams: models.QueryRules{{Key: "page", Value: "1"}},
	}
	other := models.Mock{
		Method: "GET", Path: "/items",
		QueryParams: models.QueryRules{{Key: "page", Value: "2"}},
	}

	assert.False(t, IsUniqueMock(text, []models.Mock{numeric}), "1 and \"1\" match the same requests")
	assert.True(t, IsUniqueMock(other, []models.Mock{numeric}))
}
