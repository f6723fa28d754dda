package matcher

import (
	"reflect"
	"strings"

	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/samber/lo"
)

// normalizedRule is a query rule with every default made explicit so that
// rules written differently but evaluating the same compare equal.
type normalizedRule struct {
	MatchType     string
	Value         string
	HasValue      bool
	Required      bool
	CaseSensitive bool
}

// signature is the part of a mock that decides which requests it can answer.
type signature struct {
	headers map[string]string
	query   map[string][]normalizedRule
}

func signatureOf(m *models.Mock) signature {
	sig := signature{
		headers: lo.MapKeys(m.Headers, func(_ string, k string) string {
			return strings.ToLower(k)
		}),
		query: make(map[string][]normalizedRule),
	}
	for _, r := range m.QueryParams {
		sig.query[r.Key] = append(sig.query[r.Key], normalizedRule{
			MatchType:     r.NormalizedMatchType(),
			Value:         r.ExpectedString(),
			HasValue:      r.HasValue(),
			Required:      r.IsRequired(),
			CaseSensitive: r.IsCaseSensitive(),
		})
	}
	return sig
}

func (s signature) equal(o signature) bool {
	return reflect.DeepEqual(s.headers, o.headers) && reflect.DeepEqual(s.query, o.query)
}

// FindConflict returns the first existing mock that candidate would be
// indistinguishable from: same method and path, the same header requirements
// and an equivalent set of query rules. Mocks with candidate's ID are skipped
// so an update never conflicts with itself.
func FindConflict(candidate models.Mock, existing []models.Mock) (models.Mock, bool) {
	sig := signatureOf(&candidate)
	return lo.Find(existing, func(m models.Mock) bool {
		if candidate.ID != "" && m.ID == candidate.ID {
			return false
		}
		if !strings.EqualFold(m.Method, candidate.Method) || m.Path != candidate.Path {
			return false
		}
		return sig.equal(signatureOf(&m))
	})
}

// IsUniqueMock reports whether candidate can be registered next to existing
func IsUniqueMock(candidate models.Mock, existing []models.Mock) bool {
	_, conflict := FindConflict(candidate, existing)
	return !conflict
}
