package condition

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/models"
)

const (
	patternCacheTTL      = 10 * time.Minute
	patternCacheCapacity = 1024
)

// compiledPattern keeps a compile failure next to the pattern so bad
// expressions are not recompiled on every request.
type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// Evaluator evaluates query rules and header requirements against request data
type Evaluator struct {
	logger   *slog.Logger
	patterns *ttlcache.Cache[string, compiledPattern]
}

// NewEvaluator creates a new condition evaluator
func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logging.OrNop(logger),
		patterns: ttlcache.New[string, compiledPattern](
			ttlcache.WithTTL[string, compiledPattern](patternCacheTTL),
			ttlcache.WithCapacity[string, compiledPattern](patternCacheCapacity),
		),
	}
}

// MatchHeaders reports whether every required header is present with exactly
// the required value. Header names are compared case-insensitively.
func (e *Evaluator) MatchHeaders(required, headers map[string]string) bool {
	for name, want := range required {
		got, ok := lookupHeader(headers, name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// MatchQueryParameters evaluates all rules against the request query.
// All rules must hold (AND logic).
func (e *Evaluator) MatchQueryParameters(query map[string]string, rules []models.QueryRule) bool {
	for _, rule := range rules {
		observed, present := query[rule.Key]
		if !present {
			if rule.NormalizedMatchType() == models.MatchNotExists {
				continue
			}
			if rule.IsRequired() {
				return false
			}
			continue
		}

		if !e.ValidateQueryParameter(observed, rule) {
			return false
		}
	}

	return true
}

// ValidateQueryParameter evaluates a single rule against a present parameter value
func (e *Evaluator) ValidateQueryParameter(observed string, rule models.QueryRule) bool {
	matchType := rule.NormalizedMatchType()

	switch matchType {
	case models.MatchExists:
		return observed != ""
	case models.MatchNotExists:
		return observed == ""
	}

	// Without an expected value the rule only asks for presence.
	if !rule.HasValue() {
		return true
	}

	expected := rule.ExpectedString()
	if matchType == models.MatchRegex {
		return e.matchRegex(observed, expected, rule.IsCaseSensitive())
	}

	actual := observed
	if !rule.IsCaseSensitive() {
		actual = strings.ToLower(actual)
		expected = strings.ToLower(expected)
	}

	switch matchType {
	case models.MatchEquals:
		return actual == expected
	case models.MatchNotEquals:
		return actual != expected
	case models.MatchContains:
		return strings.Contains(actual, expected)
	case models.MatchStartsWith:
		return strings.HasPrefix(actual, expected)
	case models.MatchEndsWith:
		return strings.HasSuffix(actual, expected)
	default:
		e.logger.Warn("unknown query match type, falling back to equals",
			"key", rule.Key, "matchType", rule.MatchType)
		return actual == expected
	}
}

func (e *Evaluator) matchRegex(actual, pattern string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	var compiled compiledPattern
	if item := e.patterns.Get(pattern); item != nil {
		compiled = item.Value()
	} else {
		re, err := regexp.Compile(pattern)
		compiled = compiledPattern{re: re, err: err}
		e.patterns.Set(pattern, compiled, ttlcache.DefaultTTL)
	}

	if compiled.err != nil {
		e.logger.Warn("invalid regex in query rule", "pattern", pattern, "error", compiled.err)
		return false
	}
	return compiled.re.MatchString(actual)
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	if v, ok := headers[strings.ToLower(name)]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
