package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Supported query rule match types
const (
	MatchEquals     = "equals"
	MatchNotEquals  = "not_equals"
	MatchContains   = "contains"
	MatchStartsWith = "starts_with"
	MatchEndsWith   = "ends_with"
	MatchRegex      = "regex"
	MatchExists     = "exists"
	MatchNotExists  = "not_exists"
)

// ValidMatchTypes returns all match types understood by the evaluator
func ValidMatchTypes() []string {
	return []string{
		MatchEquals, MatchNotEquals, MatchContains, MatchStartsWith,
		MatchEndsWith, MatchRegex, MatchExists, MatchNotExists,
	}
}

// matchTypeAliases maps the compact spelling (lowercase, no separators)
// to the canonical match type, so startsWith and starts-with both resolve.
var matchTypeAliases = map[string]string{
	"equals":     MatchEquals,
	"eq":         MatchEquals,
	"notequals":  MatchNotEquals,
	"ne":         MatchNotEquals,
	"contains":   MatchContains,
	"startswith": MatchStartsWith,
	"endswith":   MatchEndsWith,
	"regex":      MatchRegex,
	"exists":     MatchExists,
	"notexists":  MatchNotExists,
}

// QueryRule is a predicate over a single query parameter.
// A nil Value means the rule only asks for the parameter to be present.
type QueryRule struct {
	Key           string `json:"key"`
	MatchType     string `json:"matchType,omitempty"`
	Value         any    `json:"value,omitempty"`
	Required      *bool  `json:"required,omitempty"`
	CaseSensitive *bool  `json:"caseSensitive,omitempty"`
}

// NormalizedMatchType returns the canonical match type, defaulting to equals.
// Unrecognized types are returned lowercased as-is.
func (r QueryRule) NormalizedMatchType() string {
	mt := strings.ToLower(strings.TrimSpace(r.MatchType))
	if mt == "" {
		return MatchEquals
	}
	compact := strings.NewReplacer("_", "", "-", "").Replace(mt)
	if canonical, ok := matchTypeAliases[compact]; ok {
		return canonical
	}
	return mt
}

// IsRequired reports whether an absent parameter fails the rule.
func (r QueryRule) IsRequired() bool {
	return r.Required == nil || *r.Required
}

// IsCaseSensitive reports whether comparisons keep case.
func (r QueryRule) IsCaseSensitive() bool {
	return r.CaseSensitive == nil || *r.CaseSensitive
}

// HasValue reports whether the rule carries an expected value.
func (r QueryRule) HasValue() bool {
	return r.Value != nil
}

// ExpectedString returns the expected value coerced to a string.
func (r QueryRule) ExpectedString() string {
	return Stringify(r.Value)
}

// UnmarshalJSON accepts either a bare string (an equals rule without key)
// or a rule object. "type" is accepted as an alias of "matchType".
func (r *QueryRule) UnmarshalJSON(data []byte) error {
	parsed := gjson.ParseBytes(data)
	if parsed.Type == gjson.String {
		*r = QueryRule{MatchType: MatchEquals, Value: parsed.Str}
		return nil
	}
	if !parsed.IsObject() {
		return fmt.Errorf("query rule must be an object or string, got %s", parsed.Type)
	}

	type rawRule struct {
		Key           string `json:"key"`
		MatchType     string `json:"matchType"`
		Type          string `json:"type"`
		Value         any    `json:"value"`
		Required      *bool  `json:"required"`
		CaseSensitive *bool  `json:"caseSensitive"`
	}
	var raw rawRule
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = QueryRule{
		Key:           raw.Key,
		MatchType:     raw.MatchType,
		Value:         raw.Value,
		Required:      raw.Required,
		CaseSensitive: raw.CaseSensitive,
	}
	if r.MatchType == "" {
		r.MatchType = raw.Type
	}
	return nil
}

// QueryRules is the ordered rule list of a mock.
type QueryRules []QueryRule

// UnmarshalJSON accepts the array form, or an object keyed by parameter
// name whose values are either a bare string or a rule object.
// Object keys keep their document order.
func (q *QueryRules) UnmarshalJSON(data []byte) error {
	parsed := gjson.ParseBytes(data)
	switch {
	case parsed.Type == gjson.Null:
		*q = nil
		return nil
	case parsed.IsArray():
		var rules []QueryRule
		if err := json.Unmarshal(data, &rules); err != nil {
			return err
		}
		*q = rules
		return nil
	case parsed.IsObject():
		var rules QueryRules
		var err error
		parsed.ForEach(func(key, value gjson.Result) bool {
			var rule QueryRule
			if err = json.Unmarshal([]byte(value.Raw), &rule); err != nil {
				err = fmt.Errorf("query rule %q: %w", key.Str, err)
				return false
			}
			rule.Key = key.Str
			rules = append(rules, rule)
			return true
		})
		if err != nil {
			return err
		}
		*q = rules
		return nil
	default:
		return fmt.Errorf("queryParams must be an array or an object")
	}
}

// Stringify coerces a JSON scalar to the string a query value would carry.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ",")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
