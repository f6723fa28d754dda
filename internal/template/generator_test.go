package template

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 45, 123000000, time.UTC)

func newTestGenerator() *Generator {
	return NewGenerator(WithSeed(42), WithClock(func() time.Time { return fixedNow }))
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHasDynamicValues(t *testing.T) {
	assert.True(t, HasDynamicValues(json.RawMessage(`{"a":"{{name}}"}`)))
	assert.True(t, HasDynamicValues(json.RawMessage(`{"a":["x","id {{uuid}}"]}`)))
	assert.False(t, HasDynamicValues(json.RawMessage(`{"a":"static"}`)))
	assert.False(t, HasDynamicValues(json.RawMessage(`{"a":"{{}}"}`)))
}

func TestProcessDynamicValues_Identity(t *testing.T) {
	g := newTestGenerator()
	raw := json.RawMessage(`{"z":"static","b":[1,2.50,true,null],"a":{"y":"x","n":-3e2}}`)

	out, err := g.ProcessDynamicValues(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(out))
	assert.False(t, HasDynamicValues(raw))
}

func TestProcessDynamicValues_KeepsKeyOrder(t *testing.T) {
	g := newTestGenerator()
	raw := json.RawMessage(`{"zeta":"{{requestMethod}}","alpha":"x","mid":["{{requestPath}}"]}`)

	out, err := g.ProcessDynamicValues(raw, &Request{Method: "POST", Path: "/orders"})
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"POST","alpha":"x","mid":["/orders"]}`, string(out))
}

func TestProcessDynamicValues_WholeStringKeepsType(t *testing.T) {
	g := newTestGenerator()
	raw := json.RawMessage(`{"count":"{{number:7:7}}","flag":"{{ boolean }}","items":"{{arrayOf:2:number:3:3}}"}`)

	out, err := g.ProcessDynamicValues(raw, nil)
	require.NoError(t, err)

	got := decode(t, out)
	assert.Equal(t, float64(7), got["count"])
	assert.IsType(t, true, got["flag"])
	assert.Equal(t, []any{float64(3), float64(3)}, got["items"])
}

func TestProcessDynamicValues_MidStringIsText(t *testing.T) {
	g := newTestGenerator()
	raw := json.RawMessage(`{"label":"Order #{{number:9:9}} of {{arrayOf:2:oneOf:a}}"}`)

	out, err := g.ProcessDynamicValues(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"label":"Order #9 of a,a"}`, string(out))
}

func TestProcessDynamicValues_UnknownPlaceholderPassesThrough(t *testing.T) {
	g := newTestGenerator()
	raw := json.RawMessage(`{"a":"{{doesNotExist}}","b":"x {{nope:1}} y","c":"{{unclosed"}`)

	out, err := g.ProcessDynamicValues(raw, nil)
	require.NoError(t, err)

	want := map[string]any{"a": "{{doesNotExist}}", "b": "x {{nope:1}} y", "c": "{{unclosed"}
	if diff := cmp.Diff(want, decode(t, out)); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestProcessDynamicValues_RequestContext(t *testing.T) {
	g := newTestGenerator()
	req := &Request{
		Method:  "PUT",
		Path:    "/users/42",
		Headers: map[string]string{"x-request-id": "req-1", "user-agent": "curl/8.0"},
		Query:   map[string]string{"tenant": "acme"},
		Body:    []byte(`{"user":{"name":"Ada","age":36}}`),
	}
	raw := json.RawMessage(`{
		"requestId":"{{requestId}}",
		"agent":"{{userAgent}}",
		"tenant":"{{query:tenant}}",
		"trace":"{{header:X-Request-Id}}",
		"name":"{{body:user.name}}",
		"age":"{{body:user.age}}",
		"missing":"{{body:user.email}}"
	}`)

	out, err := g.ProcessDynamicValues(raw, req)
	require.NoError(t, err)

	want := map[string]any{
		"requestId": "req-1",
		"agent":     "curl/8.0",
		"tenant":    "acme",
		"trace":     "req-1",
		"name":      "Ada",
		"age":       float64(36),
		"missing":   "",
	}
	if diff := cmp.Diff(want, decode(t, out)); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestProcessDynamicValues_InvalidJSON(t *testing.T) {
	g := newTestGenerator()
	_, err := g.ProcessDynamicValues(json.RawMessage(`{"a":`), nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerateValue_OneOf(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 50; i++ {
		v, err := g.GenerateValue("oneOf:success,error", nil)
		require.NoError(t, err)
		assert.Contains(t, []any{"success", "error"}, v)
	}
}

func TestGenerateValue_ArrayOf(t *testing.T) {
	g := newTestGenerator()

	v, err := g.GenerateValue("arrayOf:3:word", nil)
	require.NoError(t, err)
	items, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, items, 3)

	v, err = g.GenerateValue("arrayOf", nil)
	require.NoError(t, err)
	assert.Len(t, v, 3)
}

func TestGenerateValue_Categories(t *testing.T) {
	g := newTestGenerator()

	tests := []struct {
		placeholder string
		check       func(t *testing.T, v any)
	}{
		{"timestamp", func(t *testing.T, v any) { assert.Equal(t, "2024-03-15T10:30:45.123Z", v) }},
		{"time", func(t *testing.T, v any) { assert.Equal(t, "10:30:45", v) }},
		{"unix", func(t *testing.T, v any) { assert.Equal(t, fixedNow.Unix(), v) }},
		{"uuid", func(t *testing.T, v any) { assert.Len(t, v, 36) }},
		{"UUID", func(t *testing.T, v any) { assert.Len(t, v, 36) }},
		{"email", func(t *testing.T, v any) { assert.Contains(t, v, "@") }},
		{"number:10:20", func(t *testing.T, v any) {
			n := v.(int)
			assert.GreaterOrEqual(t, n, 10)
			assert.LessOrEqual(t, n, 20)
		}},
		{"number", func(t *testing.T, v any) {
			n := v.(int)
			assert.GreaterOrEqual(t, n, 1)
			assert.LessOrEqual(t, n, 1000)
		}},
		{"float:1:2", func(t *testing.T, v any) {
			n := v.(float64)
			assert.GreaterOrEqual(t, n, 1.0)
			assert.LessOrEqual(t, n, 2.0)
			assert.Equal(t, n, float64(int(n*100+0.5))/100)
		}},
		{"words:4", func(t *testing.T, v any) { assert.Len(t, strings.Fields(v.(string)), 4) }},
		{"words", func(t *testing.T, v any) { assert.Len(t, strings.Fields(v.(string)), 3) }},
		{"title", func(t *testing.T, v any) { assert.Len(t, strings.Fields(v.(string)), 3) }},
		{"image", func(t *testing.T, v any) { assert.Equal(t, "https://picsum.photos/640/480", v) }},
		{"image:200:100", func(t *testing.T, v any) { assert.Equal(t, "https://picsum.photos/200/100", v) }},
		{"avatar", func(t *testing.T, v any) { assert.Contains(t, v, "avatars.githubusercontent.com") }},
		{"requestPath", func(t *testing.T, v any) { assert.Equal(t, "/unknown", v) }},
		{"requestMethod", func(t *testing.T, v any) { assert.Equal(t, "GET", v) }},
		{"department", func(t *testing.T, v any) { assert.Contains(t, departments, v) }},
		{"person.jobTitle", func(t *testing.T, v any) { assert.NotEmpty(t, v) }},
		{"internet.ipv6", func(t *testing.T, v any) { assert.Contains(t, v, ":") }},
		{"nothing.here", func(t *testing.T, v any) { assert.Equal(t, "{{nothing.here}}", v) }},
	}

	for _, tt := range tests {
		t.Run(tt.placeholder, func(t *testing.T) {
			v, err := g.GenerateValue(tt.placeholder, nil)
			require.NoError(t, err)
			tt.check(t, v)
		})
	}
}

func TestGenerator_SeedIsReproducible(t *testing.T) {
	a := NewGenerator(WithSeed(7))
	b := NewGenerator(WithSeed(7))

	for _, p := range []string{"name", "email", "number:1:100000"} {
		va, _ := a.GenerateValue(p, nil)
		vb, _ := b.GenerateValue(p, nil)
		assert.Equal(t, va, vb, p)
	}
}

func TestGenerator_Register(t *testing.T) {
	g := newTestGenerator()
	g.Register("sku", func(params []string, _ *Request) (any, error) {
		return "SKU-" + strings.Join(params, "-"), nil
	})

	out, err := g.ProcessDynamicValues(json.RawMessage(`{"sku":"{{SKU:a:b}}"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"sku":"SKU-a-b"}`, string(out))

	groups := g.AvailablePlaceholders()
	last := groups[len(groups)-1]
	assert.Equal(t, "Custom", last.Category)
	assert.Equal(t, []string{"{{sku}}"}, last.Placeholders)
}

func TestGenerator_PlaceholderErrorPropagates(t *testing.T) {
	g := newTestGenerator()
	boom := errors.New("boom")
	g.Register("explode", func(_ []string, _ *Request) (any, error) { return nil, boom })

	_, err := g.ProcessDynamicValues(json.RawMessage(`{"a":["ok","x {{explode}}"]}`), nil)
	assert.ErrorIs(t, err, boom)
}

func TestProcessResponse_Metadata(t *testing.T) {
	g := newTestGenerator()
	mock := &models.Mock{
		Response: json.RawMessage(`{"message":"static"}`),
		Delay:    models.FixedDelay(50),
	}

	res, err := g.ProcessResponse(context.Background(), mock, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Metadata.ProcessingTime, int64(50))
	assert.False(t, res.Metadata.DynamicValues)
	assert.Equal(t, "2024-03-15T10:30:45.123Z", res.Metadata.Generated)
	assert.Equal(t, `{"message":"static"}`, string(res.Response))
}

func TestProcessResponse_ReportsDynamic(t *testing.T) {
	g := newTestGenerator()
	mock := &models.Mock{Response: json.RawMessage(`{"id":"{{uuid}}"}`)}

	res, err := g.ProcessResponse(context.Background(), mock, nil)
	require.NoError(t, err)
	assert.True(t, res.Metadata.DynamicValues)
	assert.NotContains(t, string(res.Response), "{{")
}

func TestAvailablePlaceholders(t *testing.T) {
	g := newTestGenerator()
	groups := g.AvailablePlaceholders()

	require.NotEmpty(t, groups)
	assert.Equal(t, "Time", groups[0].Category)
	assert.Contains(t, groups[0].Placeholders, "{{timestamp}}")

	var all []string
	for _, grp := range groups {
		all = append(all, grp.Placeholders...)
	}
	assert.Contains(t, all, "{{arrayOf:count:type}}")
	assert.Contains(t, all, "{{oneOf:a,b,c}}")
}
