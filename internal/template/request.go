package template

import "strings"

// Request is the request context available to placeholders
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

// Header returns a request header by case-insensitive name.
func (r *Request) Header(name string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Headers[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// QueryParam returns a query parameter value.
func (r *Request) QueryParam(name string) string {
	if r == nil {
		return ""
	}
	return r.Query[name]
}
