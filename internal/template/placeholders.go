package template

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/gjson"
)

const maxArrayItems = 1000

var departments = []string{
	"Books", "Movies", "Music", "Games", "Electronics", "Computers", "Home",
	"Garden", "Tools", "Grocery", "Health", "Beauty", "Toys", "Kids", "Baby",
	"Clothing", "Shoes", "Jewelery", "Sports", "Outdoors", "Automotive", "Industrial",
}

type placeholderDef struct {
	name  string
	usage string
	fn    GeneratorFunc
}

type placeholderGroup struct {
	category string
	defs     []placeholderDef
}

// PlaceholderGroup lists the placeholders of one category
type PlaceholderGroup struct {
	Category     string   `json:"category"`
	Placeholders []string `json:"placeholders"`
}

func simple(fn func() any) GeneratorFunc {
	return func(_ []string, _ *Request) (any, error) {
		return fn(), nil
	}
}

func def(name string, fn GeneratorFunc) placeholderDef {
	return placeholderDef{name: name, usage: name, fn: fn}
}

func defUsage(name, usage string, fn GeneratorFunc) placeholderDef {
	return placeholderDef{name: name, usage: usage, fn: fn}
}

// builtins returns the built-in placeholders in catalogue order.
func (g *Generator) builtins() []placeholderGroup {
	f := g.faker

	return []placeholderGroup{
		{"Time", []placeholderDef{
			def("timestamp", simple(func() any { return g.Timestamp() })),
			def("now", simple(func() any { return g.Timestamp() })),
			def("date", simple(func() any {
				recent := g.now().Add(-time.Duration(f.Number(0, 86400)) * time.Second)
				return recent.Format("2006-01-02")
			})),
			def("time", simple(func() any { return g.now().Format("15:04:05") })),
			def("unix", simple(func() any { return g.now().Unix() })),
		}},
		{"Person", []placeholderDef{
			def("name", simple(func() any { return f.Name() })),
			def("fullName", simple(func() any { return f.Name() })),
			def("firstName", simple(func() any { return f.FirstName() })),
			def("lastName", simple(func() any { return f.LastName() })),
			def("email", simple(func() any { return f.Email() })),
			def("phone", simple(func() any { return f.PhoneFormatted() })),
			def("username", simple(func() any { return f.Username() })),
		}},
		{"Business", []placeholderDef{
			def("company", simple(func() any { return f.Company() })),
			def("jobTitle", simple(func() any { return f.JobTitle() })),
			def("department", simple(func() any { return f.RandomString(departments) })),
		}},
		{"Address", []placeholderDef{
			def("address", simple(func() any { return f.Street() })),
			def("city", simple(func() any { return f.City() })),
			def("country", simple(func() any { return f.Country() })),
			def("zipCode", simple(func() any { return f.Zip() })),
			def("zip", simple(func() any { return f.Zip() })),
		}},
		{"Numbers & IDs", []placeholderDef{
			def("id", simple(func() any { return f.UUID() })),
			def("uuid", simple(func() any { return f.UUID() })),
			defUsage("number", "number:min:max", func(params []string, _ *Request) (any, error) {
				lo, hi := intParam(params, 0, 1), intParam(params, 1, 1000)
				if hi < lo {
					lo, hi = hi, lo
				}
				return f.Number(lo, hi), nil
			}),
			defUsage("float", "float:min:max", func(params []string, _ *Request) (any, error) {
				lo, hi := floatParam(params, 0, 0), floatParam(params, 1, 100)
				if hi < lo {
					lo, hi = hi, lo
				}
				return math.Round(f.Float64Range(lo, hi)*100) / 100, nil
			}),
		}},
		{"Internet", []placeholderDef{
			def("url", simple(func() any { return f.URL() })),
			def("domain", simple(func() any { return f.DomainName() })),
			def("ip", simple(func() any { return f.IPv4Address() })),
			def("mac", simple(func() any { return f.MacAddress() })),
		}},
		{"Text", []placeholderDef{
			def("word", simple(func() any { return f.Word() })),
			defUsage("words", "words:count", func(params []string, _ *Request) (any, error) {
				return strings.Join(g.words(intParam(params, 0, 3)), " "), nil
			}),
			def("sentence", simple(func() any { return f.Sentence(f.Number(5, 12)) })),
			def("paragraph", simple(func() any { return f.Paragraph(1, f.Number(3, 6), f.Number(5, 12), " ") })),
			def("title", simple(func() any {
				words := g.words(3)
				for i, w := range words {
					words[i] = capitalize(w)
				}
				return strings.Join(words, " ")
			})),
		}},
		{"Media", []placeholderDef{
			def("color", simple(func() any { return f.SafeColor() })),
			defUsage("image", "image:width:height", func(params []string, _ *Request) (any, error) {
				w, h := intParam(params, 0, 640), intParam(params, 1, 480)
				return fmt.Sprintf("https://picsum.photos/%d/%d", w, h), nil
			}),
			def("avatar", simple(func() any {
				return fmt.Sprintf("https://avatars.githubusercontent.com/u/%d", f.Number(1, 99999999))
			})),
		}},
		{"Request", []placeholderDef{
			def("requestId", func(_ []string, req *Request) (any, error) {
				if id := req.Header("x-request-id"); id != "" {
					return id, nil
				}
				return f.UUID(), nil
			}),
			def("userAgent", func(_ []string, req *Request) (any, error) {
				if ua := req.Header("user-agent"); ua != "" {
					return ua, nil
				}
				return f.UserAgent(), nil
			}),
			def("requestPath", func(_ []string, req *Request) (any, error) {
				if req == nil || req.Path == "" {
					return "/unknown", nil
				}
				return req.Path, nil
			}),
			def("requestMethod", func(_ []string, req *Request) (any, error) {
				if req == nil || req.Method == "" {
					return "GET", nil
				}
				return req.Method, nil
			}),
			defUsage("query", "query:name", func(params []string, req *Request) (any, error) {
				return req.QueryParam(strings.Join(params, ":")), nil
			}),
			defUsage("header", "header:name", func(params []string, req *Request) (any, error) {
				return req.Header(strings.Join(params, ":")), nil
			}),
			defUsage("body", "body:path", func(params []string, req *Request) (any, error) {
				if req == nil || len(req.Body) == 0 {
					return "", nil
				}
				path := strings.Join(params, ":")
				if path == "" {
					return string(req.Body), nil
				}
				res := gjson.GetBytes(req.Body, path)
				if !res.Exists() {
					return "", nil
				}
				return res.Value(), nil
			}),
		}},
		{"Composite", []placeholderDef{
			defUsage("oneOf", "oneOf:a,b,c", func(params []string, _ *Request) (any, error) {
				options := strings.Split(strings.Join(params, ":"), ",")
				for i := range options {
					options[i] = strings.TrimSpace(options[i])
				}
				return f.RandomString(options), nil
			}),
			def("boolean", simple(func() any { return f.Bool() })),
			defUsage("arrayOf", "arrayOf:count:type", func(params []string, req *Request) (any, error) {
				count := intParam(params, 0, 3)
				if count < 0 {
					count = 0
				}
				if count > maxArrayItems {
					count = maxArrayItems
				}
				itemType := "word"
				if len(params) > 1 && strings.TrimSpace(params[1]) != "" {
					itemType = strings.TrimSpace(strings.Join(params[1:], ":"))
				}
				items := make([]any, 0, count)
				for i := 0; i < count; i++ {
					v, err := g.GenerateValue(itemType, req)
					if err != nil {
						return nil, err
					}
					items = append(items, v)
				}
				return items, nil
			}),
		}},
		{"Provider", []placeholderDef{
			def("person.fullName", simple(func() any { return f.Name() })),
			def("person.firstName", simple(func() any { return f.FirstName() })),
			def("person.lastName", simple(func() any { return f.LastName() })),
			def("person.jobTitle", simple(func() any { return f.JobTitle() })),
			def("person.gender", simple(func() any { return f.Gender() })),
			def("internet.email", simple(func() any { return f.Email() })),
			def("internet.userName", simple(func() any { return f.Username() })),
			def("internet.url", simple(func() any { return f.URL() })),
			def("internet.domainName", simple(func() any { return f.DomainName() })),
			def("internet.ip", simple(func() any { return f.IPv4Address() })),
			def("internet.ipv4", simple(func() any { return f.IPv4Address() })),
			def("internet.ipv6", simple(func() any { return f.IPv6Address() })),
			def("internet.mac", simple(func() any { return f.MacAddress() })),
			def("internet.userAgent", simple(func() any { return f.UserAgent() })),
			def("location.streetAddress", simple(func() any { return f.Street() })),
			def("location.city", simple(func() any { return f.City() })),
			def("location.state", simple(func() any { return f.State() })),
			def("location.country", simple(func() any { return f.Country() })),
			def("location.zipCode", simple(func() any { return f.Zip() })),
			def("location.latitude", simple(func() any { return f.Latitude() })),
			def("location.longitude", simple(func() any { return f.Longitude() })),
			def("company.name", simple(func() any { return f.Company() })),
			def("company.buzzWord", simple(func() any { return f.BuzzWord() })),
			def("commerce.department", simple(func() any { return f.RandomString(departments) })),
			def("finance.currencyCode", simple(func() any { return f.CurrencyShort() })),
			def("lorem.word", simple(func() any { return f.Word() })),
			def("lorem.sentence", simple(func() any { return f.Sentence(f.Number(5, 12)) })),
			def("lorem.paragraph", simple(func() any { return f.Paragraph(1, f.Number(3, 6), f.Number(5, 12), " ") })),
			def("hacker.phrase", simple(func() any { return f.HackerPhrase() })),
			def("string.uuid", simple(func() any { return f.UUID() })),
			def("datatype.boolean", simple(func() any { return f.Bool() })),
			def("color.human", simple(func() any { return f.SafeColor() })),
			def("color.rgb", simple(func() any { return f.HexColor() })),
			def("animal.type", simple(func() any { return f.Animal() })),
			def("date.past", simple(func() any { return f.PastDate().UTC().Format(isoLayout) })),
			def("date.future", simple(func() any { return f.FutureDate().UTC().Format(isoLayout) })),
			def("phone.number", simple(func() any { return f.PhoneFormatted() })),
		}},
	}
}

// AvailablePlaceholders lists every placeholder by category, custom ones last.
func (g *Generator) AvailablePlaceholders() []PlaceholderGroup {
	var groups []PlaceholderGroup
	for _, group := range g.builtins() {
		pg := PlaceholderGroup{Category: group.category}
		for _, d := range group.defs {
			pg.Placeholders = append(pg.Placeholders, "{{"+d.usage+"}}")
		}
		groups = append(groups, pg)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.custom) > 0 {
		pg := PlaceholderGroup{Category: "Custom"}
		for _, name := range g.custom {
			pg.Placeholders = append(pg.Placeholders, "{{"+name+"}}")
		}
		groups = append(groups, pg)
	}
	return groups
}

func (g *Generator) words(n int) []string {
	if n < 0 {
		n = 0
	}
	if n > maxArrayItems {
		n = maxArrayItems
	}
	out := make([]string, n)
	for i := range out {
		out[i] = g.faker.Word()
	}
	return out
}

func intParam(params []string, i, fallback int) int {
	if i >= len(params) {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(params[i]))
	if err != nil {
		return fallback
	}
	return n
}

func floatParam(params []string, i int, fallback float64) float64 {
	if i >= len(params) {
		return fallback
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(params[i]), 64)
	if err != nil {
		return fallback
	}
	return n
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
