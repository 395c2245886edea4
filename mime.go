package gemini

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultCharset applies when a MIME type has no charset parameter.
const DefaultCharset = "utf-8"

// The default media type for responses.
const defaultMediaType = "text/gemini; charset=utf-8"

// MimeType is the parsed meta of a success response.
type MimeType struct {
	Main   string
	Sub    string
	Params map[string]string
}

// DefaultMimeType is used when a success response carries no usable meta.
var DefaultMimeType = MimeType{Main: "text", Sub: "gemini", Params: map[string]string{"charset": DefaultCharset}}

// ParseMimeType parses "type/subtype[;key=value]*". Main and sub types are
// trimmed with their case preserved; parameters are trimmed and lower-cased.
func ParseMimeType(s string) (MimeType, error) {
	typ, rawParams, hasParams := strings.Cut(s, ";")
	params := map[string]string{}
	if hasParams {
		for _, p := range strings.Split(rawParams, ";") {
			p = strings.ToLower(strings.TrimSpace(p))
			if strings.Count(p, "=") != 1 {
				return MimeType{}, fmt.Errorf("%w: bad parameter %q", ErrInvalidMimeType, p)
			}
			k, v, _ := strings.Cut(p, "=")
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if strings.Count(typ, "/") != 1 {
		return MimeType{}, fmt.Errorf("%w: %q", ErrInvalidMimeType, s)
	}
	main, sub, _ := strings.Cut(typ, "/")
	return MimeType{
		Main:   strings.TrimSpace(main),
		Sub:    strings.TrimSpace(sub),
		Params: params,
	}, nil
}

// Short returns "main/sub" with "*" standing for empty parts.
func (m MimeType) Short() string {
	main, sub := m.Main, m.Sub
	if main == "" {
		main = "*"
	}
	if sub == "" {
		sub = "*"
	}
	return main + "/" + sub
}

// Charset returns the charset parameter, DefaultCharset when absent.
func (m MimeType) Charset() string {
	if c, ok := m.Params["charset"]; ok {
		return c
	}
	return DefaultCharset
}

// IsText reports whether the body should be parsed as Gemtext.
func (m MimeType) IsText() bool {
	return m.Main == "text"
}

func (m MimeType) String() string {
	var b strings.Builder
	b.WriteString(m.Short())
	keys := make([]string, 0, len(m.Params))
	for k := range m.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "; %s=%s", k, m.Params[k])
	}
	return b.String()
}
