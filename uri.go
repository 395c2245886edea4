package gemini

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveLink returns the absolute URL a link points to.
//
// Links may be absolute, relative to base, or scheme-less ("//host/path")
// for cross-capsule linking. Without a base, a relative link is taken as
// host-only user input such as "medusae.space".
func ResolveLink(link, base string) (*url.URL, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch {
	case u.IsAbs():
		if u.Scheme == SchemaGemini && u.Path == "" {
			u.Path = "/"
		}
		return u, nil
	case strings.HasPrefix(link, "//"):
		u.Scheme = SchemaGemini
		return u, nil
	case base != "":
		return JoinURLs(base, link)
	default:
		return ToGeminiURL(u), nil
	}
}

// ToGeminiURL turns host-only input, which url.Parse stores in the path,
// into a gemini URL. It does not rewrite absolute URLs.
func ToGeminiURL(u *url.URL) *url.URL {
	return &url.URL{
		Scheme:   SchemaGemini,
		Host:     u.Path,
		Path:     "/",
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
}

// JoinURLs resolves relative against base. Scheme and authority come from
// base; path, query and fragment from relative.
func JoinURLs(base, relative string) (*url.URL, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	r, err := url.Parse(relative)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	var path string
	if strings.HasPrefix(relative, "/") {
		path = r.Path
	} else {
		path = removeLastSegment(b.Path) + "/" + r.Path
	}
	return &url.URL{
		Scheme:   b.Scheme,
		User:     b.User,
		Host:     b.Host,
		Path:     RemoveDotSegments(path),
		RawQuery: r.RawQuery,
		Fragment: r.Fragment,
	}, nil
}

// RemoveDotSegments removes "." and ".." segments from path.
func RemoveDotSegments(path string) string {
	var output string
	slice := path
	for slice != "" {
		switch {
		case strings.HasPrefix(slice, "../"):
			slice = slice[3:]
		case strings.HasPrefix(slice, "./"), strings.HasPrefix(slice, "/./"):
			slice = slice[2:]
		case slice == "/.":
			slice = "/"
		case strings.HasPrefix(slice, "/../"):
			slice = "/" + slice[4:]
			output = removeLastSegment(output)
		case slice == "/..":
			slice = "/"
			output = removeLastSegment(output)
		case slice == "." || slice == "..":
			slice = ""
		default:
			var first string
			first, slice = popFirstSegment(slice)
			output += first
		}
	}
	return output
}

// removeLastSegment drops the last segment of path and its leading "/".
func removeLastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > -1 {
		return path[:i]
	}
	return path
}

// popFirstSegment returns the first segment, leading "/" included, and the rest.
func popFirstSegment(path string) (string, string) {
	if path == "" {
		return "", ""
	}
	next := strings.IndexByte(path[1:], '/')
	if next == -1 {
		return path, ""
	}
	next++
	return path[:next], path[next:]
}

// WithQuery returns a copy of u whose query is the percent-encoded input.
func WithQuery(u *url.URL, input string) *url.URL {
	u2 := *u
	u2.RawQuery = strings.ReplaceAll(url.QueryEscape(input), "+", "%20")
	u2.ForceQuery = false
	return &u2
}
