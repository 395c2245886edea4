package page

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gemini "github.com/knowfox/comet"
)

type failureText struct {
	short   string
	details string
}

var failureTexts = map[gemini.StatusCode]failureText{
	gemini.StatusTemporaryFailure:    {"40 Temporary failure", "The server encountered a temporary failure."},
	gemini.StatusServerUnavailable:   {"41 Server unavailable", "The server is currently unavailable."},
	gemini.StatusCGIError:            {"42 CGI error", "A CGI script encountered an error."},
	gemini.StatusProxyError:          {"43 Proxy error", "The server failed to proxy the request."},
	gemini.StatusSlowDown:            {"44 Slow down", ""},
	gemini.StatusPermanentFailure:    {"50 Permanent failure", "This request failed and similar requests will likely fail as well."},
	gemini.StatusNotFound:            {"51 Not found", "This page can't be found."},
	gemini.StatusGone:                {"52 Gone", "This page is gone."},
	gemini.StatusProxyRequestRefused: {"53 Proxy request refused", "The server refused to proxy the request."},
	gemini.StatusBadRequest:          {"59 Bad request", "Bad request."},
}

// failureFor maps a 4x or 5x response to its event. The slow down meta is
// a delay in seconds, not a message.
func failureFor(code gemini.StatusCode, meta string) FailureEvent {
	text, ok := failureTexts[code]
	if !ok {
		return FailureEvent{Short: fmt.Sprintf("%d (unknown)", code), Details: "Unknown error code.", ServerDetails: meta}
	}
	if code == gemini.StatusSlowDown {
		wait := "a few"
		if n, err := strconv.Atoi(strings.TrimSpace(meta)); err == nil {
			wait = strconv.Itoa(n)
		}
		return FailureEvent{Short: text.short, Details: fmt.Sprintf("You should wait %s seconds before retrying.", wait)}
	}
	ev := FailureEvent{Short: text.short, Details: text.details}
	if meta != "" && !sameLabel(text.short, meta) {
		ev.ServerDetails = meta
	}
	return ev
}

// sameLabel reports whether meta only repeats the label, e.g. "Not found"
// for "51 Not found".
func sameLabel(short, meta string) bool {
	_, label, _ := strings.Cut(short, " ")
	meta = strings.TrimSpace(meta)
	return strings.EqualFold(meta, label) || strings.EqualFold(meta, short)
}

// connectionMessage describes a failure that prevented a response.
func connectionMessage(u *url.URL, err error) string {
	detail := err
	var de *gemini.DialError
	if errors.As(err, &de) {
		detail = de.Err
	}
	switch {
	case errors.Is(err, gemini.ErrUnknownHost):
		return fmt.Sprintf("Unknown host %q.", u.Host)
	case errors.Is(err, gemini.ErrTimeout):
		return "Connection timed out."
	case errors.Is(err, gemini.ErrConnectFailure):
		return fmt.Sprintf("Can't connect to this server: %v.", detail)
	case errors.Is(err, gemini.ErrTLSHandshake):
		return fmt.Sprintf("TLS handshake failed: %v.", detail)
	case errors.Is(err, gemini.ErrInvalidResponse):
		return "Can't parse server response."
	}
	return "Oops, something failed!"
}
