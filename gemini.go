// Package gemini implements the client side of the Gemini protocol: a TLS
// transport, the response header framer, the MIME model used for success
// responses and URI helpers. A minimal server is included for local use.
package gemini

import (
	"errors"
	"fmt"
)

// StatusCode is Gemini status codes as defined in the Gemini spec.
type StatusCode int

// Lists Gemini related URI schemas.
const (
	SchemaGemini = "gemini"

	// DefaultPort is used when a URL carries no explicit port.
	DefaultPort = "1965"
)

// Provides status codes.
const (
	StatusInput               StatusCode = 10
	StatusSensitiveInput      StatusCode = 11
	StatusSuccess             StatusCode = 20
	StatusTemporaryRedirect   StatusCode = 30
	StatusPermanentRedirect   StatusCode = 31
	StatusTemporaryFailure    StatusCode = 40
	StatusServerUnavailable   StatusCode = 41
	StatusCGIError            StatusCode = 42
	StatusProxyError          StatusCode = 43
	StatusSlowDown            StatusCode = 44
	StatusPermanentFailure    StatusCode = 50
	StatusNotFound            StatusCode = 51
	StatusGone                StatusCode = 52
	StatusProxyRequestRefused StatusCode = 53
	StatusBadRequest          StatusCode = 59
	StatusCertRequired        StatusCode = 60
	StatusCertNotAuthorized   StatusCode = 61
	StatusCertNotValid        StatusCode = 62
)

var knownStatus = map[StatusCode]struct{}{
	StatusInput: {}, StatusSensitiveInput: {},
	StatusSuccess:           {},
	StatusTemporaryRedirect: {}, StatusPermanentRedirect: {},
	StatusTemporaryFailure: {}, StatusServerUnavailable: {}, StatusCGIError: {}, StatusProxyError: {}, StatusSlowDown: {},
	StatusPermanentFailure: {}, StatusNotFound: {}, StatusGone: {}, StatusProxyRequestRefused: {}, StatusBadRequest: {},
	StatusCertRequired: {}, StatusCertNotAuthorized: {}, StatusCertNotValid: {},
}

// Known reports whether s is one of the status codes this client understands.
func (s StatusCode) Known() bool {
	_, ok := knownStatus[s]
	return ok
}

// Category is the first digit of a status code.
type Category int

// Status categories. 4x and 5x are both failures; they differ only in
// whether the server expects a retry to succeed.
const (
	CategoryUnknown          Category = 0
	CategoryInput            Category = 1
	CategorySuccess          Category = 2
	CategoryRedirect         Category = 3
	CategoryTemporaryFailure Category = 4
	CategoryPermanentFailure Category = 5
	CategoryCertificate      Category = 6
)

// Category derives the category purely from the first digit.
func (s StatusCode) Category() Category {
	c := Category(s / 10)
	if c < CategoryInput || c > CategoryCertificate {
		return CategoryUnknown
	}
	return c
}

func (s StatusCode) String() string {
	return fmt.Sprintf("%d", int(s))
}

// Errors.
var (
	ErrInvalidResponse = errors.New("gemini: can't parse server response")
	ErrInvalidMimeType = errors.New("gemini: invalid MIME type")
	ErrInvalidURL      = errors.New("gemini: invalid URL")
	ErrUnknownHost     = errors.New("gemini: unknown host")
	ErrConnectFailure  = errors.New("gemini: can't connect")
	ErrTimeout         = errors.New("gemini: connection timed out")
	ErrTLSHandshake    = errors.New("gemini: TLS handshake failed")
	ErrRequestTooLong  = errors.New("gemini: request exceeds 1024 length")
)
