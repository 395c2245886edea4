package page

import (
	"fmt"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/gemtext"
)

// State is the page loading state shown to the user.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateReceiving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReceiving:
		return "receiving"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Lines is a snapshot of the lines received so far for URI.
type Lines struct {
	URI   string
	Lines []gemtext.Line
}

// Event is delivered once on Page.Events. The concrete types are
// InputEvent, SuccessEvent, RedirectEvent, BinaryEvent,
// DownloadCompletedEvent, ExternalEvent and FailureEvent.
type Event interface {
	event()
}

// InputEvent: the server asked for user input with Prompt.
type InputEvent struct {
	URI       string
	Prompt    string
	Sensitive bool
}

// SuccessEvent: a text response has been fully received.
type SuccessEvent struct {
	URI string
}

// RedirectEvent: the server redirects to URI. Redirects counts the hops
// made so far, this one included.
type RedirectEvent struct {
	URI       string
	SourceURI string
	Redirects int
}

// BinaryEvent: a non-text success response whose body has not been read
// yet. Pass it to Page.Download or close Response.
type BinaryEvent struct {
	URI      string
	Response *gemini.Response
	MimeType gemini.MimeType

	op *operation
}

// DownloadCompletedEvent: a binary body has been saved to Path.
type DownloadCompletedEvent struct {
	URI      string
	Path     string
	MimeType gemini.MimeType
}

// ExternalEvent: a link uses a scheme this client does not speak.
type ExternalEvent struct {
	URI string
}

// FailureEvent: the server answered with a failure or a local problem
// happened. ServerDetails is the server's own message, if useful.
type FailureEvent struct {
	Short         string
	Details       string
	ServerDetails string
}

func (InputEvent) event()             {}
func (SuccessEvent) event()           {}
func (RedirectEvent) event()          {}
func (BinaryEvent) event()            {}
func (DownloadCompletedEvent) event() {}
func (ExternalEvent) event()          {}
func (FailureEvent) event()           {}
