// Package page drives Gemini requests for one browsing session: it opens
// URLs, follows the response status, streams Gemtext lines to the consumer
// and reports everything else as events.
//
// At most one request is in flight per Page. Starting a request cancels the
// previous one, which then stops silently: no event, state or lines are
// published for it afterwards.
package page

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/gemtext"
	"github.com/knowfox/comet/history"
)

// MaxRedirects is the number of redirections followed for one link.
const MaxRedirects = 5

// DefaultThrottle is the minimum delay between two line snapshots.
const DefaultThrottle = 100 * time.Millisecond

// CredentialProvider returns the client certificate to use for a URL, nil
// for none.
type CredentialProvider interface {
	CredentialForURL(ctx context.Context, rawurl string) (*tls.Certificate, error)
}

// Options configure a Page.
type Options struct {
	// Client sends the requests. Nil uses a default gemini.Client.
	Client *gemini.Client

	// Credentials is optional.
	Credentials CredentialProvider

	// History records visited pages and marks visited links. Nil uses an
	// in-memory store.
	History history.Store

	Logger *slog.Logger

	// Throttle is the minimum delay between line snapshots. Zero means
	// DefaultThrottle.
	Throttle time.Duration
}

// Page is one browsing session.
type Page struct {
	client   *gemini.Client
	creds    CredentialProvider
	history  history.Store
	logger   *slog.Logger
	throttle time.Duration

	mu         sync.Mutex
	cond       *sync.Cond
	gen        uint64
	cancel     context.CancelFunc
	state      State
	currentURL string
	loadingURL string
	queue      []Event
	closed     bool

	events chan Event
	states chan State
	lines  chan Lines
	done   chan struct{}
}

// operation is the context of one request.
type operation struct {
	ctx       context.Context
	gen       uint64
	uri       *url.URL
	redirects int
}

// New creates an idle Page. Close it to stop event delivery.
func New(opts Options) *Page {
	p := &Page{
		client:   opts.Client,
		creds:    opts.Credentials,
		history:  opts.History,
		logger:   opts.Logger,
		throttle: opts.Throttle,
		events:   make(chan Event),
		states:   make(chan State, 1),
		lines:    make(chan Lines, 1),
		done:     make(chan struct{}),
	}
	if p.client == nil {
		p.client = &gemini.Client{Logger: opts.Logger}
	}
	if p.history == nil {
		p.history = history.NewMemoryStore()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.throttle <= 0 {
		p.throttle = DefaultThrottle
	}
	p.cond = sync.NewCond(&p.mu)
	go p.deliver()
	return p
}

// Events delivers every event once. It is closed by Close.
func (p *Page) Events() <-chan Event { return p.events }

// States holds the latest state change not yet received.
func (p *Page) States() <-chan State { return p.states }

// Lines holds the latest line snapshot not yet received.
func (p *Page) Lines() <-chan Lines { return p.lines }

// State returns the current state.
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentURL is the last page fully received.
func (p *Page) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURL
}

// LoadingURL is the URL of the latest request.
func (p *Page) LoadingURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingURL
}

// Open resolves link against the current page and requests it. Links to
// other schemes produce an ExternalEvent.
func (p *Page) Open(link string) {
	u, err := gemini.ResolveLink(link, p.CurrentURL())
	if err != nil {
		p.signalError(p.begin(nil, 0), fmt.Sprintf("Invalid URL %q.", link))
		return
	}
	if u.Scheme != gemini.SchemaGemini {
		op := p.begin(nil, 0)
		p.emit(op, ExternalEvent{URI: u.String()})
		p.setState(op, StateIdle)
		return
	}
	p.SendRequest(u, 0)
}

// SendRequest cancels any request in flight and requests u, an absolute
// gemini URL. redirects is the number of redirections that led here.
func (p *Page) SendRequest(u *url.URL, redirects int) {
	p.logger.Info("request", "uri", u.String(), "redirects", redirects)
	op := p.begin(u, redirects)
	if op == nil {
		return
	}
	go p.run(op)
}

// SubmitInput answers an InputEvent: the input becomes the query string.
func (p *Page) SubmitInput(ev InputEvent, input string) {
	u, err := url.Parse(ev.URI)
	if err != nil {
		p.signalError(p.begin(nil, 0), fmt.Sprintf("Invalid URL %q.", ev.URI))
		return
	}
	p.SendRequest(gemini.WithQuery(u, input), 0)
}

// FollowRedirect requests the target of ev unless the redirection limit is
// exceeded, in which case a FailureEvent is emitted.
func (p *Page) FollowRedirect(ev RedirectEvent) {
	if ev.Redirects > MaxRedirects {
		p.logger.Warn("too many redirections", "uri", ev.URI, "redirects", ev.Redirects)
		p.signalError(p.begin(nil, ev.Redirects), "Too many redirections.")
		return
	}
	u, err := gemini.ResolveLink(ev.URI, ev.SourceURI)
	if err != nil {
		p.signalError(p.begin(nil, ev.Redirects), fmt.Sprintf("Invalid redirection to %q.", ev.URI))
		return
	}
	if u.Scheme != gemini.SchemaGemini {
		op := p.begin(nil, ev.Redirects)
		p.emit(op, ExternalEvent{URI: u.String()})
		p.setState(op, StateIdle)
		return
	}
	p.SendRequest(u, ev.Redirects)
}

// Cancel stops the request in flight, if any, and returns to idle.
func (p *Page) Cancel() {
	p.setState(p.begin(nil, 0), StateIdle)
}

// Close cancels the request in flight and closes Events.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	close(p.done)
	p.cond.Broadcast()
}

// begin supersedes the operation in flight. With a nil u, the returned
// operation only serves to publish a local outcome.
func (p *Page) begin(u *url.URL, redirects int) *operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.gen++
	op := &operation{ctx: ctx, gen: p.gen, uri: u, redirects: redirects}
	if u != nil {
		p.loadingURL = u.String()
		p.setStateLocked(StateConnecting)
	}
	return op
}

// current reports whether op is still the operation in flight. Callers
// hold p.mu.
func (p *Page) current(op *operation) bool {
	return op != nil && !p.closed && op.gen == p.gen
}

func (p *Page) emit(op *operation, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current(op) {
		return
	}
	p.queue = append(p.queue, ev)
	p.cond.Signal()
}

// deliver moves queued events to the events channel so that emitters never
// wait for the consumer while holding the lock.
func (p *Page) deliver() {
	defer close(p.events)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		ev := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.events <- ev:
		case <-p.done:
			return
		}
	}
}

func (p *Page) setState(op *operation, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current(op) {
		p.setStateLocked(s)
	}
}

func (p *Page) setStateLocked(s State) {
	p.state = s
	replaceLatest(p.states, s)
}

func (p *Page) publishLines(op *operation, uri string, lines []gemtext.Line) {
	snapshot := Lines{URI: uri, Lines: append([]gemtext.Line(nil), lines...)}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current(op) {
		replaceLatest(p.lines, snapshot)
	}
}

// replaceLatest stores v in a one-slot channel, dropping an unread value.
// Writers hold p.mu so the send cannot block.
func replaceLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// signalError reports a local failure with a generic title.
func (p *Page) signalError(op *operation, message string) {
	p.emit(op, FailureEvent{Short: "Error", Details: message})
	p.setState(op, StateIdle)
}
