package page

import (
	"crypto/tls"
	"fmt"
	"time"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/gemtext"
)

// run performs op from connection to its terminal event.
func (p *Page) run(op *operation) {
	uri := op.uri.String()

	var cert *tls.Certificate
	if p.creds != nil {
		c, err := p.creds.CredentialForURL(op.ctx, uri)
		if err != nil {
			p.logger.Warn("credential lookup failed", "uri", uri, "error", err)
		}
		cert = c
	}

	res, err := p.client.Do(op.ctx, &gemini.Request{URL: op.uri, Certificate: cert})
	if op.ctx.Err() != nil {
		if res != nil {
			res.Close()
		}
		p.logger.Debug("request cancelled", "uri", uri)
		return
	}
	if err != nil {
		p.logger.Warn("request failed", "uri", uri, "error", err)
		p.signalError(op, connectionMessage(op.uri, err))
		return
	}

	p.logger.Info("response", "uri", uri, "status", int(res.StatusCode), "meta", res.Meta)
	switch res.StatusCode.Category() {
	case gemini.CategoryInput:
		res.Close()
		p.emit(op, InputEvent{URI: uri, Prompt: res.Meta, Sensitive: res.StatusCode == gemini.StatusSensitiveInput})
		p.setState(op, StateIdle)
	case gemini.CategorySuccess:
		p.handleSuccess(op, res)
	case gemini.CategoryRedirect:
		res.Close()
		p.emit(op, RedirectEvent{URI: res.Meta, SourceURI: uri, Redirects: op.redirects + 1})
		p.setState(op, StateIdle)
	case gemini.CategoryTemporaryFailure, gemini.CategoryPermanentFailure:
		res.Close()
		p.emit(op, failureFor(res.StatusCode, res.Meta))
		p.setState(op, StateIdle)
	default:
		res.Close()
		p.signalError(op, fmt.Sprintf("Can't handle code %d.", res.StatusCode))
	}
}

func (p *Page) handleSuccess(op *operation, res *gemini.Response) {
	mimeType, err := gemini.ParseMimeType(res.Meta)
	if err != nil {
		mimeType = gemini.DefaultMimeType
	}
	if !mimeType.IsText() {
		p.emit(op, BinaryEvent{URI: op.uri.String(), Response: res, MimeType: mimeType, op: op})
		return
	}
	p.receiveText(op, res, mimeType)
}

// receiveText parses the body and publishes line snapshots, at most one per
// throttle period and only when lines were added.
func (p *Page) receiveText(op *operation, res *gemini.Response, mimeType gemini.MimeType) {
	defer res.Close()
	uri := op.uri.String()
	p.setState(op, StateReceiving)

	var lines []gemtext.Line
	p.publishLines(op, uri, lines)

	enc, ok := gemtext.Encoding(mimeType.Charset())
	if !ok {
		p.logger.Warn("unknown charset, decoding as utf-8", "uri", uri, "charset", mimeType.Charset())
	}
	parsed := gemtext.Parse(op.ctx, res.Body, enc)

	var title string
	hasTitle := false
	lastUpdate := time.Now()
	lastCount := 0
	timer := time.NewTimer(p.throttle)
	defer timer.Stop()

	for receiving := true; receiving; {
		select {
		case line, ok := <-parsed:
			if !ok {
				receiving = false
				break
			}
			line = p.markVisited(op, uri, line)
			lines = append(lines, line)
			if t, isTitle := line.(gemtext.Title); isTitle && t.Level == 1 && !hasTitle {
				title, hasTitle = t.Text, true
			}
		case <-timer.C:
			timer.Reset(p.throttle)
		}
		if len(lines) > lastCount && time.Since(lastUpdate) >= p.throttle {
			p.publishLines(op, uri, lines)
			lastUpdate = time.Now()
			lastCount = len(lines)
		}
	}
	if op.ctx.Err() != nil {
		p.logger.Debug("receiving cancelled", "uri", uri, "lines", len(lines))
		return
	}
	p.logger.Debug("done parsing line data", "uri", uri, "lines", len(lines))
	p.publishLines(op, uri, lines)

	if err := p.history.Record(op.ctx, uri, title); err != nil {
		p.logger.Warn("history record failed", "uri", uri, "error", err)
	}
	p.mu.Lock()
	if p.current(op) {
		p.currentURL = uri
	}
	p.mu.Unlock()
	p.emit(op, SuccessEvent{URI: uri})
	p.setState(op, StateIdle)
}

// markVisited flags links whose target is in the history.
func (p *Page) markVisited(op *operation, base string, line gemtext.Line) gemtext.Line {
	link, ok := line.(gemtext.Link)
	if !ok {
		return line
	}
	target, err := gemini.ResolveLink(link.URL, base)
	if err != nil {
		return line
	}
	visited, err := p.history.Contains(op.ctx, target.String())
	if err != nil {
		p.logger.Debug("history lookup failed", "uri", target.String(), "error", err)
		return line
	}
	link.Visited = visited
	return link
}
