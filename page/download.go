package page

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Download saves the body of ev in dir and emits a DownloadCompletedEvent,
// or a FailureEvent. ev must come from this Page. Download returns once the
// body is fully received, the request is cancelled or writing fails.
func (p *Page) Download(ev BinaryEvent, dir string) {
	op := ev.op
	if op == nil {
		return
	}
	defer ev.Response.Close()

	name := downloadName(ev.URI)
	target := filepath.Join(dir, name)
	logger := p.logger.With("uri", ev.URI, "path", target)
	logger.Info("downloading")

	err := saveBody(ev, target)
	if op.ctx.Err() != nil {
		logger.Debug("download cancelled")
		os.Remove(target)
		return
	}
	if err != nil {
		logger.Warn("download failed", "error", err)
		p.signalError(op, fmt.Sprintf("Download failed: %v.", err))
		return
	}
	if err := p.history.Record(op.ctx, ev.URI, ""); err != nil {
		logger.Warn("history record failed", "error", err)
	}
	p.emit(op, DownloadCompletedEvent{URI: ev.URI, Path: target, MimeType: ev.MimeType})
	p.setState(op, StateIdle)
}

func saveBody(ev BinaryEvent, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, ev.Response.Reader()); err != nil {
		f.Close()
		return err
	}
	if err := ev.Response.Err(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// downloadName is the last path segment of uri, or a random name when the
// path has none.
func downloadName(uri string) string {
	if u, err := url.Parse(uri); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
