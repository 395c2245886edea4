package gemini

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// ResponseWriter is used by a Handler to write a response.
type ResponseWriter interface {
	WriteStatusMsg(status StatusCode, msg string) error
	WriteBody([]byte) (int, error)
}

// Handler is the interface a struct need to implement to be able to handle Gemini requests.
type Handler interface {
	ServeGemini(ResponseWriter, *Request)
}

type HandlerFunc func(ResponseWriter, *Request)

// ServeGemini calls f(w, r).
func (f HandlerFunc) ServeGemini(w ResponseWriter, r *Request) {
	f(w, r)
}

// ListenAndServe create a TCP server on the specified address and pass
// new connections to the given handler.
// Each request is handled in a separate goroutine.
func ListenAndServe(addr string, cert tls.Certificate, handler Handler) error {
	if addr == "" {
		addr = "127.0.0.1:1965"
	}
	ln, err := Listen(addr, cert)
	if err != nil {
		return err
	}
	defer ln.Close()
	return Serve(ln, handler)
}

// Listen opens a TLS listener that asks clients for a certificate without
// requiring one.
func Listen(addr string, cert tls.Certificate) (net.Listener, error) {
	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.RequestClientCert,
	}
	ln, err := tls.Listen("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}
	return ln, nil
}

// Serve accepts connections on ln until it is closed.
func Serve(ln net.Listener, handler Handler) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("accept failed", "error", err)
			continue
		}
		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			conn.Close()
			continue
		}
		go handleConnection(tlsConn, handler)
	}
}

func handleConnection(conn *tls.Conn, handler Handler) {
	defer conn.Close()
	if err := conn.Handshake(); err != nil {
		slog.Debug("handshake failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	request, err := ReadRequest(conn)
	if err != nil {
		slog.Debug("bad request", "remote", conn.RemoteAddr(), "error", err)
		fmt.Fprintf(conn, "%d %s\r\n", StatusBadRequest, "Bad request")
		return
	}
	request.conn = conn
	slog.Debug("request", "url", request.URL.String())
	handler.ServeGemini(&response{conn: conn}, request)
}

type response struct {
	headerWritten bool
	conn          net.Conn
	err           error
}

var _ ResponseWriter = (*response)(nil)

func (w *response) WriteStatusMsg(status StatusCode, msg string) error {
	if w.headerWritten {
		return errors.New("status has been sent already")
	}
	_, w.err = fmt.Fprintf(w.conn, "%d %s\r\n", status, msg)
	if w.err != nil {
		w.err = fmt.Errorf("failed to write response status message: %v", w.err)
		return w.err
	}
	w.headerWritten = true
	return nil
}

func (w *response) WriteBody(body []byte) (int, error) {
	if !w.headerWritten {
		return 0, errors.New("status message is not written")
	}
	if w.err != nil {
		return 0, w.err
	}
	var written int
	written, w.err = w.conn.Write(body)
	if w.err != nil {
		w.err = fmt.Errorf("failed to write response body: %v", w.err)
	}
	return written, w.err
}

func NotFound(w ResponseWriter, req *Request) {
	w.WriteStatusMsg(StatusNotFound, "Not found")
}

func TrapPanic(next HandlerFunc) HandlerFunc {
	return func(w ResponseWriter, req *Request) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
				w.WriteStatusMsg(StatusTemporaryFailure, "Internal Server Error")
			}
		}()
		next(w, req)
	}
}

// ServeContent writes a success header with mimeType followed by content.
func ServeContent(w ResponseWriter, mimeType string, content io.Reader) {
	if mimeType == "" {
		mimeType = defaultMediaType
	}
	if err := w.WriteStatusMsg(StatusSuccess, mimeType); err != nil {
		return
	}
	_, _ = io.Copy(bodyWriter{w}, content)
}

type bodyWriter struct{ w ResponseWriter }

func (b bodyWriter) Write(p []byte) (int, error) { return b.w.WriteBody(p) }

// FileServer serves files below root. Directories are served through their
// index.gmi; ".gmi" and ".gemini" files are text/gemini.
func FileServer(root string) Handler {
	return HandlerFunc(func(w ResponseWriter, r *Request) {
		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		fi, err := os.Stat(name)
		if err == nil && fi.IsDir() {
			name = filepath.Join(name, "index.gmi")
		}
		f, err := os.Open(name)
		if err != nil {
			NotFound(w, r)
			return
		}
		defer f.Close()
		ServeContent(w, mimeTypeByName(name), f)
	})
}

func mimeTypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".gmi", ".gemini":
		return defaultMediaType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
