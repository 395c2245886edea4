package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxHeaderSize is 2 bytes of status, a space, 1024 bytes of meta and CRLF.
const maxHeaderSize = 2 + 1 + 1024 + 2

var crlf = []byte("\r\n")

// Response represents the response from a Gemini request.
//
// The Client returns Responses from servers once the response header has
// been received. The response body is streamed on demand as chunks are
// received from Body; the channel is closed when the server closes the
// connection or when the request context is done.
type Response struct {
	StatusCode StatusCode // e.g. 20

	// Meta supplied after status code. For success responses it holds the
	// MIME type, for redirects the target, for input requests the prompt.
	Meta string

	// Body delivers the response body in arrival order. The first chunk
	// holds the bytes received together with the header, if any.
	Body <-chan []byte

	conn Conn
}

// Close releases the connection the response was received on.
func (r *Response) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Err returns the I/O error that ended Body early, if any.
func (r *Response) Err() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Err()
}

// Reader returns an io.Reader draining Body.
func (r *Response) Reader() io.Reader {
	return &chunkReader{ch: r.Body}
}

// Frame reads chunks until the header terminator is found and returns the
// framed Response. Bytes following the terminator and every later chunk are
// forwarded to Response.Body until chunks is closed or ctx is done.
//
// Frame fails with ErrInvalidResponse if chunks closes before a complete
// header is received or if the header is malformed.
func Frame(ctx context.Context, chunks <-chan []byte) (*Response, error) {
	var buf []byte
	scanFrom := 0
	for {
		var chunk []byte
		var ok bool
		select {
		case chunk, ok = <-chunks:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !ok {
			return nil, fmt.Errorf("%w: stream closed before header", ErrInvalidResponse)
		}
		buf = append(buf, chunk...)

		// A CR at the end of the previous buffer may pair with a LF at the
		// start of this chunk.
		i := bytes.Index(buf[scanFrom:], crlf)
		if i < 0 {
			if len(buf) >= maxHeaderSize {
				return nil, fmt.Errorf("%w: header too long", ErrInvalidResponse)
			}
			scanFrom = max(len(buf)-1, 0)
			continue
		}
		end := scanFrom + i
		if end+len(crlf) > maxHeaderSize {
			return nil, fmt.Errorf("%w: header too long", ErrInvalidResponse)
		}

		code, meta, err := parseHeader(buf[:end])
		if err != nil {
			return nil, err
		}
		body := make(chan []byte)
		go forwardBody(ctx, buf[end+len(crlf):], chunks, body)
		return &Response{StatusCode: code, Meta: meta, Body: body}, nil
	}
}

// parseHeader splits "<status> <meta>" on the first space.
func parseHeader(header []byte) (StatusCode, string, error) {
	parts := strings.SplitN(string(header), " ", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("%w: malformed header %q", ErrInvalidResponse, header)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: unexpected status value %q", ErrInvalidResponse, parts[0])
	}
	code := StatusCode(n)
	if !code.Known() {
		return 0, "", fmt.Errorf("%w: unknown status %d", ErrInvalidResponse, n)
	}
	return code, parts[1], nil
}

func forwardBody(ctx context.Context, rest []byte, chunks <-chan []byte, body chan<- []byte) {
	defer close(body)
	if len(rest) > 0 {
		select {
		case body <- rest:
		case <-ctx.Done():
			return
		}
	}
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			select {
			case body <- chunk:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

type chunkReader struct {
	ch  <-chan []byte
	buf []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
