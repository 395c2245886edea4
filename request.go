package gemini

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/url"
)

// Request contains the data of a Gemini request, either built by a client
// or received by the Server.
type Request struct {
	URL *url.URL

	// Certificate optionally specifies the client certificate presented to
	// the server. It is ignored by the Server.
	Certificate *tls.Certificate

	conn *tls.Conn
}

// NewRequest parses rawurl and checks that it can be sent as a request.
func NewRequest(rawurl string) (*Request, error) {
	r := &Request{}
	return r, r.Reset(nil, rawurl)
}

// Reset reuses r for rawurl received on conn.
func (r *Request) Reset(conn *tls.Conn, rawurl string) error {
	r.conn = conn
	r.Certificate = nil
	if len(rawurl) > 1024 {
		return ErrRequestTooLong
	}
	var err error
	r.URL, err = url.Parse(rawurl)
	if err != nil {
		return fmt.Errorf("%w: failed to parse request: %v, error: %v", ErrInvalidURL, rawurl, err)
	}
	if r.URL.Scheme == "" {
		return fmt.Errorf("%w: request is missing scheme: %v", ErrInvalidURL, rawurl)
	}
	if r.URL.Host == "" {
		return fmt.Errorf("%w: request is missing host: %v", ErrInvalidURL, rawurl)
	}
	if r.URL.Scheme == SchemaGemini && r.URL.Path == "" {
		r.URL.Path = "/"
	}
	return nil
}

// ReadRequest reads a "<url>\r\n" request line from r.
func ReadRequest(r io.Reader) (*Request, error) {
	// 1024 bytes of URL, CR and LF.
	br := bufio.NewReaderSize(io.LimitReader(r, 1026), 1026)
	line, err := br.ReadString('\n')
	if err != nil {
		if len(line) >= 1026 {
			return nil, ErrRequestTooLong
		}
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: request line must end with CRLF", ErrInvalidURL)
	}
	req := &Request{}
	return req, req.Reset(nil, line[:len(line)-2])
}

// PeerCertificate returns the client certificate a server-side request was
// made with, or nil.
func (r *Request) PeerCertificate() *x509.Certificate {
	if r.conn == nil {
		return nil
	}
	if certs := r.conn.ConnectionState().PeerCertificates; len(certs) > 0 {
		return certs[0]
	}
	return nil
}
