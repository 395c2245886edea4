package gemini

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

// Default transport settings.
const (
	DefaultTLSVersion     = "TLSv1.3"
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 10 * time.Second

	chunkSize = 1024
)

// Conn is an established Gemini connection. It carries exactly one request
// and one response.
type Conn interface {
	// Send writes "<uri>\r\n" to the connection immediately.
	Send(uri string) error

	// Chunks starts reading the connection and returns the received bytes
	// in arbitrary sized chunks. The channel is closed when the peer closes
	// the connection, when a read times out, when ctx is done or when an
	// I/O error occurs; Err reports the latter. Chunks must be called once.
	Chunks(ctx context.Context) <-chan []byte

	// Err returns the unexpected I/O error that ended the chunk stream, if any.
	Err() error

	// Close closes the connection. Any blocked read is unblocked.
	Close() error
}

// Transport opens connections for a Client.
type Transport interface {
	Dial(ctx context.Context, u *url.URL, cert *tls.Certificate) (Conn, error)
}

// DialError describes a failure to establish a connection. It matches one of
// ErrUnknownHost, ErrConnectFailure, ErrTimeout or ErrTLSHandshake with errors.Is.
type DialError struct {
	Kind error
	Addr string
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("%v %s: %v", e.Kind, e.Addr, e.Err)
}

func (e *DialError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Dialer connects to Gemini servers over TLS.
type Dialer struct {
	// TLSVersion is the highest protocol version offered, e.g. "TLSv1.3".
	// "TLS" or an empty string lets crypto/tls pick.
	TLSVersion string

	// ConnectTimeout bounds the TCP connect and the TLS handshake.
	ConnectTimeout time.Duration

	// ReadTimeout bounds each read. A read timing out ends the chunk
	// stream without error.
	ReadTimeout time.Duration

	Logger *slog.Logger
}

var _ Transport = (*Dialer)(nil)

// ParseTLSVersion maps a protocol name to a crypto/tls version constant.
// Zero means the crypto/tls default.
func ParseTLSVersion(name string) (uint16, error) {
	switch name {
	case "", "TLS":
		return 0, nil
	case "TLSv1.2":
		return tls.VersionTLS12, nil
	case "TLSv1.3":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("gemini: unsupported TLS version %q", name)
}

// HostPort returns the dial address of u, using DefaultPort when u has none.
func HostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Dial connects to the server of u and completes the TLS handshake,
// presenting cert when the server asks for a client certificate.
func (d *Dialer) Dial(ctx context.Context, u *url.URL, cert *tls.Certificate) (Conn, error) {
	logger := d.logger()
	addr := HostPort(u)
	maxVersion, err := ParseTLSVersion(d.TLSVersion)
	if err != nil {
		return nil, err
	}
	logger.Debug("connect",
		"addr", addr,
		"tls", d.TLSVersion,
		"connect_timeout", d.connectTimeout(),
		"read_timeout", d.ReadTimeout,
		"client_cert", cert != nil)

	nd := &net.Dialer{Timeout: d.connectTimeout()}
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyDialError(addr, err)
	}

	tc := tls.Client(raw, d.tlsConfig(u.Hostname(), maxVersion, cert))
	hctx, cancel := context.WithTimeout(ctx, d.connectTimeout())
	defer cancel()
	if err := tc.HandshakeContext(hctx); err != nil {
		raw.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &DialError{Kind: ErrTimeout, Addr: addr, Err: err}
		}
		return nil, &DialError{Kind: ErrTLSHandshake, Addr: addr, Err: err}
	}
	return &conn{tc: tc, readTimeout: d.ReadTimeout, logger: logger}, nil
}

func (d *Dialer) tlsConfig(serverName string, maxVersion uint16, cert *tls.Certificate) *tls.Config {
	conf := &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         maxVersion,
		InsecureSkipVerify: true,
		VerifyConnection:   acceptAnyServerCertificate(d.logger()),
	}
	if cert != nil {
		conf.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return cert, nil
		}
	}
	return conf
}

// acceptAnyServerCertificate is the whole server trust policy: every
// certificate is accepted. Trust on first use is not implemented.
func acceptAnyServerCertificate(logger *slog.Logger) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) > 0 {
			logger.Debug("server certificate accepted",
				"subject", cs.PeerCertificates[0].Subject.String(),
				"not_after", cs.PeerCertificates[0].NotAfter)
		}
		return nil
	}
}

func (d *Dialer) connectTimeout() time.Duration {
	if d.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return d.ConnectTimeout
}

func (d *Dialer) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func classifyDialError(addr string, err error) error {
	var dnsErr *net.DNSError
	switch {
	case isTimeout(err):
		return &DialError{Kind: ErrTimeout, Addr: addr, Err: err}
	case errors.As(err, &dnsErr):
		return &DialError{Kind: ErrUnknownHost, Addr: addr, Err: err}
	default:
		return &DialError{Kind: ErrConnectFailure, Addr: addr, Err: err}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type conn struct {
	tc          *tls.Conn
	readTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	closeErr  error
}

func (c *conn) Send(uri string) error {
	if len(uri) > 1024 {
		return ErrRequestTooLong
	}
	if _, err := c.tc.Write([]byte(uri + "\r\n")); err != nil {
		return fmt.Errorf("gemini: failed to send request: %w", err)
	}
	return nil
}

func (c *conn) Chunks(ctx context.Context) <-chan []byte {
	out := make(chan []byte)
	stop := context.AfterFunc(ctx, func() { c.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer c.Close()
		buf := make([]byte, chunkSize)
		for {
			if c.readTimeout > 0 {
				c.tc.SetReadDeadline(time.Now().Add(c.readTimeout))
			}
			n, err := c.tc.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == nil {
				continue
			}
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				c.logger.Debug("reading completed")
			case isTimeout(err):
				c.logger.Info("socket timeout, ending stream")
			default:
				c.logger.Error("read failed", "error", err)
				c.setErr(err)
			}
			return
		}
	}()
	return out
}

func (c *conn) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.tc.Close()
	})
	return c.closeErr
}
