package gemini_test

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/identity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer serves handler on a loopback TLS listener and returns its
// address.
func startServer(t *testing.T, handler gemini.HandlerFunc) string {
	t.Helper()
	cert, err := identity.SelfSignedPair("localhost")
	require.NoError(t, err)
	ln, err := gemini.Listen("127.0.0.1:0", cert)
	require.NoError(t, err)
	go gemini.Serve(ln, handler)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func newClient(readTimeout time.Duration) *gemini.Client {
	logger := quietLogger()
	return &gemini.Client{
		Transport: &gemini.Dialer{ReadTimeout: readTimeout, Logger: logger},
		Logger:    logger,
	}
}

func TestClientGet(t *testing.T) {
	addr := startServer(t, func(w gemini.ResponseWriter, r *gemini.Request) {
		w.WriteStatusMsg(gemini.StatusSuccess, "text/gemini")
		w.WriteBody([]byte("# " + r.URL.Path + "\n"))
	})

	res, err := newClient(5*time.Second).Get(context.Background(), "gemini://"+addr+"/hello")
	require.NoError(t, err)
	defer res.Close()
	require.Equal(t, gemini.StatusSuccess, res.StatusCode)
	require.Equal(t, "text/gemini", res.Meta)
	require.Equal(t, "# /hello\n", readBody(t, res))
	require.NoError(t, res.Err())
}

func TestClientFileServer(t *testing.T) {
	addr := startServer(t, gemini.FileServer("testdata").ServeGemini)

	res, err := newClient(5*time.Second).Get(context.Background(), "gemini://"+addr+"/")
	require.NoError(t, err)
	require.Equal(t, gemini.StatusSuccess, res.StatusCode)
	require.Equal(t, "text/gemini; charset=utf-8", res.Meta)
	require.Contains(t, readBody(t, res), "# Test capsule")
	res.Close()

	res, err = newClient(5*time.Second).Get(context.Background(), "gemini://"+addr+"/missing.gmi")
	require.NoError(t, err)
	require.Equal(t, gemini.StatusNotFound, res.StatusCode)
	res.Close()
}

func TestClientCertificate(t *testing.T) {
	addr := startServer(t, func(w gemini.ResponseWriter, r *gemini.Request) {
		cert := r.PeerCertificate()
		if cert == nil {
			w.WriteStatusMsg(gemini.StatusCertRequired, "Certificate required")
			return
		}
		w.WriteStatusMsg(gemini.StatusSuccess, "text/plain")
		w.WriteBody([]byte(cert.Subject.CommonName))
	})
	client := newClient(5 * time.Second)

	res, err := client.Get(context.Background(), "gemini://"+addr+"/")
	require.NoError(t, err)
	require.Equal(t, gemini.StatusCertRequired, res.StatusCode)
	res.Close()

	cert, err := identity.SelfSignedPair("alice")
	require.NoError(t, err)
	req, err := gemini.NewRequest("gemini://" + addr + "/")
	require.NoError(t, err)
	req.Certificate = &cert
	res, err = client.Do(context.Background(), req)
	require.NoError(t, err)
	defer res.Close()
	require.Equal(t, gemini.StatusSuccess, res.StatusCode)
	require.Equal(t, "alice", readBody(t, res))
}

func TestClientReadTimeoutEndsBody(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	addr := startServer(t, func(w gemini.ResponseWriter, r *gemini.Request) {
		w.WriteStatusMsg(gemini.StatusSuccess, "text/gemini")
		w.WriteBody([]byte("partial\n"))
		<-release
	})

	res, err := newClient(200*time.Millisecond).Get(context.Background(), "gemini://"+addr+"/")
	require.NoError(t, err)
	defer res.Close()
	require.Equal(t, "partial\n", readBody(t, res))
	require.NoError(t, res.Err())
}

func TestClientCancelUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	addr := startServer(t, func(w gemini.ResponseWriter, r *gemini.Request) {
		w.WriteStatusMsg(gemini.StatusSuccess, "text/gemini")
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	res, err := newClient(time.Minute).Get(ctx, "gemini://"+addr+"/")
	require.NoError(t, err)
	defer res.Close()

	cancel()
	select {
	case _, ok := <-res.Body:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("body not closed after cancellation")
	}
}

func TestClientConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = newClient(time.Second).Get(context.Background(), "gemini://"+addr+"/")
	require.ErrorIs(t, err, gemini.ErrConnectFailure)
	var de *gemini.DialError
	require.ErrorAs(t, err, &de)
	require.Equal(t, addr, de.Addr)
}

func TestClientTLSHandshakeFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("this is not TLS\r\n"))
		conn.Close()
	}()

	_, err = newClient(time.Second).Get(context.Background(), "gemini://"+ln.Addr().String()+"/")
	require.ErrorIs(t, err, gemini.ErrTLSHandshake)
}

func TestServerBadRequest(t *testing.T) {
	addr := startServer(t, gemini.NotFound)

	conn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("no scheme\r\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "59 Bad request\r\n", line)
}

func TestParseTLSVersion(t *testing.T) {
	v, err := gemini.ParseTLSVersion("TLSv1.3")
	require.NoError(t, err)
	require.Equal(t, uint16(tls.VersionTLS13), v)

	v, err = gemini.ParseTLSVersion("TLS")
	require.NoError(t, err)
	require.Zero(t, v)

	_, err = gemini.ParseTLSVersion("SSLv3")
	require.Error(t, err)
}
