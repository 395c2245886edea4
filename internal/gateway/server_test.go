package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/gemtext"
	"github.com/knowfox/comet/history"
	"github.com/knowfox/comet/identity"
	"github.com/knowfox/comet/internal/gateway"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startCapsule(t *testing.T) string {
	t.Helper()
	cert, err := identity.SelfSignedPair("localhost")
	require.NoError(t, err)
	ln, err := gemini.Listen("127.0.0.1:0", cert)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go gemini.Serve(ln, gemini.HandlerFunc(func(w gemini.ResponseWriter, r *gemini.Request) {
		switch r.URL.Path {
		case "/":
			w.WriteStatusMsg(gemini.StatusSuccess, "text/gemini")
			w.WriteBody([]byte("# Home\n=> /moved Moved\n"))
		case "/moved":
			w.WriteStatusMsg(gemini.StatusPermanentRedirect, "/")
		case "/search":
			w.WriteStatusMsg(gemini.StatusInput, "Query?")
		case "/image.png":
			w.WriteStatusMsg(gemini.StatusSuccess, "image/png")
			w.WriteBody([]byte{0x89, 'P', 'N', 'G'})
		default:
			gemini.NotFound(w, r)
		}
	}))
	return "gemini://" + ln.Addr().String()
}

func newGateway(t *testing.T, store history.Store) *httptest.Server {
	t.Helper()
	logger := quietLogger()
	s := gateway.NewServer(gateway.Config{
		Client:  &gemini.Client{Transport: &gemini.Dialer{ReadTimeout: 5 * time.Second, Logger: logger}, Logger: logger},
		History: store,
		Logger:  logger,
		Timeout: 10 * time.Second,
	})
	srv := httptest.NewServer(gateway.BuildRouter(s))
	t.Cleanup(srv.Close)
	return srv
}

func getPage(t *testing.T, srv *httptest.Server, target string) (int, gateway.PageResponse) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/page?url=" + url.QueryEscape(target))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	var out gateway.PageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	srv := newGateway(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestPage(t *testing.T) {
	capsule := startCapsule(t)
	store := history.NewMemoryStore()
	srv := newGateway(t, store)

	status, res := getPage(t, srv, capsule+"/")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, gateway.OutcomeSuccess, res.Outcome)
	require.Equal(t, capsule+"/", res.URL)
	require.Equal(t, []gateway.Line{
		{Type: gemtext.KindTitle, Text: "Home", Level: 1},
		{Type: gemtext.KindLink, URL: "/moved", Label: "Moved"},
	}, res.Lines)

	// Redirections are followed; the home page is now visited.
	status, res = getPage(t, srv, capsule+"/moved")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, gateway.OutcomeSuccess, res.Outcome)
	require.Equal(t, 1, res.Redirects)
	require.Equal(t, capsule+"/", res.URL)

	ok, err := store.Contains(context.Background(), capsule+"/")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPageOutcomes(t *testing.T) {
	capsule := startCapsule(t)
	srv := newGateway(t, nil)

	status, res := getPage(t, srv, capsule+"/missing")
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, gateway.OutcomeFailure, res.Outcome)
	require.Equal(t, "51 Not found", res.Message)
	require.Equal(t, "This page can't be found.", res.Details)

	status, res = getPage(t, srv, capsule+"/search")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, gateway.OutcomeInput, res.Outcome)
	require.Equal(t, "Query?", res.Prompt)

	status, res = getPage(t, srv, capsule+"/image.png")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, gateway.OutcomeBinary, res.Outcome)
	require.Equal(t, "image/png", res.MimeType)

	status, res = getPage(t, srv, "https://example.com/")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, gateway.OutcomeExternal, res.Outcome)
	require.Equal(t, "https://example.com/", res.Target)
}

func TestPageMissingURL(t *testing.T) {
	srv := newGateway(t, nil)
	resp, err := http.Get(srv.URL + "/page")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	store := history.NewMemoryStore()
	require.NoError(t, store.Record(context.Background(), "gemini://a/", "A"))
	srv := newGateway(t, store)

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out gateway.HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "Success", out.Status)
	require.Len(t, out.Entries, 1)
	require.Equal(t, "gemini://a/", out.Entries[0].URI)
	require.Equal(t, "A", out.Entries[0].Title)
}

func TestCORS(t *testing.T) {
	srv := newGateway(t, nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://viewer.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
