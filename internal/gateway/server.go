// Package gateway serves Gemini pages as JSON over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/history"
	"github.com/knowfox/comet/page"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	Client      *gemini.Client
	Credentials page.CredentialProvider
	History     history.Store
	Logger      *slog.Logger

	// Origins allowed by CORS. Empty allows any origin.
	Origins []string

	// Timeout bounds one page request, redirections included.
	Timeout time.Duration
}

type Server struct {
	cfg    Config
	logger *slog.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.History == nil {
		cfg.History = history.NewMemoryStore()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

func BuildRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	origins := s.cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/page", s.handlePage)
	r.Get("/history", s.handleHistory)
	return r
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	rawurl := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawurl == "" {
		writeJSON(w, http.StatusBadRequest, PageResponse{
			Status:  "Exception",
			Service: "/page",
			Message: "Missing url parameter.",
		})
		return
	}
	if !strings.Contains(rawurl, "://") {
		rawurl = "gemini://" + rawurl
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	res := s.fetch(ctx, rawurl)
	status := http.StatusOK
	switch {
	case res.Status == "Timeout":
		status = http.StatusGatewayTimeout
	case res.Outcome == OutcomeFailure:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// fetch loads rawurl on a fresh Page, following redirections, until a
// terminal event or ctx is done.
func (s *Server) fetch(ctx context.Context, rawurl string) PageResponse {
	p := page.New(page.Options{
		Client:      s.cfg.Client,
		Credentials: s.cfg.Credentials,
		History:     s.cfg.History,
		Logger:      s.logger,
	})
	defer p.Close()

	res := PageResponse{Status: "Success", Service: "/page", URL: rawurl}
	var lines page.Lines
	p.Open(rawurl)
	for {
		select {
		case lines = <-p.Lines():
		case ev, ok := <-p.Events():
			if !ok {
				res.Status, res.Message = "Exception", "Page closed."
				return res
			}
			switch ev := ev.(type) {
			case page.RedirectEvent:
				res.Redirects = ev.Redirects
				p.FollowRedirect(ev)
				continue
			case page.SuccessEvent:
				select {
				case lines = <-p.Lines():
				default:
				}
				res.Outcome, res.URL = OutcomeSuccess, ev.URI
				res.Lines = toLines(lines.Lines)
			case page.InputEvent:
				res.Outcome, res.URL = OutcomeInput, ev.URI
				res.Prompt, res.Sensitive = ev.Prompt, ev.Sensitive
			case page.BinaryEvent:
				ev.Response.Close()
				res.Outcome, res.URL = OutcomeBinary, ev.URI
				res.MimeType = ev.MimeType.String()
			case page.ExternalEvent:
				res.Outcome, res.Target = OutcomeExternal, ev.URI
			case page.FailureEvent:
				res.Outcome = OutcomeFailure
				res.Message, res.Details, res.ServerDetails = ev.Short, ev.Details, ev.ServerDetails
			default:
				continue
			}
			return res
		case <-ctx.Done():
			s.logger.Warn("page request timed out", "url", rawurl)
			res.Status, res.Message = "Timeout", "The page took too long to load."
			return res
		}
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cfg.History.All(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, HistoryResponse{
			Status:  "Exception",
			Service: "/history",
			Message: "Couldn't read history: " + err.Error(),
		})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Status:  "Success",
		Service: "/history",
		Entries: entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
