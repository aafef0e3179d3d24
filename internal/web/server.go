package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/marketlabel/internal/domain"
	"github.com/vbonduro/marketlabel/internal/photostore"
	"github.com/vbonduro/marketlabel/internal/service"
	"github.com/vbonduro/marketlabel/internal/session"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Labels   *service.LabelService
	Accounts *service.AccountService
	Photos   photostore.PhotoStore
	Sessions *session.Manager
	// Catalog is reset by the manager's reload action.
	Catalog catalogCache
	// Metrics serves GET /metrics when set.
	Metrics        http.Handler
	ManagerEnabled bool
}

// catalogCache is the subset of catalog.Loader the manager console requires.
type catalogCache interface {
	Invalidate()
}

type Server struct {
	labels         *service.LabelService
	accounts       *service.AccountService
	photos         photostore.PhotoStore
	sessions       *session.Manager
	catalog        catalogCache
	metrics        http.Handler
	managerEnabled bool

	templates embed.FS
	mux       *http.ServeMux
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(deps Deps, tmpl embed.FS, logger *slog.Logger) *Server {
	s := &Server{
		labels:         deps.Labels,
		accounts:       deps.Accounts,
		photos:         deps.Photos,
		sessions:       deps.Sessions,
		catalog:        deps.Catalog,
		metrics:        deps.Metrics,
		managerEnabled: deps.ManagerEnabled,
		templates:      tmpl,
		mux:            http.NewServeMux(),
		logger:         logger,
		tmplFuncs: template.FuncMap{
			"sub":   func(a, b int) int { return a - b },
			"lower": strings.ToLower,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /register", s.handleRegisterPage)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /label", s.requireSession(s.handleLabelPage))
	s.mux.HandleFunc("POST /label", s.requireSession(s.handleSubmitLabel))
	s.mux.HandleFunc("POST /batch", s.requireSession(s.handleStartBatch))
	s.mux.HandleFunc("GET /images/{name}", s.requireSession(s.handleImage))
	if s.managerEnabled {
		s.mux.HandleFunc("GET /manager", s.requireSession(s.handleManagerPage))
		s.mux.HandleFunc("POST /manager/companies", s.requireSession(s.handleAddCompany))
		s.mux.HandleFunc("POST /manager/catalog/reload", s.requireSession(s.handleReloadCatalog))
	}
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
}

// sessionHandler is a handler that runs only for authenticated requests.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess domain.Session)

// requireSession redirects unauthenticated requests to the login page.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Load(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"form-action 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

// requestID returns the id assigned to the request by requestLogger.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := s.httpServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) httpServer(addr string) *http.Server {
	s.logger.Info("starting server", "addr", addr)
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// pageData is the value every page template executes against.
type pageData struct {
	Session        *domain.Session
	ManagerEnabled bool
	Flashes        []string
	Error          string

	// login and register
	Email     string
	Form      service.RegisterInput
	Companies []domain.Company

	// label
	Assignment *service.Assignment
	BatchSize  int

	// manager
	Users   []*domain.User
	Labeled map[string]int
}

// newPage returns page data carrying the session and any pending flashes.
func (s *Server) newPage(w http.ResponseWriter, r *http.Request, sess *domain.Session) *pageData {
	return &pageData{
		Session:        sess,
		ManagerEnabled: s.managerEnabled,
		Flashes:        s.sessions.Flashes(w, r),
		BatchSize:      domain.BatchSize,
	}
}

// renderPage parses and executes a full-page template set. The page is
// rendered into a buffer first so a template error can still produce a 500.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data *pageData, page string) {
	if err := s.renderPage(w, status, data, "base.html", "pages/"+page); err != nil {
		s.logger.Error("render page error", "request_id", requestID(r.Context()), "page", page, "error", err)
	}
}

// statusFor maps a service error to the HTTP status the user sees.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrDuplicateIdentity), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRemoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err. Internal failures get a generic
// message.
func userMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		msgs := make([]string, 0, len(verr.Errors))
		for _, f := range verr.Errors {
			msgs = append(msgs, strings.ReplaceAll(f.Field, "_", " ")+" "+f.Message)
		}
		return capitalize(strings.Join(msgs, "; ")) + "."
	}
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		return "An account with that email already exists."
	}
	switch statusFor(err) {
	case http.StatusUnauthorized:
		return "Invalid email or password."
	case http.StatusConflict:
		return "That entry already exists."
	case http.StatusNotFound:
		return "That item could not be found."
	case http.StatusBadGateway:
		return "The data store is unavailable. Please try again shortly."
	default:
		return "Something went wrong. Please try again."
	}
}

// logError records err when it is a server-side failure rather than bad input.
func (s *Server) logError(r *http.Request, msg string, err error) {
	if statusFor(err) < http.StatusInternalServerError {
		return
	}
	s.logger.Error(msg, "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Server) flash(w http.ResponseWriter, r *http.Request, msg string) {
	if err := s.sessions.Flash(w, r, msg); err != nil {
		s.logger.Error("failed to save flash", "request_id", requestID(r.Context()), "error", err)
	}
}

func closeWithLog(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close", "error", err)
	}
}
