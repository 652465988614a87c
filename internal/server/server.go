package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/gitctx"
	"github.com/dshills/vibecheck/internal/review"
)

// DefaultMaxBodyBytes caps the size of a posted diff.
const DefaultMaxBodyBytes = 8 << 20

// Reviewer produces a report for a patch source.
type Reviewer interface {
	Review(ctx context.Context, src gitctx.PatchSource) (*review.Report, error)
}

// Options configures a Server.
type Options struct {
	// Root is the repository used for tool lookups; may be empty.
	Root         string
	MaxBodyBytes int64
	Log          *zap.Logger
}

// Server serves the review API.
type Server struct {
	reviewer Reviewer
	opts     Options
	log      *zap.Logger
}

// New creates a server backed by r.
func New(r Reviewer, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{reviewer: r, opts: opts, log: log}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/diff", s.handleDiff)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestID(mux)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, letting in-flight reviews finish for a few seconds.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	s.log.Info("server stopped")
	return err
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(r *http.Request) *zap.Logger {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return s.log.With(zap.String("request", id))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Diff too large.", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Could not read diff.", http.StatusBadRequest)
		return
	}

	text := string(body)
	if strings.TrimSpace(text) == "" {
		http.Error(w, "Empty diff.", http.StatusBadRequest)
		return
	}
	src := gitctx.TextSource{Text: text, Dir: s.opts.Root}
	hunks, err := gitctx.Hunks(r.Context(), src)
	if err != nil || len(hunks) == 0 {
		http.Error(w, "No patches found.", http.StatusBadRequest)
		return
	}

	log.Info("review requested", zap.Int("hunks", len(hunks)), zap.Int("bytes", len(body)))
	report, err := s.reviewer.Review(r.Context(), src)
	if err != nil {
		if r.Context().Err() != nil {
			log.Info("client went away", zap.Error(err))
			return
		}
		log.Error("review failed", zap.Error(err))
		http.Error(w, "Review failed.", http.StatusInternalServerError)
		return
	}

	comments := report.Comments
	if comments == nil {
		comments = []review.Comment{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Vibecheck-Run", report.RunID)
	if err := json.NewEncoder(w).Encode(comments); err != nil {
		log.Warn("writing response", zap.Error(err))
	}
	log.Info("review served",
		zap.String("run", report.RunID),
		zap.Int("comments", len(comments)),
		zap.Int("failedHunks", len(report.Errors)))
}
