// Package httpapi exposes the chat service over a small JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/construction-support-assistant/agent/chat"
)

// Backend is the subset of chat.Service the handlers drive.
type Backend interface {
	Login(ctx context.Context, userID, password string) (string, error)
	ListUsers(ctx context.Context) []chat.UserSummary
	SelectUser(ctx context.Context, sessionID, userID string) (string, error)
	Chat(ctx context.Context, sessionID, message string) (chat.ChatResult, error)
	Reset(ctx context.Context, sessionID string) error
	Finish(ctx context.Context, sessionID string) error
}

type Options struct {
	Addr string
	// StaticDir holds a built single-page frontend. Empty disables static serving.
	StaticDir       string
	ShutdownTimeout time.Duration
}

type Server struct {
	backend Backend
	opts    Options
	handler http.Handler
}

func NewServer(backend Backend, opts Options) (*Server, error) {
	if backend == nil {
		return nil, errors.New("chat backend is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":5000"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{backend: backend, opts: opts}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/users", s.handleUsers)
	mux.HandleFunc("POST /api/select-user", s.handleSelectUser)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/reset", s.handleReset)
	mux.HandleFunc("POST /api/chat/finish", s.handleFinish)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.StaticDir != "" {
		mux.Handle("GET /", spaHandler(s.opts.StaticDir))
	}
	return withRequestLog(withCORS(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Ctx(ctx).Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen %s: %w", s.opts.Addr, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Ctx(ctx).Info().Msg("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

// spaHandler serves files from dir and falls back to index.html for client-side routes.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
		if rel != "" {
			if info, err := os.Stat(filepath.Join(dir, rel)); err == nil && !info.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
