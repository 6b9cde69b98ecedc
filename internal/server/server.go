package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/gemini-prompt-kit/pkg/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

const (
	// SessionHeader はセッション ID を受け渡す HTTP ヘッダーです。
	SessionHeader = "X-Session-ID"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// SessionStore はセッションの取得と作成を行います。*workflow.Sessions がこれを満たします。
type SessionStore interface {
	Get(id string) (*workflow.Session, bool)
	GetOrCreate(id string) (*workflow.Session, bool, error)
}

// Server は UI 層向けの HTTP JSON API です。
type Server struct {
	sessions       SessionStore
	maxUploadBytes int64
}

// New は Server を初期化します。
func New(sessions SessionStore, maxUploadBytes int64) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if maxUploadBytes <= 0 {
		return nil, errors.New("maxUploadBytes must be positive")
	}
	return &Server{sessions: sessions, maxUploadBytes: maxUploadBytes}, nil
}

// Router はルーティングを設定した http.Handler を返します。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger,
	)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/requests", s.handleRequest)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.listHistory)
			r.Get("/{id}", s.getEntry)
			r.Get("/{id}/images/{index}", s.getImage)
			r.Get("/{id}/source", s.getSource)
		})
	})
	return r
}

// Run は ctx がキャンセルされるまで HTTP サーバーを実行し、グレースフルに停止します。
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("HTTPサーバーを起動します", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("HTTPサーバーを停止します")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// requestLogger は chi の WrapResponseWriter を使ってアクセスログを slog に出力します。
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "HTTPリクエスト",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
