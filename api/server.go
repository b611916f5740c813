package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/thisisjab/fuxi/notify"
	"github.com/thisisjab/fuxi/querier"
	"github.com/thisisjab/fuxi/storage"
)

// Publisher queues row change events.
type Publisher interface {
	Publish(e notify.Event) bool
}

// NoticeSender forwards error notices to a chat webhook.
type NoticeSender interface {
	SendNotice(ctx context.Context, n notify.Notice) (notify.WebhookResult, error)
}

// Services are the collaborators of the server. Publisher and Feishu are
// optional.
type Services struct {
	Storage   storage.Storage
	Compiler  *querier.Compiler
	Publisher Publisher
	Feishu    NoticeSender
}

type server struct {
	cfg      Config
	logger   *slog.Logger
	services Services
	limiter  *rateLimiter
	now      func() time.Time
}

func NewServer(cfg Config, logger *slog.Logger, services Services) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if services.Storage == nil {
		return nil, errors.New("api server requires a storage")
	}

	if services.Compiler == nil {
		services.Compiler = querier.NewCompiler(querier.Options{})
	}

	s := &server{
		cfg:      cfg,
		logger:   logger,
		services: services,
		now:      time.Now,
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	return s, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)

	mux.HandleFunc("GET /api/generic/query", s.queryParamsHandler)
	mux.HandleFunc("POST /api/generic/query", s.queryBodyHandler)
	mux.Handle("POST /api/generic/create", s.rateLimitMiddleware(http.HandlerFunc(s.createHandler)))
	mux.Handle("PUT /api/generic/update", s.rateLimitMiddleware(http.HandlerFunc(s.updateHandler)))
	mux.Handle("DELETE /api/generic/delete", s.rateLimitMiddleware(http.HandlerFunc(s.deleteHandler)))

	mux.HandleFunc("GET /api/fuxi-data/get-data", s.getDataHandler)
	mux.Handle("POST /api/fuxi-data/save-data", s.rateLimitMiddleware(http.HandlerFunc(s.saveDataHandler)))
	mux.Handle("PUT /api/fuxi-data/update-data", s.rateLimitMiddleware(http.HandlerFunc(s.updateDataHandler)))
	mux.HandleFunc("GET /api/fuxi-data/list-tables", s.listTablesHandler)

	mux.Handle("POST /api/webhooks/sentry-feishu", s.rateLimitMiddleware(http.HandlerFunc(s.sentryFeishuHandler)))

	return s.recoverPanicMiddleware(s.requestIDMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux))))
}

func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	var serverErr error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if serverErr != nil && serverErr != http.ErrServerClosed {
		return serverErr
	}

	return nil
}
