package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loveuconvert/imageconvert/internal/config"
	"github.com/loveuconvert/imageconvert/internal/ratelimit"
	"github.com/loveuconvert/imageconvert/internal/tracker"
	"github.com/loveuconvert/imageconvert/internal/transform"
	"github.com/loveuconvert/imageconvert/internal/transport/handler"
	"github.com/loveuconvert/imageconvert/internal/transport/router"
	use_case "github.com/loveuconvert/imageconvert/internal/use-case"
)

type App struct {
	HttpServer *http.Server

	cfg     *config.Config
	records *tracker.Tracker
	limiter *ratelimit.Limiter
}

func New(cfg *config.Config) (*App, error) {
	records := tracker.New()
	transformer := transform.NewClient(&cfg.Transform)

	uc := use_case.New(transformer, records, cfg.Transform.UploadFolder)

	limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window*time.Second, cfg.RateLimit.Burst)

	h := handler.New(uc, cfg)
	r := router.NewRouter(h, limiter, &cfg.CORS)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
		cfg:        cfg,
		records:    records,
		limiter:    limiter,
	}, nil
}

// Run starts the server plus the background maintenance loops and blocks
// until the process is signaled or the listener fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.records.Run(ctx, a.cfg.Cleanup.Interval*time.Second, a.cfg.Cleanup.Retention*time.Second)
	go a.limiter.Run(ctx, a.cfg.RateLimit.Window*time.Second, 3*a.cfg.RateLimit.Window*time.Second)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on %s", a.HttpServer.Addr)
		errCh <- a.HttpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.HttpServer.Shutdown(shutdownCtx)
	}
}
