package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/loveuconvert/imageconvert/internal/app"
	"github.com/loveuconvert/imageconvert/internal/config"
)

func initSentry(cfg *config.SentryConfig, version string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     version,
	})
}

func main() {
	configFile := flag.String("config", "config.json", "path to configuration file")
	flag.Parse()

	cfg := config.NewConfig()
	if err := cfg.Read(*configFile); err != nil {
		log.Fatal(err)
	}

	if err := initSentry(&cfg.Sentry, "v1"); err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}

	// Flush buffered events before the program terminates.
	defer sentry.Flush(2 * time.Second)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := a.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	log.Printf("server stopped")
}
