package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"nebulalens-tui/internal/mockapi"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	latency := flag.Duration("latency", 0, "artificial delay added to every response")
	flag.Parse()

	logger := stdlog.New(os.Stderr, "", stdlog.LstdFlags)
	srv := &http.Server{
		Addr: *addr,
		Handler: mockapi.NewRouter(mockapi.Options{
			Latency: *latency,
			Logger:  &middleware.DefaultLogFormatter{Logger: logger},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("mock API listening on http://%s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}
