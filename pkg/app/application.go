package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"roombook/pkg/config"
	"roombook/pkg/contracts"
	"roombook/pkg/middleware"
	"sync"
	"syscall"

	"github.com/julienschmidt/httprouter"
)

// Worker is a background loop that runs until its context is cancelled.
type Worker func(ctx context.Context)

// Closer releases a resource during shutdown, after every worker returned.
type Closer func(ctx context.Context) error

type namedWorker struct {
	name string
	run  Worker
}

type namedCloser struct {
	name  string
	close Closer
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.RequestRateLimiter
	healthHandler    *http.Handler
	appHttpHandler   *http.Handler

	workers []namedWorker
	closers []namedCloser
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

func (a *Application) SetApp(appHandler, healthHandler contracts.Handler) {
	a.setHealthHandler(healthHandler)
	a.setAppHandler(appHandler)
	a.setAppServer()
}

// AddWorker registers a loop started by Run and stopped on shutdown.
func (a *Application) AddWorker(name string, w Worker) {
	a.workers = append(a.workers, namedWorker{name: name, run: w})
}

// AddCloser registers a shutdown hook. Hooks run in reverse registration
// order, like deferred calls.
func (a *Application) AddCloser(name string, c Closer) {
	a.closers = append(a.closers, namedCloser{name: name, close: c})
}

func (a *Application) setHealthHandler(handler contracts.Handler) {
	healthRouter := httprouter.New()
	handler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = &healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handler contracts.Handler) {
	appRouter := httprouter.New()
	handler.RegisterRoutes(appRouter)

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewRequestRateLimiter(
		a.cfg.HTTPRateLimitRequests,
		a.cfg.HTTPRateLimitWindow,
		middleware.ActorKeyExtractor,
		a.cfg.Log,
	)

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout, a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxBodySize(a.cfg.MaxRequestSize)(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = &appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", *a.healthHandler)
	mux.Handle("/ready", *a.healthHandler)
	mux.Handle("/", *a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, w := range a.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.cfg.Log.Info("Starting background worker", "worker", w.name)
			w.run(workerCtx)
		}()
	}

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		stopWorkers()
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown(stopWorkers, &wg)
	}
}

func (a *Application) gracefulShutdown(stopWorkers context.CancelFunc, workers *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}
	a.cfg.Log.Info("Server stopped gracefully")

	a.cfg.Log.Info("Stopping background workers...")
	stopWorkers()
	workers.Wait()
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "hook", c.name, "error", err)
		}
	}

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Shutdown complete")
}
