package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"booker/pkg/config"
	"booker/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Handler is anything that can attach its routes to a router.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}

// Application owns the HTTP server lifecycle: middleware wiring, startup,
// and graceful shutdown on SIGINT/SIGTERM.
type Application struct {
	cfg    *config.Config
	server *http.Server
}

func NewApplication(cfg *config.Config, handler Handler) *Application {
	router := httprouter.New()
	handler.RegisterRoutes(router)

	var h http.Handler = router
	h = middleware.RequestTimeout(cfg.RequestTimeout)(h)
	h = middleware.RequestLogging(cfg.Log)(h)
	h = middleware.Recovery(cfg.Log)(h)

	return &Application{
		cfg: cfg,
		server: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server", "error", err)
		}
	}
	a.cfg.Log.Info("Server stopped gracefully")
}
