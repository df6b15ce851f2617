package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"croptalk/pkg/api"
	"croptalk/pkg/auth"
	"croptalk/pkg/logger"
)

// startHTTP builds the handler stack, starts the HTTP server in a
// goroutine and returns a channel that will carry any fatal server
// error.
func (a *App) startHTTP() <-chan error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Handler(a.svc))

	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, a.eff.Config.Security.CORS.AllowedOrigins...),
		RPS:            a.eff.Config.Security.RateLimit.RPS,
		Burst:          a.eff.Config.Security.RateLimit.Burst,
	}
	handler := auth.Middleware(secCfg)(mux)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", a.eff.Addr)
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
