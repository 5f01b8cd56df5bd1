// Package server wraps a fasthttp.Server with a small lifecycle type so
// main can start and gracefully stop the public image-server listener and
// its sibling metrics listener uniformly.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const serverName = "iiifcore"

// NewFastHTTPServer builds a fasthttp.Server configured with the image
// server's request handler and uniform timeouts.
func NewFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
	}
}

// Lifecycle starts and gracefully stops one fasthttp.Server, either on a
// plain address (via ListenAndServe) or on a pre-built net.Listener.
type Lifecycle struct {
	server   *fasthttp.Server
	listener net.Listener
	name     string
	address  string
	logger   *zap.Logger
}

// NewLifecycle binds srv to address, to be started with Start.
func NewLifecycle(name, address string, srv *fasthttp.Server, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{server: srv, name: name, address: address, logger: logger}
}

// NewLifecycleWithListener binds srv to an already-constructed listener
// (used when the deployment wants control over socket options).
func NewLifecycleWithListener(name string, listener net.Listener, srv *fasthttp.Server, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{server: srv, listener: listener, name: name, address: listener.Addr().String(), logger: logger}
}

// Start runs the server in a background goroutine. Any terminal error is
// logged and, if errChan is non-nil, forwarded there.
func (l *Lifecycle) Start(errChan chan<- error) {
	go func() {
		var err error
		if l.listener != nil {
			err = l.server.Serve(l.listener)
		} else {
			err = l.server.ListenAndServe(l.address)
		}
		if err != nil {
			l.logger.Error("server error", zap.String("name", l.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", l.name, err)
			}
		}
	}()
	l.logger.Info("server started", zap.String("name", l.name), zap.String("address", l.address))
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// finish or ctx to expire, whichever comes first.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	l.logger.Info("shutting down server", zap.String("name", l.name))
	if err := l.server.ShutdownWithContext(ctx); err != nil {
		l.logger.Error("server shutdown error", zap.String("name", l.name), zap.Error(err))
		return err
	}
	return nil
}
