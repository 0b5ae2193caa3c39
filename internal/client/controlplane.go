package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	httpReadTimeout       = 30 * time.Second
	httpReadHeaderTimeout = 10 * time.Second
	httpWriteTimeout      = 60 * time.Second
	httpIdleTimeout       = 120 * time.Second
	httpMaxHeaderBytes    = 1 << 20
)

// ControlPlane is the local HTTP surface of the daemon: status, manual sync
// triggers, the live event stream and pass history.
type ControlPlane struct {
	server *http.Server
}

func NewControlPlane(addr string, handler http.Handler) *ControlPlane {
	return &ControlPlane{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       httpReadTimeout,
			ReadHeaderTimeout: httpReadHeaderTimeout,
			WriteTimeout:      httpWriteTimeout,
			IdleTimeout:       httpIdleTimeout,
			MaxHeaderBytes:    httpMaxHeaderBytes,
		},
	}
}

// Start listens and serves until the server is shut down. Returns nil on a
// clean shutdown.
func (cp *ControlPlane) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", cp.server.Addr)
	if err != nil {
		return fmt.Errorf("control plane listen %s: %w", cp.server.Addr, err)
	}

	slog.Info("control plane start", "addr", listener.Addr().String())

	cp.server.BaseContext = func(net.Listener) context.Context { return ctx }
	if err := cp.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (cp *ControlPlane) Shutdown(ctx context.Context) error {
	slog.Info("control plane shutdown")
	return cp.server.Shutdown(ctx)
}
