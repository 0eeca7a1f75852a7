// Package fcatalogd runs the TCP accept loop that spawns one
// [session.Session] per connection against a shared [registry.Registry].
package fcatalogd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"k8s.io/klog/v2"

	"github.com/calvinalkan/fcatalogd/internal/registry"
	"github.com/calvinalkan/fcatalogd/internal/session"
)

// Config controls a Listener's runtime behavior.
type Config struct {
	// Addr is the TCP address to bind, e.g. ":8300" or "127.0.0.1:8300".
	Addr string

	// Registry resolves catalog names for every accepted connection.
	Registry *registry.Registry

	// MaxFrameBytes bounds incoming frame size; 0 selects
	// [frame.DefaultMaxSize].
	MaxFrameBytes uint32
}

// Listener accepts connections and runs one Session per connection until
// Shutdown is called or its context is canceled.
type Listener struct {
	cfg Config
	ln  net.Listener
	wg  sync.WaitGroup
}

// Listen binds cfg.Addr. The caller must call Serve to start accepting.
func Listen(cfg Config) (*Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("fcatalogd: listen %s: %w", cfg.Addr, err)
	}

	return &Listener{cfg: cfg, ln: ln}, nil
}

// Addr returns the bound address, useful when Config.Addr used port 0.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts connections until ctx is done or the listener is closed by
// Shutdown. It always returns a non-nil error; a clean shutdown reports
// [net.ErrClosed] wrapped, which callers should treat as success.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.wg.Wait()

			return fmt.Errorf("fcatalogd: accept: %w", err)
		}

		l.wg.Add(1)

		go func() {
			defer l.wg.Done()
			defer conn.Close()

			// Closing the connection when ctx ends unblocks a session waiting
			// in a frame read, so Serve can return on shutdown.
			stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer stop()

			sess := session.New(conn, l.cfg.Registry, l.cfg.MaxFrameBytes)

			klog.V(2).Infof("fcatalogd: accepted connection from %s", conn.RemoteAddr())

			sess.Run(ctx)
		}()
	}
}

// Shutdown closes the listener, causing Serve to return once every in-flight
// session has drained.
func (l *Listener) Shutdown() error {
	return l.ln.Close()
}

// IsShutdownError reports whether err is the expected Serve error on a clean
// Shutdown, so callers don't log it as a failure.
func IsShutdownError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
