// Package defense runs lightweight honeyport listeners: TCP sockets
// on attractive ports that answer with a decoy banner and log the
// peer. Listeners live outside the cycle loop and communicate only by
// logging, never by touching cycle state.
package defense

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPorts are the ports scanned first by most tooling.
var DefaultPorts = []int{8080, 2222, 2121}

// DefaultBanner is the decoy answer sent to anything that connects.
const DefaultBanner = "Internal Service Error 500: Check Logs\n"

// Honeyports manages the listener group.
type Honeyports struct {
	ports  []int
	banner []byte
	log    *zap.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a honeyport set. Zero-value ports/banner get defaults.
func New(ports []int, banner string, log *zap.Logger) *Honeyports {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	if banner == "" {
		banner = DefaultBanner
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Honeyports{ports: ports, banner: []byte(banner), log: log.Named("defense")}
}

// Start binds every port and begins accepting. A port that fails to
// bind is logged and skipped; the rest keep running.
func (h *Honeyports) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.group, ctx = errgroup.WithContext(ctx)

	bound := 0
	for _, port := range h.ports {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			h.log.Error("honeyport bind failed", zap.Int("port", port), zap.Error(err))
			continue
		}
		bound++
		port := port
		h.group.Go(func() error {
			return h.serve(ctx, ln, port)
		})
	}
	h.log.Info("active defense initialized", zap.Int("listeners", bound))
}

// serve accepts until the context is cancelled.
func (h *Honeyports) serve(ctx context.Context, ln net.Listener, port int) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			h.log.Warn("honeyport accept error", zap.Int("port", port), zap.Error(err))
			continue
		}

		h.log.Warn("honeyport connection",
			zap.Int("port", port),
			zap.String("remote", conn.RemoteAddr().String()))

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_, _ = conn.Write(h.banner)
		conn.Close()
	}
}

// Stop closes all listeners and waits for them to drain.
func (h *Honeyports) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	_ = h.group.Wait()
	h.log.Info("active defense stopped")
}
