package proxy

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/trafficdump/pkg/capture"
	"mercator-hq/trafficdump/pkg/capture/engine"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
)

type connKey struct{}

// connSession ties one client connection to its capture session. The
// session starts on the connection's first request, when the protocol is
// known, and ends when the connection closes.
type connSession struct {
	clientAddr string
	ipv6       bool
	accepted   time.Time

	once   sync.Once
	handle *engine.Handle

	hijacked atomic.Bool
	aborted  atomic.Bool
	ended    atomic.Bool
}

func newConnSession(c net.Conn) *connSession {
	cs := &connSession{accepted: time.Now()}
	if addr, ok := c.RemoteAddr().(*net.TCPAddr); ok {
		cs.clientAddr = addr.IP.String()
		cs.ipv6 = addr.IP.To4() == nil
	} else if host, _, err := net.SplitHostPort(c.RemoteAddr().String()); err == nil {
		cs.clientAddr = host
		if ip := net.ParseIP(host); ip != nil {
			cs.ipv6 = ip.To4() == nil
		}
	}
	return cs
}

func connFromContext(ctx context.Context) *connSession {
	cs, _ := ctx.Value(connKey{}).(*connSession)
	return cs
}

// session returns the connection's capture handle, starting the session on
// first use. It returns nil once the connection has ended.
func (cs *connSession) session(e *engine.Engine, r *http.Request) *engine.Handle {
	cs.once.Do(func() {
		cs.handle = e.StartSession(capture.SessionMeta{
			ClientAddr:     cs.clientAddr,
			Protocol:       versionOf(r.ProtoMajor),
			TLS:            tlsInfo(r.TLS),
			IPv6:           cs.ipv6,
			ConnectionTime: cs.accepted,
		})
	})
	return cs.handle
}

// finish ends the session exactly once. A connection that ended before
// any request marks the session as never started.
func (cs *connSession) finish(logger *slog.Logger) {
	if !cs.ended.CompareAndSwap(false, true) {
		return
	}
	cs.once.Do(func() {})
	if cs.handle == nil {
		return
	}

	var err error
	if cs.aborted.Load() {
		err = cs.handle.Abort()
	} else {
		err = cs.handle.End()
	}
	if err != nil {
		logger.Warn("failed to finish capture session",
			"session_id", cs.handle.ID(),
			"client_addr", cs.clientAddr,
			"error", err,
		)
	}
}

// tracker follows connection state for the proxy's http.Server.
type tracker struct {
	engine  *engine.Engine
	metrics *metrics.Collector
	logger  *slog.Logger

	conns    sync.Map // net.Conn -> *connSession
	hijacked atomic.Int64
}

// connContext is installed as http.Server.ConnContext.
func (t *tracker) connContext(ctx context.Context, c net.Conn) context.Context {
	cs := newConnSession(c)
	t.conns.Store(c, cs)
	return context.WithValue(ctx, connKey{}, cs)
}

// connState is installed as http.Server.ConnState. The http2 server
// reports states for connections it took over with the wrapped net.Conn,
// which is not tracked here and is ignored.
func (t *tracker) connState(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		t.metrics.ConnectionOpened()
	case http.StateHijacked:
		if v, ok := t.conns.LoadAndDelete(c); ok {
			v.(*connSession).hijacked.Store(true)
			t.hijacked.Add(1)
		}
	case http.StateClosed:
		if v, ok := t.conns.LoadAndDelete(c); ok {
			t.metrics.ConnectionClosed()
			v.(*connSession).finish(t.logger)
		}
	}
}

// lifecycle ends sessions of hijacked connections. h2c and protocol
// upgrades serve the whole connection from inside the hijacking request,
// so its return marks the end of the connection.
func (t *tracker) lifecycle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		cs := connFromContext(r.Context())
		if cs == nil || !cs.hijacked.Load() {
			return
		}
		t.metrics.ConnectionClosed()
		cs.finish(t.logger)
		t.hijacked.Add(-1)
	})
}

// waitHijacked polls until every hijacked connection has finished or ctx
// is done. http.Server.Shutdown does not wait for them.
func (t *tracker) waitHijacked(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for t.hijacked.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// closeAll ends every session still tracked, used after shutdown.
func (t *tracker) closeAll() {
	t.conns.Range(func(key, v any) bool {
		t.conns.Delete(key)
		v.(*connSession).finish(t.logger)
		return true
	})
}
