package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"mercator-hq/trafficdump/pkg/capture"
	"mercator-hq/trafficdump/pkg/capture/engine"
	"mercator-hq/trafficdump/pkg/capture/session"
	"mercator-hq/trafficdump/pkg/config"
	"mercator-hq/trafficdump/pkg/proxy/middleware"
	"mercator-hq/trafficdump/pkg/telemetry/logging"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
	"mercator-hq/trafficdump/pkg/telemetry/tracing"
)

// Config wires the proxy to the capture engine and telemetry.
type Config struct {
	// Proxy holds listen address, upstream and timeouts. Required.
	Proxy *config.ProxyConfig

	// Engine receives session lifecycle callbacks. Required.
	Engine *engine.Engine

	// Body controls whether body bytes are retained.
	Body session.Config

	// Transport overrides the upstream transport.
	Transport http.RoundTripper

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger
}

// Server is a reverse proxy that records every client connection as a
// capture session.
type Server struct {
	config   *config.ProxyConfig
	upstream *url.URL
	engine   *engine.Engine
	keep     int64
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger
	tracker  *tracker

	proxy      *httputil.ReverseProxy
	h2         *http2.Server
	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a proxy server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Proxy == nil {
		return nil, errors.New("proxy configuration is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("capture engine is required")
	}
	upstream, err := url.Parse(cfg.Proxy.Upstream)
	if err != nil || upstream.Host == "" || (upstream.Scheme != "http" && upstream.Scheme != "https") {
		return nil, fmt.Errorf("invalid upstream %q", cfg.Proxy.Upstream)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "proxy")

	transport := cfg.Transport
	if transport == nil {
		transport = newTransport(logger)
	}

	s := &Server{
		config:   cfg.Proxy,
		upstream: upstream,
		engine:   cfg.Engine,
		keep:     retention(cfg.Body),
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		logger:   logger,
		tracker: &tracker{
			engine:  cfg.Engine,
			metrics: cfg.Metrics,
			logger:  logger,
		},
		h2: &http2.Server{IdleTimeout: cfg.Proxy.IdleTimeout},
	}
	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport:     &captureTransport{base: transport},
		FlushInterval: -1,
		ErrorHandler:  s.upstreamError,
	}
	return s, nil
}

// newTransport builds the upstream transport. HTTP/2 is negotiated with
// TLS origins that offer it.
func newTransport(logger *slog.Logger) *http.Transport {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	configureHTTP2(tr, logger)
	return tr
}

// configureHTTP2 enables HTTP/2 on tr. On failure the transport keeps
// working over HTTP/1.1 and the condition is logged.
func configureHTTP2(tr *http.Transport, logger *slog.Logger) {
	if err := http2.ConfigureTransport(tr); err != nil {
		logger.Warn("upstream transport limited to HTTP/1.1", "error", err)
	}
}

// retention converts the body settings into a per-message byte cap.
func retention(cfg session.Config) int64 {
	switch {
	case !cfg.DumpBodies:
		return 0
	case cfg.MaxBodyBytes <= 0:
		return -1
	default:
		return cfg.MaxBodyBytes
	}
}

// Handler returns the proxy handler chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.proxy

	handler = s.captureHandler(handler)
	handler = tracing.HTTPMiddleware(s.tracer, handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	if config.Bool(s.config.H2C, true) {
		handler = h2c.NewHandler(handler, s.h2)
	}
	return s.tracker.lifecycle(handler)
}

// Configure installs the handler and connection hooks on hs. Callers that
// run their own http.Server (tests, embedding) must use it so sessions
// follow connections.
func (s *Server) Configure(hs *http.Server) error {
	hs.Handler = s.Handler()
	hs.ConnContext = s.tracker.connContext
	hs.ConnState = s.tracker.connState
	if config.Bool(s.config.H2C, true) {
		if err := http2.ConfigureServer(hs, s.h2); err != nil {
			return fmt.Errorf("failed to configure http2: %w", err)
		}
	}
	return nil
}

// Start listens on the configured address and serves until ctx is
// cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is already running")
	}
	s.httpServer = &http.Server{
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	if err := s.Configure(s.httpServer); err != nil {
		s.mu.Unlock()
		ln.Close()
		return err
	}
	s.listener = ln
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", ln.Addr().String(),
			"upstream", s.upstream.String(),
			"h2c", config.Bool(s.config.H2C, true),
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.Shutdown(context.Background())
		return err
	}
}

// Shutdown stops accepting connections, waits for in-flight requests and
// ends every open capture session.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		if err := s.tracker.waitHijacked(shutdownCtx); err != nil {
			s.logger.Warn("hijacked connections still open at shutdown", "error", err)
		}
		s.tracker.closeAll()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listening address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// captureHandler records each request as a transaction of its
// connection's session.
func (s *Server) captureHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protocol := versionOf(r.ProtoMajor)

		var handle *engine.Handle
		cs := connFromContext(r.Context())
		if cs != nil {
			handle = cs.session(s.engine, r)
		}

		var x *exchange
		keep := int64(0)
		if handle != nil && handle.Enabled() {
			keep = s.keep
			x = &exchange{
				start: start,
				keep:  keep,
				clientRequest: &capture.Message{
					Version: protocol,
					Method:  r.Method,
					URL:     r.RequestURI,
					Scheme:  schemeOf(r),
					Headers: requestHeaders(protocol, r.Method, schemeOf(r), r.Host, r.RequestURI, r.Header),
				},
			}
			if r.Body != nil && r.Body != http.NoBody {
				x.clientBody = newBodyTap(r.Body, keep)
				r.Body = x.clientBody
			}

			ctx := withExchange(r.Context(), x)
			ctx = logging.WithSessionID(ctx, handle.ID())
			ctx = logging.WithClientAddr(ctx, cs.clientAddr)
			r = r.WithContext(ctx)
		}

		cw := newCaptureWriter(w, keep)

		// A panic here is http.ErrAbortHandler from a response copy the
		// client cut short; the deferred call still sees completed=false.
		completed := false
		defer func() {
			s.metrics.RecordProxyRequest(string(protocol), r.Method, cw.statusCode(), time.Since(start))
			if !completed && cs != nil {
				cs.aborted.Store(true)
			}
		}()

		next.ServeHTTP(cw, r)

		if x == nil {
			completed = true
			return
		}
		if x.isAbandoned() {
			s.logger.DebugContext(r.Context(), "dropping transaction the client abandoned",
				"method", r.Method,
				"path", r.URL.Path,
			)
			return
		}
		completed = true

		fallback := http.StatusOK
		if x.serverStatus() == http.StatusSwitchingProtocols {
			fallback = http.StatusSwitchingProtocols
		}
		if err := handle.Append(x.transaction(cw.message(protocol, fallback))); err != nil {
			s.logger.WarnContext(r.Context(), "failed to record transaction", "error", err)
		}
	})
}

// upstreamError answers 502 when the origin cannot be reached. When the
// failure came from the client going away, the exchange is marked
// abandoned so the capture handler drops it.
func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var gone bool
	if x := exchangeFrom(r.Context()); x != nil {
		if gone = x.clientGone(r, err); gone {
			x.abandon()
		}
	} else {
		gone = errors.Is(err, context.Canceled) || r.Context().Err() != nil
	}

	if gone {
		s.logger.DebugContext(r.Context(), "client went away", "path", r.URL.Path, "error", err)
	} else {
		s.logger.WarnContext(r.Context(), "upstream request failed",
			"upstream", s.upstream.String(),
			"path", r.URL.Path,
			"error", err,
		)
	}
	w.WriteHeader(http.StatusBadGateway)
}
