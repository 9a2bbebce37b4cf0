// Package proxy is the capturing reverse proxy that feeds the capture
// engine.
//
// Every accepted client connection becomes one capture session. The
// session starts with the connection's first request, when the negotiated
// protocol is known, and ends when the connection closes. Each request on
// the connection is recorded as one transaction with four messages:
//
//   - client-request: what the client sent
//   - proxy-request: what was forwarded upstream
//   - server-response: what the origin answered
//   - proxy-response: what the proxy returned
//
// HTTP/1.1 and cleartext HTTP/2 (h2c, prior knowledge or Upgrade) are
// accepted on the same listener. HTTP/2 streams of one connection share a
// session.
//
// # Basic Usage
//
//	srv, err := proxy.NewServer(proxy.Config{
//	    Proxy:   &cfg.Proxy,
//	    Engine:  eng,
//	    Metrics: collector,
//	    Tracer:  tracer,
//	    Logger:  logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// # Admin
//
// NewAdminRouter serves /metrics, /healthz, /readyz, /version, /budget and
// /captures on a separate listener so probes are never captured.
package proxy
