package proxy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"mercator-hq/trafficdump/pkg/capture"
)

type exchangeKey struct{}

// exchange gathers the four messages of one proxied request. The client
// side is filled by the capture handler, the upstream side by the
// capturing transport.
type exchange struct {
	start time.Time
	keep  int64

	mu             sync.Mutex
	clientRequest  *capture.Message
	clientBody     *bodyTap
	proxyRequest   *capture.Message
	proxyBody      *bodyTap
	serverResponse *capture.Message
	serverBody     *bodyTap

	// abandoned is set when the client went away before the response
	// started. The transaction never completed and is not recorded.
	abandoned bool
}

func withExchange(ctx context.Context, x *exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, x)
}

func exchangeFrom(ctx context.Context) *exchange {
	x, _ := ctx.Value(exchangeKey{}).(*exchange)
	return x
}

func (x *exchange) setProxyRequest(m *capture.Message, body *bodyTap) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.proxyRequest = m
	x.proxyBody = body
}

func (x *exchange) setServerResponse(m *capture.Message, body *bodyTap) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.serverResponse = m
	x.serverBody = body
}

func (x *exchange) abandon() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.abandoned = true
}

func (x *exchange) isAbandoned() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.abandoned
}

// clientGone reports whether err from the upstream round trip was caused
// by the client side: a cancelled request or a broken request body.
func (x *exchange) clientGone(r *http.Request, err error) bool {
	if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
		return true
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.clientBody.failed()
}

// setProxyVersion corrects the forwarded request once the upstream
// protocol is known from the response.
func (x *exchange) setProxyVersion(version capture.HTTPVersion, headers capture.Headers) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.proxyRequest != nil {
		x.proxyRequest.Version = version
		x.proxyRequest.Headers = headers
	}
}

// transaction assembles the captured transaction. proxyResponse is the
// message the proxy returned to the client.
func (x *exchange) transaction(proxyResponse *capture.Message) *capture.Transaction {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx := &capture.Transaction{
		StartTime:      x.start,
		ClientRequest:  x.clientRequest,
		ProxyRequest:   x.proxyRequest,
		ServerResponse: x.serverResponse,
		ProxyResponse:  proxyResponse,
	}
	tx.ClientRequest.Body = x.clientBody.body()
	if tx.ProxyRequest != nil {
		tx.ProxyRequest.Body = x.proxyBody.body()
	}
	if tx.ServerResponse != nil {
		tx.ServerResponse.Body = x.serverBody.body()
	}
	return tx
}

// captureWriter records the response the proxy sends to the client.
type captureWriter struct {
	http.ResponseWriter
	keep int64

	mu          sync.Mutex
	status      int
	header      http.Header
	size        int64
	data        []byte
	truncated   bool
	wroteHeader bool
}

func newCaptureWriter(w http.ResponseWriter, keep int64) *captureWriter {
	return &captureWriter{ResponseWriter: w, keep: keep}
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.mu.Lock()
	if !cw.wroteHeader && (code >= 200 || code == http.StatusSwitchingProtocols) {
		cw.status = code
		cw.header = cw.ResponseWriter.Header().Clone()
		cw.wroteHeader = true
	}
	cw.mu.Unlock()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	if !cw.wroteHeader {
		cw.status = http.StatusOK
		cw.header = cw.ResponseWriter.Header().Clone()
		cw.wroteHeader = true
	}
	cw.mu.Unlock()

	n, err := cw.ResponseWriter.Write(p)

	cw.mu.Lock()
	cw.size += int64(n)
	cw.data, cw.truncated = retain(cw.data, p[:n], cw.keep, cw.truncated)
	cw.mu.Unlock()
	return n, err
}

// Unwrap lets http.ResponseController reach the connection's writer for
// flushes and hijacks.
func (cw *captureWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// statusCode returns the status sent, or 200 when the handler wrote
// nothing.
func (cw *captureWriter) statusCode() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.status == 0 {
		return http.StatusOK
	}
	return cw.status
}

// message returns the response sent to the client. fallback is the status
// recorded when the handler never called WriteHeader, which happens when
// the reverse proxy hijacks the connection for a protocol upgrade.
func (cw *captureWriter) message(version capture.HTTPVersion, fallback int) *capture.Message {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	status, header := cw.status, cw.header
	if status == 0 {
		status = fallback
		header = cw.ResponseWriter.Header().Clone()
	}
	return &capture.Message{
		Version: version,
		Status:  status,
		Reason:  http.StatusText(status),
		Headers: responseHeaders(version, status, header),
		Body: capture.Body{
			Size:      cw.size,
			Data:      append([]byte(nil), cw.data...),
			Truncated: cw.truncated,
		},
	}
}

// serverStatus returns the origin's status code, or 0 when no response
// arrived.
func (x *exchange) serverStatus() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.serverResponse == nil {
		return 0
	}
	return x.serverResponse.Status
}

// captureTransport records the request forwarded upstream and the origin's
// response for requests carrying an exchange.
type captureTransport struct {
	base http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	x := exchangeFrom(req.Context())
	if x == nil {
		return t.base.RoundTrip(req)
	}

	out := req.WithContext(req.Context())
	var reqBody *bodyTap
	if req.Body != nil && req.Body != http.NoBody {
		reqBody = newBodyTap(req.Body, x.keep)
		out.Body = reqBody
	}
	path := req.URL.RequestURI()
	x.setProxyRequest(&capture.Message{
		Version: capture.HTTP11,
		Method:  req.Method,
		URL:     path,
		Scheme:  req.URL.Scheme,
		Headers: requestHeaders(capture.HTTP11, req.Method, req.URL.Scheme, hostOf(req), path, req.Header),
	}, reqBody)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	version := versionOf(resp.ProtoMajor)
	if version != capture.HTTP11 {
		x.setProxyVersion(version, requestHeaders(version, req.Method, req.URL.Scheme, hostOf(req), path, req.Header))
	}
	var respBody *bodyTap
	if resp.Body != nil && resp.Body != http.NoBody {
		respBody = newBodyTap(resp.Body, x.keep)
		resp.Body = respBody
	}
	x.setServerResponse(&capture.Message{
		Version: version,
		Status:  resp.StatusCode,
		Reason:  http.StatusText(resp.StatusCode),
		Headers: responseHeaders(version, resp.StatusCode, resp.Header),
	}, respBody)
	return resp, nil
}

func hostOf(req *http.Request) string {
	if req.Host != "" {
		return req.Host
	}
	return req.URL.Host
}
