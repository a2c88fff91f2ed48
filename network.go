package snag

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charliek/snag/report"
)

// bodyTruncatedMarker is appended to a captured textual body that exceeded
// the configured capture cap.
const bodyTruncatedMarker = "... [truncated]"

// networkCapture owns the network interception state.
type networkCapture struct {
	origTransport http.RoundTripper
	installed     bool
}

// installNetwork swaps the process default transport for a recording
// wrapper. http.DefaultClient picks the wrap up implicitly.
func (e *Engine) installNetwork() {
	n := &e.network
	n.origTransport = http.DefaultTransport
	http.DefaultTransport = e.RoundTripper(n.origTransport)
	n.installed = true
}

// restoreNetwork puts the stored default transport back. Safe to call when
// nothing was installed.
func (e *Engine) restoreNetwork() {
	n := &e.network
	if !n.installed {
		return
	}
	http.DefaultTransport = n.origTransport
	*n = networkCapture{}
}

// originalTransport returns the transport in use before interception. The
// engine's own submission traffic rides on it so reports never record
// themselves.
func (e *Engine) originalTransport() http.RoundTripper {
	if e.network.installed {
		return e.network.origTransport
	}
	return http.DefaultTransport
}

// RoundTripper wraps next with exchange recording. A nil next uses the
// transport that was in place before interception, never the recording
// wrapper itself.
func (e *Engine) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = e.originalTransport()
	}
	return &recordingTransport{engine: e, next: next}
}

// WrapClient returns a copy of client whose transport records exchanges.
// Pass nil to wrap a default client.
func (e *Engine) WrapClient(client *http.Client) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	wrapped := *client
	wrapped.Transport = e.RoundTripper(client.Transport)
	return &wrapped
}

// recordingTransport observes one exchange per RoundTrip. It never consumes
// bodies ahead of the host and returns the delegate's response and error
// untouched.
type recordingTransport struct {
	engine *Engine
	next   http.RoundTripper
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	e := t.engine
	if !e.active.Load() || !e.config.Capture.NetworkEnabled() {
		return t.next.RoundTrip(req)
	}

	start := time.Now()
	entry := &report.NetworkLog{
		Method:         effectiveMethod(req),
		URL:            req.URL.Redacted(),
		RequestHeaders: report.NormalizeHeaders(req.Header),
		StartTime:      start.UnixMilli(),
	}

	trace, timings := newClientTrace(start)
	outreq := req.Clone(httptrace.WithClientTrace(req.Context(), trace))

	var reqBody *captureBuffer
	if req.Body != nil && req.Body != http.NoBody {
		reqBody = &captureBuffer{maxSize: e.config.Capture.MaxBodyBytes}
		outreq.Body = &captureReadCloser{
			reader: io.TeeReader(req.Body, reqBody),
			closer: req.Body,
		}
	}

	resp, err := t.next.RoundTrip(outreq)
	if err != nil {
		entry.Status = 0
		entry.StatusText = err.Error()
		entry.Duration = time.Since(start).Milliseconds()
		entry.RequestBody = capturedBody(reqBody, req.Header.Get("Content-Type"))
		entry.Timings = timings.report()
		e.appendNetwork(*entry)
		return nil, err
	}

	entry.Status = resp.StatusCode
	entry.StatusText = statusText(resp)
	entry.ResponseHeaders = report.NormalizeHeaders(resp.Header)
	entry.ContentType = resp.Header.Get("Content-Type")

	var respBody *captureBuffer
	finish := func() {
		entry.Duration = time.Since(start).Milliseconds()
		entry.RequestBody = capturedBody(reqBody, req.Header.Get("Content-Type"))
		entry.ResponseBody = capturedBody(respBody, entry.ContentType)
		if respBody != nil {
			entry.Size = respBody.bytesSeen()
		}
		entry.Timings = timings.report()
		e.appendNetwork(*entry)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		finish()
		return resp, nil
	}

	// The entry is appended when the host finishes with the body, so the
	// buffer holds exchanges in completion order.
	respBody = &captureBuffer{maxSize: e.config.Capture.MaxBodyBytes}
	resp.Body = &captureReadCloser{
		reader:   io.TeeReader(resp.Body, respBody),
		closer:   resp.Body,
		finalize: finish,
	}
	return resp, nil
}

func (e *Engine) appendNetwork(entry report.NetworkLog) {
	if !e.active.Load() || !e.config.Capture.NetworkEnabled() {
		return
	}
	e.networkBuf.Append(entry)
}

func effectiveMethod(req *http.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

// statusText extracts the reason phrase from a response status line,
// falling back to the standard text for the code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// captureBuffer accumulates up to maxSize bytes of a streamed body while
// counting everything that passes through it.
type captureBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	maxSize   int
	seen      int64
	truncated bool
}

func (cb *captureBuffer) Write(p []byte) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.seen += int64(len(p))

	if cb.truncated {
		return len(p), nil
	}
	remaining := cb.maxSize - cb.buf.Len()
	if remaining <= 0 {
		cb.truncated = true
		return len(p), nil
	}
	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
		cb.truncated = true
	}
	cb.buf.Write(toWrite)

	// Report full length so the tee never stalls the host read.
	return len(p), nil
}

func (cb *captureBuffer) snapshot() (data []byte, seen int64, truncated bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	data = append([]byte(nil), cb.buf.Bytes()...)
	return data, cb.seen, cb.truncated
}

func (cb *captureBuffer) bytesSeen() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.seen
}

// capturedBody renders a teed body for the wire: textual content as-is with
// a truncation marker when capped, binary content as a size descriptor.
func capturedBody(cb *captureBuffer, contentType string) string {
	if cb == nil {
		return ""
	}
	data, seen, truncated := cb.snapshot()
	if seen == 0 {
		return ""
	}
	if isBinaryContent(data, contentType) {
		ct := contentType
		if ct == "" {
			ct = "unknown"
		}
		return fmt.Sprintf("[binary %s, %d bytes]", ct, seen)
	}
	body := string(data)
	if truncated {
		body += bodyTruncatedMarker
	}
	return body
}

// captureReadCloser wraps a body so reading also captures, and runs
// finalize exactly once when the host reaches EOF or closes the body.
type captureReadCloser struct {
	reader   io.Reader
	closer   io.Closer
	finalize func()
	once     sync.Once
}

func (c *captureReadCloser) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	if err == io.EOF {
		c.done()
	}
	return n, err
}

func (c *captureReadCloser) Close() error {
	err := c.closer.Close()
	c.done()
	return err
}

func (c *captureReadCloser) done() {
	if c.finalize == nil {
		return
	}
	c.once.Do(func() {
		defer func() {
			_ = recover()
		}()
		c.finalize()
	})
}

// isBinaryContent determines if content appears to be binary based on the
// declared type, falling back to sampling the captured bytes.
func isBinaryContent(data []byte, contentType string) bool {
	if contentType != "" {
		ct := strings.ToLower(contentType)
		if strings.HasPrefix(ct, "text/") ||
			strings.Contains(ct, "json") ||
			strings.Contains(ct, "xml") ||
			strings.Contains(ct, "javascript") ||
			strings.Contains(ct, "html") ||
			strings.Contains(ct, "form-urlencoded") {
			return false
		}
		if strings.HasPrefix(ct, "image/") ||
			strings.HasPrefix(ct, "audio/") ||
			strings.HasPrefix(ct, "video/") ||
			strings.Contains(ct, "octet-stream") ||
			strings.Contains(ct, "zip") ||
			strings.Contains(ct, "gzip") ||
			strings.Contains(ct, "pdf") {
			return true
		}
	}

	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	if !utf8.Valid(sample) {
		return true
	}
	for _, b := range sample {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			return true
		}
	}
	return false
}

// traceTimings accumulates connection-phase durations from httptrace
// callbacks. Callbacks can fire from transport goroutines, so access is
// mutex-guarded.
type traceTimings struct {
	mu        sync.Mutex
	start     time.Time
	dnsStart  time.Time
	dns       time.Duration
	connStart time.Time
	conn      time.Duration
	tlsStart  time.Time
	tls       time.Duration
	ttfb      time.Duration
}

func newClientTrace(start time.Time) (*httptrace.ClientTrace, *traceTimings) {
	t := &traceTimings{start: start}
	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			t.mu.Lock()
			t.dnsStart = time.Now()
			t.mu.Unlock()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.mu.Lock()
			if !t.dnsStart.IsZero() {
				t.dns = time.Since(t.dnsStart)
			}
			t.mu.Unlock()
		},
		ConnectStart: func(string, string) {
			t.mu.Lock()
			if t.connStart.IsZero() {
				t.connStart = time.Now()
			}
			t.mu.Unlock()
		},
		ConnectDone: func(string, string, error) {
			t.mu.Lock()
			if !t.connStart.IsZero() && t.conn == 0 {
				t.conn = time.Since(t.connStart)
			}
			t.mu.Unlock()
		},
		TLSHandshakeStart: func() {
			t.mu.Lock()
			t.tlsStart = time.Now()
			t.mu.Unlock()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			t.mu.Lock()
			if !t.tlsStart.IsZero() {
				t.tls = time.Since(t.tlsStart)
			}
			t.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			t.mu.Lock()
			t.ttfb = time.Since(t.start)
			t.mu.Unlock()
		},
	}
	return trace, t
}

// report converts the accumulated phases to wire timings, or nil when no
// phase was observed.
func (t *traceTimings) report() *report.Timings {
	t.mu.Lock()
	defer t.mu.Unlock()

	tm := report.Timings{
		DNSMs:     t.dns.Milliseconds(),
		ConnectMs: t.conn.Milliseconds(),
		TLSMs:     t.tls.Milliseconds(),
		TTFBMs:    t.ttfb.Milliseconds(),
	}
	if tm == (report.Timings{}) {
		return nil
	}
	return &tm
}
