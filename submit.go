package snag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/charliek/snag/report"
)

// gzipThreshold is the payload size above which submissions are compressed.
const gzipThreshold = 1024

// maxResponseBytes caps how much of an endpoint response is read.
const maxResponseBytes = 1 << 20

// Submit collects a snapshot, attaches the operator metadata from opts,
// and POSTs the report to the configured endpoint. Reporter identity falls
// back to the configured defaults. The request rides the original
// transport, so the submission never records itself.
func (e *Engine) Submit(ctx context.Context, opts report.SubmitOptions) (*report.SubmitResult, error) {
	if !e.active.Load() {
		return nil, ErrNotInitialized
	}
	if opts.ReporterEmail == "" {
		opts.ReporterEmail = e.config.Reporter.Email
	}
	if opts.ReporterName == "" {
		opts.ReporterName = e.config.Reporter.Name
	}

	snap := e.Collect(ctx, !opts.SkipScreenshot)
	rep := report.New(e.config.ProjectKey, snap, opts)
	return e.submitReport(ctx, rep)
}

// SubmitReport sends an already-assembled report. Most callers want Submit.
func (e *Engine) SubmitReport(ctx context.Context, rep *report.Report) (*report.SubmitResult, error) {
	if !e.active.Load() {
		return nil, ErrNotInitialized
	}
	return e.submitReport(ctx, rep)
}

func (e *Engine) submitReport(ctx context.Context, rep *report.Report) (*report.SubmitResult, error) {
	payload, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding report: %v", ErrSubmitFailed, err)
	}

	body, encoding, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: compressing report: %v", ErrSubmitFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent())
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := e.submitClient().Do(req)
	if err != nil {
		e.log.Debug().Err(err).Str("endpoint", e.config.Endpoint).Msg("report submission failed")
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSubmitFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		submitErr := &SubmitError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			submitErr.Message = envelope.Error
			submitErr.Code = envelope.Code
		}
		e.log.Debug().Int("status", resp.StatusCode).Str("code", submitErr.Code).Msg("report rejected")
		return nil, submitErr
	}

	var result report.SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrSubmitFailed, err)
	}
	return &result, nil
}

// encodePayload gzips payloads above the threshold; small ones go out as-is.
func encodePayload(payload []byte) (io.Reader, string, error) {
	if len(payload) <= gzipThreshold {
		return bytes.NewReader(payload), "", nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, "", err
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, "gzip", nil
}

// submitClient builds the one-shot client for a submission on top of the
// transport that was in place before interception.
func (e *Engine) submitClient() *http.Client {
	return &http.Client{
		Transport: e.originalTransport(),
		Timeout:   e.config.Timeout,
	}
}
