// Package report defines the wire format exchanged with a bug-report
// ingestion endpoint, plus the helpers used to build its entries. The JSON
// shape is shared with the browser SDKs that talk to the same backends, so
// field names and casing here are load-bearing.
package report

import (
	"fmt"
	"time"
)

// Level identifies the console entry kind.
type Level string

const (
	LevelLog   Level = "log"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// String returns the string representation of Level.
func (l Level) String() string {
	return string(l)
}

// ActionKind identifies the user action kind.
type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionChange ActionKind = "change"
	ActionSubmit ActionKind = "submit"
)

// ConsoleLog is one intercepted console call or recorded runtime panic.
type ConsoleLog struct {
	Type      Level  `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Stack     string `json:"stack,omitempty"`
}

// Timings carries connection-phase durations observed for one exchange.
// All values are milliseconds; zero values are omitted from the wire.
type Timings struct {
	DNSMs     int64 `json:"dnsMs,omitempty"`
	ConnectMs int64 `json:"connectMs,omitempty"`
	TLSMs     int64 `json:"tlsMs,omitempty"`
	TTFBMs    int64 `json:"ttfbMs,omitempty"`
}

// NetworkLog is one intercepted HTTP exchange, recorded when the exchange
// completes. A transport-level failure is recorded with Status 0 and the
// error text as StatusText.
type NetworkLog struct {
	Method          string    `json:"method"`
	URL             string    `json:"url"`
	Status          int       `json:"status"`
	StatusText      string    `json:"statusText"`
	RequestHeaders  HeaderMap `json:"requestHeaders"`
	ResponseHeaders HeaderMap `json:"responseHeaders"`
	RequestBody     string    `json:"requestBody,omitempty"`
	ResponseBody    string    `json:"responseBody,omitempty"`
	StartTime       int64     `json:"startTime"` // epoch milliseconds
	Duration        int64     `json:"duration"`  // milliseconds
	Size            int64     `json:"size"`      // response bytes observed
	ContentType     string    `json:"type"`
	Timings         *Timings  `json:"timings,omitempty"`
}

// UserAction is one intercepted UI interaction. Target is a derived
// CSS-selector-like descriptor, never an element reference.
type UserAction struct {
	Action    ActionKind `json:"action"`
	Target    string     `json:"target"`
	Timestamp int64      `json:"timestamp"` // epoch milliseconds
}

// DeviceInfo is a point-in-time environment snapshot, recomputed fresh for
// every capture.
type DeviceInfo struct {
	UserAgent        string  `json:"userAgent"`
	Platform         string  `json:"platform"`
	Language         string  `json:"language"`
	ScreenWidth      int     `json:"screenWidth"`
	ScreenHeight     int     `json:"screenHeight"`
	ViewportWidth    int     `json:"viewportWidth"`
	ViewportHeight   int     `json:"viewportHeight"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
	Timezone         string  `json:"timezone"`
	CookiesEnabled   bool    `json:"cookiesEnabled"`
}

// Snapshot is the assembled capture payload before operator metadata is
// attached. Buffer contents are copies taken at assembly time.
type Snapshot struct {
	ConsoleLogs []ConsoleLog `json:"consoleLogs"`
	NetworkLogs []NetworkLog `json:"networkLogs"`
	UserActions []UserAction `json:"userActions"`
	DeviceInfo  DeviceInfo   `json:"deviceInfo"`
	PageURL     string       `json:"pageUrl"`
	Screenshot  string       `json:"screenshot,omitempty"` // data URI
}

// Report is the full submission payload.
type Report struct {
	ProjectKey    string       `json:"projectKey"`
	Title         string       `json:"title,omitempty"`
	Description   string       `json:"description,omitempty"`
	PageURL       string       `json:"pageUrl"`
	Screenshot    string       `json:"screenshot,omitempty"`
	ConsoleLogs   []ConsoleLog `json:"consoleLogs"`
	NetworkLogs   []NetworkLog `json:"networkLogs"`
	UserActions   []UserAction `json:"userActions"`
	DeviceInfo    DeviceInfo   `json:"deviceInfo"`
	ReporterEmail string       `json:"reporterEmail,omitempty"`
	ReporterName  string       `json:"reporterName,omitempty"`
}

// DefaultTitle is used when a submission carries no operator title.
const DefaultTitle = "Bug Report"

// SubmitOptions carries operator-entered metadata for one submission.
type SubmitOptions struct {
	Title          string
	Description    string
	ReporterEmail  string
	ReporterName   string
	SkipScreenshot bool
}

// SubmitResult is the ingestion endpoint's acceptance response.
type SubmitResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// New assembles a Report from a snapshot plus operator metadata, applying
// the default title. The entry fields are declared as arrays on the wire,
// so nil slices are normalized to empty ones here.
func New(projectKey string, snap *Snapshot, opts SubmitOptions) *Report {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	return &Report{
		ProjectKey:    projectKey,
		Title:         title,
		Description:   opts.Description,
		PageURL:       snap.PageURL,
		Screenshot:    snap.Screenshot,
		ConsoleLogs:   nonNil(snap.ConsoleLogs),
		NetworkLogs:   nonNil(snap.NetworkLogs),
		UserActions:   nonNil(snap.UserActions),
		DeviceInfo:    snap.DeviceInfo,
		ReporterEmail: opts.ReporterEmail,
		ReporterName:  opts.ReporterName,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Validate checks the fields the wire format marks required.
func (r *Report) Validate() error {
	if r.ProjectKey == "" {
		return fmt.Errorf("projectKey is required")
	}
	if r.PageURL == "" {
		return fmt.Errorf("pageUrl is required")
	}
	return nil
}

// Now returns the current time as epoch milliseconds, the timestamp unit
// used throughout the wire format.
func Now() int64 {
	return time.Now().UnixMilli()
}
