package sink

// Error codes returned by the sink API.
const (
	CodeInvalidPayload        = "INVALID_PAYLOAD"
	CodeReportNotFound        = "REPORT_NOT_FOUND"
	CodeStreamingNotSupported = "STREAMING_NOT_SUPPORTED"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SuccessResponse is a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ClearResponse reports how many reports a clear removed
type ClearResponse struct {
	Success bool `json:"success"`
	Cleared int  `json:"cleared"`
}

// ListResponse is the report listing payload
type ListResponse struct {
	Reports []Summary `json:"reports"`
	Count   int       `json:"count"`
	Total   int       `json:"total"`
}
