package types

// SuccessEnvelope wraps every 2xx body under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing view of a pkg/errors code. Retryable tells
// checkout clients whether resending the same request can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

// ErrorEnvelope carries the request id so support can find the log line.
type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}
