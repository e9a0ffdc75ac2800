// Package types holds the JSON envelopes shared by every API response.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a typed error. Retryable tells the client
// whether resubmitting with the same idempotency key may succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}
