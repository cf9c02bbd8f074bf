package types

// SuccessEnvelope wraps order, checkout and payment-intent payloads.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Retryable tells the storefront
// the same request may succeed later (dependency outages, render failures).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
