package domain

import "fmt"

// AuthError covers missing or invalid credentials. Never retried.
type AuthError struct {
	Code string // missing_token, invalid_token, jwks_not_configured
}

func (e *AuthError) Error() string { return "auth: " + e.Code }

// ValidationError identifies the failing field and, where applicable, the
// allowed value set. Raised before any network call.
type ValidationError struct {
	Field   string
	Message string
	Allowed []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// UpstreamError carries the last observed status and body after the gateway
// exhausted its retries or hit a terminal 4xx.
type UpstreamError struct {
	Target string
	Status int // 0 when no response was received
	Body   []byte
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s: status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("upstream %s: %v", e.Target, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigError marks a feature whose required config is absent; the feature
// fails closed without taking the process down.
type ConfigError struct {
	Feature string
}

func (e *ConfigError) Error() string { return e.Feature + " not configured" }
