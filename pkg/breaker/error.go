package breaker

import "errors"

// ErrOpen is returned when a call is short-circuited because the named
// breaker is open. Callers should surface this as a temporary-unavailability
// condition and must not retry through the breaker themselves.
var ErrOpen = errors.New("service unavailable: circuit breaker open")
