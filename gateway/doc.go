// Package gateway is a guarded HTTP client for the payment service.
//
// Every charge runs through a protected executor, so payment calls get a
// bounded connection pool, a circuit breaker and classified retries for
// free. HTTP responses map onto failure categories: client mistakes (bad
// request, invalid key, unknown resource, rejected input) are terminal,
// while rate limiting, server errors, connection failures and timeouts
// stay retryable.
//
// The client also applies its own request rate limit ahead of the pool so
// a burst of callers cannot trip the provider's limiter, and each charge
// is wrapped in a trace span.
package gateway
