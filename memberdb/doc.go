// Package memberdb stores club member records in Redis behind a protected
// executor.
//
// Every Redis round trip runs through the executor, so a slow or
// unreachable Redis is subject to the same pool, breaker and retry
// discipline as any other dependency. A missing key is a terminal
// not-found failure; connection and timeout errors stay retryable.
package memberdb
