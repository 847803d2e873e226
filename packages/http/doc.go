// Package http provides the HTTP client used to send spec requests.
//
// It wraps the standard library's http package with additional features:
//   - Configurable timeouts, proxy and TLS verification
//   - Redirects are never followed, 3xx responses are returned as-is
//   - Bounded retries with fixed or exponential backoff and Retry-After support
//   - Client-side rate limiting
//   - Pluggable transport (Doer) and sleeper for tests
package http
