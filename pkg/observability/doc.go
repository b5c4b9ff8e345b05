// Package observability provides logging, metrics and tracing for the SSO
// admin client.
//
// Logger is a thin structured JSON logger over log/slog. Library packages
// take a *Logger and never print to stdout, which belongs to CLI output.
//
// Metrics registers Prometheus collectors for outbound requests, token
// refreshes, session resets, persistence and search fetches. All Record
// methods are nil-safe so callers can pass a nil *Metrics when metrics are
// off.
//
// InitTracing installs an OTLP/gRPC tracer provider; token refreshes are
// traced through Tracer().
package observability
