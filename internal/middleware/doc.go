// Package middleware provides the HTTP middleware chain: request logging
// and Prometheus instrumentation.
package middleware
