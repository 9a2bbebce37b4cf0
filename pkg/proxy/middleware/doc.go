// Package middleware provides the HTTP middleware wrapped around the
// capturing reverse proxy.
//
// The chain, outermost first:
//
//	Recovery -> Logging -> RequestID -> capture -> reverse proxy
//
// Every wrapper that replaces the http.ResponseWriter implements
// Unwrap so http.ResponseController can still flush streamed responses
// and hijack upgraded connections.
package middleware
