// Package http contains the chi HTTP handlers for the license service:
// the public activation/verification endpoints, the operator admin
// endpoints, and the health and server-time probes. Handlers decode with
// go-chi/render, validate with go-playground/validator, and answer errors
// as RFC 7807 problem documents.
package http
