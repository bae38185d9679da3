// Package httpserver is the echo-based HTTP surface: listener streams, the controller
// command endpoint, the status feed, static pages, health and metrics.
package httpserver
