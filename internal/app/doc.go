// Package app provides the application service layer.
//
// Commands turns controller input into playback operations and exposes the status and effect
// listings the HTTP layer serves. It depends on small interfaces, not on the playback package.
package app
