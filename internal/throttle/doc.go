// Package throttle paces reads from a byte source to real-time playback speed.
//
// A Reader reserves tokens on a golang.org/x/time/rate limiter before every source read,
// using an injected clockwork.Clock so pacing is deterministic in tests.
package throttle
