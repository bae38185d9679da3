// Package audio determines playback bitrates and resolves effect clips and program sources
// on disk.
//
// Prober wraps the subprocess gateway with a fallback bitrate, singleflight dedupe and a
// circuit breaker. Library matches case-insensitive name queries against a directory and
// can keep its listing cached with fsnotify.
package audio
