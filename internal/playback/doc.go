// Package playback owns the single process-wide broadcast pipeline.
//
// Session is the state machine behind the start, stop and overlay commands. It links
// source -> throttle.Reader -> broadcast.Broadcaster through one pump goroutine per pipeline,
// and hot-swaps the source through the mixer when an effect is overlaid. Every transition goes
// through Session methods; observers get a snapshot after each one.
package playback
