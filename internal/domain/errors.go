package domain

import "errors"

var (
	ErrEffectNotFound  = errors.New("effect not found")
	ErrSourceNotFound  = errors.New("source not found")
	ErrAlreadyPlaying  = errors.New("playback already running")
	ErrNotPlaying      = errors.New("playback is not running")
	ErrPlaybackStopped = errors.New("playback stopped while command was in flight")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrSubprocessSpawn = errors.New("audio subprocess could not be started")

	// ErrSubprocessFailed matches every failed audio tool invocation, spawned or not.
	ErrSubprocessFailed = errors.New("audio subprocess failed")
)
