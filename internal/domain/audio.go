package domain

import (
	"context"
	"io"
)

// MixLevels are the volume multipliers applied to the program and the effect clip.
type MixLevels struct {
	Primary   float64
	Secondary float64
}

// AudioProber returns the raw bitrate token reported by the audio tool for a file.
type AudioProber interface {
	ProbeBitrate(ctx context.Context, path string) (string, error)
}

// Mixer merges primary with the clip at secondaryPath into one continuous stream.
// The returned stream owns the subprocess; closing it abandons the mix.
type Mixer interface {
	Mix(ctx context.Context, primary io.Reader, secondaryPath string, levels MixLevels) (io.ReadCloser, error)
}

// BitrateProber determines the playback bitrate of a file in bits per second.
// It never fails; implementations fall back to a fixed bitrate.
type BitrateProber interface {
	Probe(ctx context.Context, path string) int
}

// FileResolver resolves a case-insensitive name query to a file path.
type FileResolver interface {
	Resolve(ctx context.Context, query string) (string, error)
}
