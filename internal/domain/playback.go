package domain

// State is the lifecycle state of the single process-wide playback pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StatePlaying    State = "playing"
	StateOverlaying State = "overlaying"
	StateStopped    State = "stopped"
)

// States lists every state in lifecycle order.
var States = []State{StateIdle, StateStarting, StatePlaying, StateOverlaying, StateStopped}

// Active reports whether a pipeline exists or is being built.
func (s State) Active() bool {
	return s == StateStarting || s == StatePlaying || s == StateOverlaying
}

// PlaybackState is a point-in-time snapshot of the playback session.
// Bitrate is 0 while unknown.
type PlaybackState struct {
	State          State  `json:"state"`
	Source         string `json:"source,omitempty"`
	Bitrate        int    `json:"bitrate"`
	BytesPerSecond int    `json:"bytes_per_second"`
	Effect         string `json:"effect,omitempty"`
	Listeners      int    `json:"listeners"`
}
