package throttle

import (
	"errors"
	"io"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// DefaultChunkSize caps a single paced read.
const DefaultChunkSize = 4096

// Reader paces reads from a source to a fixed number of bytes per second.
// After End or Detach every read returns io.EOF.
type Reader struct {
	src            io.Reader
	limiter        *rate.Limiter
	clock          clockwork.Clock
	burst          int
	bytesPerSecond int

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
	ended    bool
	done     chan struct{}

	// readMu is held for the duration of every source read.
	readMu sync.Mutex
}

// New paces src at bytesPerSecond. Reads are capped at min(chunkSize, bytesPerSecond);
// chunkSize <= 0 selects DefaultChunkSize.
func New(src io.Reader, bytesPerSecond, chunkSize int, clock clockwork.Clock) *Reader {
	if bytesPerSecond < 1 {
		bytesPerSecond = 1
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	burst := min(chunkSize, bytesPerSecond)

	return &Reader{
		src:            src,
		limiter:        rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		clock:          clock,
		burst:          burst,
		bytesPerSecond: bytesPerSecond,
		done:           make(chan struct{}),
	}
}

// BytesPerSecond returns the pacing rate.
func (r *Reader) BytesPerSecond() int {
	return r.bytesPerSecond
}

// Done is closed once the reader has ended.
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > r.burst {
		p = p[:r.burst]
	}

	if err := r.waitResumed(); err != nil {
		return 0, err
	}
	if err := r.waitTokens(len(p)); err != nil {
		return 0, err
	}

	r.readMu.Lock()
	defer r.readMu.Unlock()
	if r.isEnded() {
		return 0, io.EOF
	}
	return r.src.Read(p)
}

// Drain empties the token bucket, so the next read waits a full chunk interval instead of
// going out at once. Used when a stream takes over from another paced stream.
func (r *Reader) Drain() {
	r.limiter.ReserveN(r.clock.Now(), r.burst)
}

// Pause blocks reads until Resume or End.
func (r *Reader) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused || r.ended {
		return
	}
	r.paused = true
	r.resumeCh = make(chan struct{})
}

// Resume releases reads blocked by Pause.
func (r *Reader) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	close(r.resumeCh)
}

// End stops pacing. Blocked and future reads return io.EOF. Safe to call more than once.
func (r *Reader) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	close(r.done)
}

// Detach ends the reader and returns its source once no source read is in flight.
// The caller owns the source afterwards.
func (r *Reader) Detach() io.Reader {
	r.End()
	r.readMu.Lock()
	defer r.readMu.Unlock()
	return r.src
}

func (r *Reader) isEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

func (r *Reader) waitResumed() error {
	for {
		r.mu.Lock()
		if r.ended {
			r.mu.Unlock()
			return io.EOF
		}
		if !r.paused {
			r.mu.Unlock()
			return nil
		}
		resumeCh := r.resumeCh
		r.mu.Unlock()

		select {
		case <-resumeCh:
		case <-r.done:
			return io.EOF
		}
	}
}

func (r *Reader) waitTokens(n int) error {
	now := r.clock.Now()
	reservation := r.limiter.ReserveN(now, n)
	if !reservation.OK() {
		return errors.New("throttle: read exceeds burst")
	}

	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	timer := r.clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-r.done:
		reservation.CancelAt(r.clock.Now())
		return io.EOF
	}
}
