package playback

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ivlev/animstudio/internal/timeline"
)

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

var ErrAlreadyPlaying = errors.New("playback already running")

// TickFunc is invoked on every playback tick with the frame that just became
// current. Live recording taps in here; front ends use it to refresh the view.
type TickFunc func(index int, frame *image.RGBA)

// Scheduler drives looping preview playback over a timeline. One goroutine
// owns the ticker; Stop tears it down and guarantees no tick lands after it
// returns. Preview timing is best-effort: unlike the capture pipeline, no
// drift correction is attempted here.
type Scheduler struct {
	mu     sync.Mutex
	state  State
	fps    int
	tl     *timeline.Timeline
	onTick TickFunc

	stop chan struct{}
	done chan struct{}
}

func NewScheduler(tl *timeline.Timeline, fps int) *Scheduler {
	if fps <= 0 {
		fps = 12
	}
	return &Scheduler{
		state: Stopped,
		fps:   fps,
		tl:    tl,
	}
}

func (s *Scheduler) SetOnTick(f TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = f
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// Start begins looping playback. Fails on an empty timeline: there is
// nothing to loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Playing {
		return ErrAlreadyPlaying
	}
	if s.state == Paused {
		s.state = Playing
		return nil
	}
	if s.tl.Len() == 0 {
		return timeline.ErrEmptyTimeline
	}

	s.state = Playing
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

// Pause keeps the ticker goroutine alive but suppresses frame advancement.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Playing {
		s.state = Paused
	}
}

// Stop cancels playback. When it returns, no further tick will be applied.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	close(stop)
	<-done
}

// SetFPS changes the tick rate, taking effect on the next tick.
func (s *Scheduler) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = fps
}

func (s *Scheduler) run(stop chan struct{}, done chan struct{}) {
	defer close(done)

	s.mu.Lock()
	fps := s.fps
	s.mu.Unlock()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != Playing {
				s.mu.Unlock()
				continue
			}
			if s.fps != fps {
				fps = s.fps
				ticker.Reset(time.Second / time.Duration(fps))
			}
			cb := s.onTick
			s.mu.Unlock()

			// Re-check stop so a cancelled scheduler never applies a
			// tick that raced the ticker channel.
			select {
			case <-stop:
				return
			default:
			}

			idx, frame := s.tl.Advance()
			if cb != nil && idx >= 0 {
				cb(idx, frame)
			}
		}
	}
}
