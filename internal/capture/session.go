package capture

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/animstudio/internal/encoder"
	"github.com/ivlev/animstudio/internal/system"
)

var (
	ErrFlushTimeout    = errors.New("encoder did not flush in time")
	ErrTimingViolation = errors.New("frame timestamp not increasing")
)

// Source produces the frame to capture at a given instant. Snapshot must
// return a copy the session may hold on to; the caller keeps mutating the
// live canvas while capture runs. Consumed frames go back to the shared
// buffer pool, so sources are free to allocate snapshots from it.
type Source interface {
	Snapshot() *image.RGBA
}

// Options configure one capture session.
type Options struct {
	FPS          int
	Audio        string        // optional track to mux into the output
	FlushTimeout time.Duration // cap on Stop waiting for the encoder drain
	QueueDepth   int           // defaults to one second of frames
}

type sample struct {
	ts    time.Duration
	frame *image.RGBA
}

// Stats describe what a finished session did with its frames. Every sampled
// frame is either consumed by the encoder or dropped; the three counters
// always reconcile.
type Stats struct {
	Produced int64
	Consumed int64
	Dropped  int64
}

// Session records frames from a source into an encoder sink in real time.
// A sampler goroutine snapshots the source on a fixed tick and a consumer
// goroutine feeds the encoder; a bounded queue between them absorbs encoder
// stalls. When the queue fills, the oldest queued frame is discarded so the
// recording stays close to live instead of lagging further and further
// behind. Frames are never duplicated to paper over drops.
type Session struct {
	ID   string
	opts Options
	src  Source
	sink encoder.Sink

	queue chan sample
	group *errgroup.Group
	quit  chan struct{}

	mu      sync.Mutex
	started time.Time
	stopped bool
	stopErr error
	lastTS  time.Duration
	stats   Stats
}

// Start begins sampling immediately. The returned session must be stopped
// exactly once; until then the sink belongs to the session.
func Start(src Source, sink encoder.Sink, opts Options) (*Session, error) {
	if opts.FPS <= 0 {
		opts.FPS = 12
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = opts.FPS
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 10 * time.Second
	}

	if opts.Audio != "" {
		if err := sink.AttachAudio(opts.Audio); err != nil {
			return nil, fmt.Errorf("attach audio %s: %w", opts.Audio, err)
		}
	}

	s := &Session{
		ID:      uuid.New().String(),
		opts:    opts,
		src:     src,
		sink:    sink,
		queue:   make(chan sample, opts.QueueDepth),
		quit:    make(chan struct{}),
		started: time.Now(),
		lastTS:  -1,
	}

	s.group = &errgroup.Group{}
	s.group.Go(s.sampleLoop)
	s.group.Go(s.consumeLoop)

	log.Printf("[*] Capture session %s started: %d fps, queue depth %d", s.ID, opts.FPS, opts.QueueDepth)
	return s, nil
}

// sampleLoop snapshots the source on every tick and enqueues the result.
// It owns the queue and closes it on exit.
func (s *Session) sampleLoop() error {
	defer close(s.queue)

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return nil
		case <-ticker.C:
			frame := s.src.Snapshot()
			if frame == nil {
				continue
			}
			s.enqueue(sample{ts: time.Since(s.started), frame: frame})
		}
	}
}

// enqueue adds the sample, evicting the oldest queued one when full. The
// sampler is the only sender, so a failed non-blocking send means the queue
// really is full and one receive frees a slot.
func (s *Session) enqueue(smp sample) {
	s.mu.Lock()
	s.stats.Produced++
	s.mu.Unlock()

	select {
	case s.queue <- smp:
		return
	default:
	}

	select {
	case old := <-s.queue:
		system.PutImage(old.frame)
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
	default:
	}

	select {
	case s.queue <- smp:
	default:
		// Consumer raced us for the freed slot. Dropping the newest frame
		// here would reorder; count it instead.
		system.PutImage(smp.frame)
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
	}
}

// consumeLoop drains the queue into the sink. It runs until the queue is
// closed and empty, so every frame sampled before Stop is flushed.
func (s *Session) consumeLoop() error {
	for smp := range s.queue {
		err := s.push(smp)
		system.PutImage(smp.frame)
		if err != nil {
			// Keep draining so the sampler never blocks, but record only
			// the first failure and make sure no output survives it.
			// Unencoded frames count as dropped.
			s.mu.Lock()
			s.stats.Dropped++
			first := s.stopErr == nil
			if first {
				s.stopErr = err
			}
			s.mu.Unlock()
			if first {
				s.sink.Abort()
			}
			continue
		}
	}

	s.mu.Lock()
	err := s.stopErr
	s.mu.Unlock()
	return err
}

// push hands one sample to the sink after checking the timestamp is strictly
// ahead of the previous one. Drops never violate this: evicting queued
// samples only widens the gap between survivors.
func (s *Session) push(smp sample) error {
	s.mu.Lock()
	if smp.ts <= s.lastTS {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s after %s", ErrTimingViolation, smp.ts, s.lastTS)
	}
	s.lastTS = smp.ts
	s.mu.Unlock()

	if err := s.sink.WriteFrame(smp.ts, smp.frame); err != nil {
		return fmt.Errorf("encode frame at %s: %w", smp.ts, err)
	}

	s.mu.Lock()
	s.stats.Consumed++
	s.mu.Unlock()
	return nil
}

// Stop ends sampling, drains the queue and finalizes the sink. The encoder
// gets FlushTimeout to drain; past that the session aborts it and reports
// ErrFlushTimeout rather than hang the caller on a wedged process. Stop is
// idempotent: later calls return the first result.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		err := s.stopErr
		s.mu.Unlock()
		return err
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.quit)
	pipeErr := s.group.Wait()

	finalized := make(chan error, 1)
	go func() { finalized <- s.sink.Finalize() }()

	var finalErr error
	select {
	case finalErr = <-finalized:
	case <-time.After(s.opts.FlushTimeout):
		s.sink.Abort()
		<-finalized
		finalErr = ErrFlushTimeout
	}

	s.mu.Lock()
	if pipeErr != nil {
		s.stopErr = pipeErr
	} else {
		s.stopErr = finalErr
	}
	err := s.stopErr
	st := s.stats
	s.mu.Unlock()

	if err != nil {
		log.Printf("[!] Capture session %s failed: %v", s.ID, err)
	} else {
		log.Printf("[+++] Capture session %s done: %d produced, %d encoded, %d dropped",
			s.ID, st.Produced, st.Consumed, st.Dropped)
	}
	return err
}

// Stats returns a snapshot of the frame accounting so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Running reports whether the session is still sampling.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// Failed reports whether the session has recorded a pipeline or encoder
// failure. Once failed, nothing will appear at the destination path.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr != nil
}
