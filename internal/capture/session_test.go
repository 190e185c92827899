package capture

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

type stillSource struct {
	img *image.RGBA
}

func (s *stillSource) Snapshot() *image.RGBA {
	cp := image.NewRGBA(s.img.Bounds())
	copy(cp.Pix, s.img.Pix)
	return cp
}

// memSink records everything a session feeds it.
type memSink struct {
	mu         sync.Mutex
	delay      time.Duration
	writeErr   error
	audio      string
	timestamps []time.Duration
	finalized  bool
	aborted    bool
}

func (m *memSink) AttachAudio(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = path
	return nil
}

func (m *memSink) WriteFrame(ts time.Duration, frame *image.RGBA) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.timestamps = append(m.timestamps, ts)
	return nil
}

func (m *memSink) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = true
	return nil
}

func (m *memSink) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
}

func (m *memSink) recorded() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.timestamps))
	copy(out, m.timestamps)
	return out
}

func newSource() *stillSource {
	return &stillSource{img: image.NewRGBA(image.Rect(0, 0, 8, 8))}
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	sink := &memSink{}
	sess, err := Start(newSource(), sink, Options{FPS: 100})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got := sink.recorded()
	if len(got) < 3 {
		t.Fatalf("Expected at least 3 frames, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("Timestamp %s at %d not after %s", got[i], i, got[i-1])
		}
	}
	if !sink.finalized {
		t.Error("Sink not finalized on stop")
	}
}

func TestSlowSinkDropsOldestNotAll(t *testing.T) {
	sink := &memSink{delay: 30 * time.Millisecond}
	sess, err := Start(newSource(), sink, Options{FPS: 200, QueueDepth: 2})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	st := sess.Stats()
	if st.Dropped == 0 {
		t.Error("Expected drops with a slow sink and tiny queue")
	}
	if st.Consumed == 0 {
		t.Error("Expected some frames to survive despite drops")
	}
	if st.Consumed+st.Dropped != st.Produced {
		t.Errorf("Frame accounting off: %d consumed + %d dropped != %d produced",
			st.Consumed, st.Dropped, st.Produced)
	}

	// Survivors still land in order.
	got := sink.recorded()
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("Drops broke ordering: %s after %s", got[i], got[i-1])
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sink := &memSink{}
	sess, err := Start(newSource(), sink, Options{FPS: 100})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	err1 := sess.Stop()
	err2 := sess.Stop()
	if err1 != nil || err2 != nil {
		t.Errorf("Stop not idempotent: first %v, second %v", err1, err2)
	}
	if sess.Running() {
		t.Error("Session still reports running after stop")
	}
}

func TestSinkFailureAbortsSession(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memSink{writeErr: boom}
	sess, err := Start(newSource(), sink, Options{FPS: 100})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	stopErr := sess.Stop()
	if !errors.Is(stopErr, boom) {
		t.Errorf("Expected sink failure from Stop, got %v", stopErr)
	}
	if !sink.aborted {
		t.Error("Sink not aborted after write failure")
	}
	if !sess.Failed() {
		t.Error("Session should report failed")
	}
}

// wedgedSink never finishes Finalize on its own; only Abort releases it.
type wedgedSink struct {
	memSink
	release chan struct{}
	once    sync.Once
}

func (w *wedgedSink) Finalize() error {
	<-w.release
	return w.memSink.Finalize()
}

func (w *wedgedSink) Abort() {
	w.memSink.Abort()
	w.once.Do(func() { close(w.release) })
}

func TestStopGivesUpOnWedgedEncoder(t *testing.T) {
	sink := &wedgedSink{release: make(chan struct{})}
	sess, err := Start(newSource(), sink, Options{FPS: 100, FlushTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- sess.Stop() }()

	select {
	case stopErr := <-done:
		if !errors.Is(stopErr, ErrFlushTimeout) {
			t.Fatalf("Expected ErrFlushTimeout, got %v", stopErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung past the flush timeout")
	}

	sink.mu.Lock()
	aborted := sink.aborted
	sink.mu.Unlock()
	if !aborted {
		t.Error("Sink not aborted after flush timeout")
	}
	if !sess.Failed() {
		t.Error("Session should report failed")
	}
}

func TestAudioAttachedBeforeFirstFrame(t *testing.T) {
	sink := &memSink{}
	sess, err := Start(newSource(), sink, Options{FPS: 100, Audio: "/music/loop.wav"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sess.Stop()

	sink.mu.Lock()
	audio := sink.audio
	sink.mu.Unlock()
	if audio != "/music/loop.wav" {
		t.Errorf("Audio not attached, got %q", audio)
	}
}

func TestPushRejectsNonIncreasingTimestamp(t *testing.T) {
	sink := &memSink{}
	s := &Session{sink: sink, lastTS: -1}

	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := s.push(sample{ts: 100 * time.Millisecond, frame: frame}); err != nil {
		t.Fatalf("First push failed: %v", err)
	}
	err := s.push(sample{ts: 100 * time.Millisecond, frame: frame})
	if !errors.Is(err, ErrTimingViolation) {
		t.Errorf("Expected ErrTimingViolation, got %v", err)
	}
	err = s.push(sample{ts: 50 * time.Millisecond, frame: frame})
	if !errors.Is(err, ErrTimingViolation) {
		t.Errorf("Expected ErrTimingViolation for regression, got %v", err)
	}
}
