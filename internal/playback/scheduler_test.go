package playback

import (
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivlev/animstudio/internal/timeline"
)

func newTimeline(frames int) *timeline.Timeline {
	tl := timeline.New(8, 8)
	for i := 0; i < frames; i++ {
		tl.Append()
	}
	tl.SetCurrent(0)
	return tl
}

func TestStartEmptyTimelineFails(t *testing.T) {
	s := NewScheduler(timeline.New(8, 8), 12)
	if err := s.Start(); !errors.Is(err, timeline.ErrEmptyTimeline) {
		t.Errorf("Expected ErrEmptyTimeline, got %v", err)
	}
	if s.State() != Stopped {
		t.Errorf("Expected Stopped after failed start, got %v", s.State())
	}
}

func TestStartTwiceFails(t *testing.T) {
	s := NewScheduler(newTimeline(2), 100)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("Expected ErrAlreadyPlaying, got %v", err)
	}
}

func TestPlaybackLoopsAndWraps(t *testing.T) {
	tl := newTimeline(3)
	s := NewScheduler(tl, 200)

	var ticks atomic.Int64
	indices := make(chan int, 64)
	s.SetOnTick(func(idx int, frame *image.RGBA) {
		ticks.Add(1)
		select {
		case indices <- idx:
		default:
		}
		if frame == nil {
			t.Error("Tick delivered nil frame")
		}
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 7 {
		select {
		case <-deadline:
			t.Fatalf("Only %d ticks before deadline", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()

	// Index sequence must cycle 1,2,0,1,2,0,...
	close(indices)
	prev := -1
	for idx := range indices {
		if idx < 0 || idx >= 3 {
			t.Fatalf("Index %d out of range", idx)
		}
		if prev >= 0 {
			want := (prev + 1) % 3
			if idx != want {
				t.Fatalf("Expected index %d after %d, got %d", want, prev, idx)
			}
		}
		prev = idx
	}
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	s := NewScheduler(newTimeline(2), 500)

	var ticks atomic.Int64
	s.SetOnTick(func(int, *image.RGBA) { ticks.Add(1) })

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Errorf("Ticks continued after Stop: %d -> %d", after, got)
	}
	if s.State() != Stopped {
		t.Errorf("Expected Stopped, got %v", s.State())
	}

	// Second Stop is a no-op.
	s.Stop()
}

func TestPauseSuspendsAdvancement(t *testing.T) {
	tl := newTimeline(4)
	s := NewScheduler(tl, 500)

	var ticks atomic.Int64
	s.SetOnTick(func(int, *image.RGBA) { ticks.Add(1) })

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	s.Pause()
	if s.State() != Paused {
		t.Fatalf("Expected Paused, got %v", s.State())
	}

	paused := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != paused {
		t.Errorf("Ticks advanced while paused: %d -> %d", paused, got)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	deadline := time.After(time.Second)
	for ticks.Load() == paused {
		select {
		case <-deadline:
			t.Fatal("No ticks after resume")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSetFPSWhilePlaying(t *testing.T) {
	s := NewScheduler(newTimeline(2), 50)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	s.SetFPS(400)
	if s.FPS() != 400 {
		t.Errorf("Expected fps 400, got %d", s.FPS())
	}
}
