package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/animstudio/internal/encoder"
	"github.com/ivlev/animstudio/internal/timeline"
)

type memSink struct {
	mu         sync.Mutex
	opts       encoder.Options
	audio      string
	writeErr   error
	timestamps []time.Duration
	finalized  bool
	aborted    bool
}

func (m *memSink) AttachAudio(path string) error {
	m.audio = path
	return nil
}

func (m *memSink) WriteFrame(ts time.Duration, frame *image.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.timestamps = append(m.timestamps, ts)
	return nil
}

func (m *memSink) Finalize() error { m.finalized = true; return nil }
func (m *memSink) Abort()          { m.aborted = true }

func testExporter(sink *memSink) *Exporter {
	e := New("libx264", 23)
	e.newSink = func(o encoder.Options) encoder.Sink {
		sink.opts = o
		return sink
	}
	return e
}

func testFrames(n int) []*image.RGBA {
	frames := make([]*image.RGBA, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, 16, 16))
		img.SetRGBA(i, i, color.RGBA{255, 0, 0, 255})
		frames[i] = img
	}
	return frames
}

func TestExportEmptyFails(t *testing.T) {
	sink := &memSink{}
	e := testExporter(sink)
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := e.Export(nil, Job{Kind: KindVideo, OutPath: out})
	if !errors.Is(err, timeline.ErrEmptyTimeline) {
		t.Errorf("Expected ErrEmptyTimeline, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Output file created for empty export")
	}
}

func TestExportVideoTimestamps(t *testing.T) {
	sink := &memSink{}
	e := testExporter(sink)
	out := filepath.Join(t.TempDir(), "out.mp4")

	d := 100 * time.Millisecond
	err := e.Export(testFrames(3), Job{Kind: KindVideo, FrameDuration: d, OutPath: out})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	want := []time.Duration{0, d, 2 * d}
	if len(sink.timestamps) != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), len(sink.timestamps))
	}
	for i, ts := range sink.timestamps {
		if ts != want[i] {
			t.Errorf("Frame %d at %s, want %s", i, ts, want[i])
		}
	}
	if !sink.finalized {
		t.Error("Sink not finalized")
	}
	if sink.opts.FPS != 10 {
		t.Errorf("Expected fps 10 from 100ms frames, got %d", sink.opts.FPS)
	}
}

func TestExportVideoMuxesAudio(t *testing.T) {
	sink := &memSink{}
	e := testExporter(sink)
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := e.Export(testFrames(2), Job{
		Kind: KindVideo, FrameDuration: time.Second / 12,
		OutPath: out, AudioPath: "/music/track.wav",
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if sink.audio != "/music/track.wav" {
		t.Errorf("Audio not attached, got %q", sink.audio)
	}
}

func TestExportGIFSkipsAudio(t *testing.T) {
	sink := &memSink{}
	e := testExporter(sink)
	out := filepath.Join(t.TempDir(), "out.gif")

	err := e.Export(testFrames(2), Job{
		Kind: KindGIF, FrameDuration: time.Second / 12,
		OutPath: out, AudioPath: "/music/track.wav",
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if sink.audio != "" {
		t.Error("GIF export attached audio")
	}
	if sink.opts.Container != encoder.ContainerGIF {
		t.Errorf("Expected gif container, got %q", sink.opts.Container)
	}
}

func TestExportSequenceWritesNumberedFiles(t *testing.T) {
	sink := &memSink{}
	e := testExporter(sink)
	dir := filepath.Join(t.TempDir(), "shots")

	err := e.Export(testFrames(3), Job{Kind: KindSequence, OutPath: dir})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("shots_%04d.png", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("Missing sequence file %s: %v", name, err)
		}
	}
	if sink.finalized || len(sink.timestamps) > 0 {
		t.Error("Sequence export touched the encoder sink")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 files, found %d", len(entries))
	}
}

func TestExportSinkFailurePropagates(t *testing.T) {
	boom := errors.New("encoder died")
	sink := &memSink{writeErr: boom}
	e := testExporter(sink)
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := e.Export(testFrames(2), Job{Kind: KindVideo, FrameDuration: time.Second / 12, OutPath: out})
	if !errors.Is(err, boom) {
		t.Errorf("Expected sink failure, got %v", err)
	}
	if !sink.aborted {
		t.Error("Sink not aborted after write failure")
	}
}

func TestExportUnknownKind(t *testing.T) {
	sink := &memSink{}
	e := testExporter(sink)
	err := e.Export(testFrames(1), Job{Kind: "hologram", OutPath: filepath.Join(t.TempDir(), "x")})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}
