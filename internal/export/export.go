package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/animstudio/internal/encoder"
	"github.com/ivlev/animstudio/internal/system"
	"github.com/ivlev/animstudio/internal/timeline"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindGIF      Kind = "gif"
	KindSequence Kind = "sequence"
)

var ErrUnknownKind = errors.New("unknown export kind")

// Job describes one export request.
type Job struct {
	Kind          Kind
	FrameDuration time.Duration // how long each frame stays on screen
	OutPath       string        // file for video/gif, directory for sequence
	AudioPath     string        // optional, video only
}

// Exporter turns a finished set of frames into a file on disk. Unlike live
// capture there is no real-time pressure here: every frame is written, in
// order, at evenly spaced timestamps.
type Exporter struct {
	Codec   string
	Quality int

	// newSink is replaced in tests to avoid spawning ffmpeg.
	newSink func(encoder.Options) encoder.Sink
}

func New(codec string, quality int) *Exporter {
	return &Exporter{
		Codec:   codec,
		Quality: quality,
		newSink: func(o encoder.Options) encoder.Sink { return encoder.NewFFmpegSink(o) },
	}
}

// Export writes the frames out as the requested kind. Frames are composited
// onto white first; the editing pipeline keeps transparency, final media
// does not.
func (e *Exporter) Export(frames []*image.RGBA, job Job) error {
	if len(frames) == 0 {
		return timeline.ErrEmptyTimeline
	}
	if job.FrameDuration <= 0 {
		job.FrameDuration = time.Second / 12
	}

	if err := e.preflight(frames, job); err != nil {
		return err
	}

	log.Printf("[>] Exporting %d frames as %s to %s", len(frames), job.Kind, job.OutPath)

	switch job.Kind {
	case KindVideo, KindGIF:
		return e.encode(frames, job)
	case KindSequence:
		return e.writeSequence(frames, job.OutPath)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
}

// preflight rejects jobs the disk cannot hold before any encoder starts.
// The raw frame size bounds every output format from above.
func (e *Exporter) preflight(frames []*image.RGBA, job Job) error {
	dir := filepath.Dir(job.OutPath)
	if job.Kind == KindSequence {
		// The sequence dir itself may not exist yet.
		if _, err := os.Stat(job.OutPath); err == nil {
			dir = job.OutPath
		}
	}

	b := frames[0].Bounds()
	need := uint64(len(frames)) * uint64(b.Dx()) * uint64(b.Dy()) * 4
	return system.CheckDiskSpace(dir, need)
}

func (e *Exporter) encode(frames []*image.RGBA, job Job) error {
	b := frames[0].Bounds()
	fps := int(time.Second / job.FrameDuration)
	if fps <= 0 {
		fps = 1
	}

	container := encoder.ContainerMP4
	if job.Kind == KindGIF {
		container = encoder.ContainerGIF
	}

	sink := e.newSink(encoder.Options{
		Width:     b.Dx(),
		Height:    b.Dy(),
		FPS:       fps,
		Codec:     e.Codec,
		Quality:   e.Quality,
		Container: container,
		DestPath:  job.OutPath,
	})

	if job.AudioPath != "" && job.Kind == KindVideo {
		if err := sink.AttachAudio(job.AudioPath); err != nil {
			return fmt.Errorf("attach audio: %w", err)
		}
	}

	for i, frame := range frames {
		ts := time.Duration(i) * job.FrameDuration
		if err := sink.WriteFrame(ts, timeline.CompositeWhite(frame)); err != nil {
			sink.Abort()
			sink.Finalize()
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return sink.Finalize()
}

// writeSequence saves numbered PNG files into dir. Each file is written to
// a temp name and renamed, so an interrupted export leaves no half-written
// frame under a final name.
func (e *Exporter) writeSequence(frames []*image.RGBA, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create sequence dir: %w", err)
	}
	prefix := sequencePrefix(dir)

	for i, frame := range frames {
		name := filepath.Join(dir, fmt.Sprintf("%s_%04d.png", prefix, i))
		if err := writePNG(name, timeline.CompositeWhite(frame)); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	log.Printf("[+++] Wrote %d-frame sequence to %s", len(frames), dir)
	return nil
}

func sequencePrefix(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		return "frame"
	}
	return strings.ReplaceAll(base, " ", "_")
}

func writePNG(path string, img *image.RGBA) error {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
