package encoder

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// Sink consumes timestamped frames (plus at most one audio track) and turns
// them into a finished media file. The live capture pipeline and the batch
// exporter both talk to this interface, so their correctness can be tested
// against an in-memory fake instead of a real encoder process.
type Sink interface {
	// AttachAudio registers an audio input to mux into the output. Must be
	// called at most once, before the first WriteFrame.
	AttachAudio(path string) error

	// WriteFrame hands one frame to the encoder. Timestamps must be
	// strictly increasing; the pipeline enforces this before calling.
	WriteFrame(ts time.Duration, frame *image.RGBA) error

	// Finalize flushes, waits for the encoder to exit and moves the output
	// to its destination. Safe to call again after a failure: the process
	// handle is released exactly once and the first result is returned.
	Finalize() error

	// Abort kills the encoder and discards the partial output. The
	// destination path is never touched. A subsequent Finalize reports
	// the failure.
	Abort()
}

var (
	ErrProcessGone     = errors.New("encoder process is not accepting frames")
	ErrFinalized       = errors.New("encoder sink already finalized")
	ErrAborted         = errors.New("encoder sink aborted")
	ErrAudioAfterFrame = errors.New("audio must be attached before the first frame")
	ErrAudioAttached   = errors.New("audio already attached")
)

// ExitError reports a non-zero exit from the external encoder process.
type ExitError struct {
	Code int
	Log  string
}

func (e *ExitError) Error() string {
	if e.Log != "" {
		return fmt.Sprintf("encoder exited with code %d: %s", e.Code, e.Log)
	}
	return fmt.Sprintf("encoder exited with code %d", e.Code)
}
