package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	ContainerMP4 = "mp4"
	ContainerGIF = "gif"
)

// Options configure one encoder process.
type Options struct {
	Width     int
	Height    int
	FPS       int
	Codec     string // libx264, h264_videotoolbox, h264_nvenc
	Quality   int    // CRF for x264, CQ for NVENC, bitrate factor for VideoToolbox
	Container string // ContainerMP4 or ContainerGIF
	DestPath  string
}

// proc abstracts the external encoder process so tests can substitute a fake.
type proc interface {
	Start() error
	Stdin() io.WriteCloser
	// Wait reaps the process and returns its exit code. A non-nil error
	// means waiting itself failed, not that the process exited non-zero.
	Wait() (int, error)
	Kill()
}

type launchFunc func(args []string, stderr io.Writer) (proc, error)

// FFmpegSink streams raw RGBA frames into an ffmpeg subprocess over stdin.
// Output goes to a temporary path next to the destination and is renamed
// into place only when ffmpeg exits cleanly, so a dead encoder or a full
// disk never leaves a truncated file where the user expects a finished one.
type FFmpegSink struct {
	opts     Options
	tempPath string
	launch   launchFunc

	mu        sync.Mutex
	audioPath string
	proc      proc
	stdin     io.WriteCloser
	started   bool
	aborted   bool
	finalized bool
	reaped    bool
	finalErr  error
	errLog    bytes.Buffer
}

func NewFFmpegSink(opts Options) *FFmpegSink {
	if opts.Codec == "" {
		opts.Codec = "libx264"
	}
	if opts.Container == "" {
		opts.Container = ContainerMP4
	}
	return &FFmpegSink{
		opts:     opts,
		tempPath: opts.DestPath + ".part",
		launch:   launchFFmpeg,
	}
}

func (s *FFmpegSink) AttachAudio(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAudioAfterFrame
	}
	if s.audioPath != "" {
		return ErrAudioAttached
	}
	s.audioPath = path
	return nil
}

func (s *FFmpegSink) WriteFrame(ts time.Duration, frame *image.RGBA) error {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return ErrFinalized
	}
	if !s.started {
		if err := s.start(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	stdin := s.stdin
	s.mu.Unlock()

	if err := writeRawRGBA(stdin, frame); err != nil {
		return fmt.Errorf("%w: frame at %s: %v", ErrProcessGone, ts, err)
	}
	return nil
}

// start launches ffmpeg lazily on the first frame, so AttachAudio can still
// influence the argument list. Caller holds s.mu.
func (s *FFmpegSink) start() error {
	args := s.buildArgs()
	p, err := s.launch(args, &s.errLog)
	if err != nil {
		return fmt.Errorf("create encoder process: %w", err)
	}
	if err := p.Start(); err != nil {
		return fmt.Errorf("start encoder process: %w", err)
	}
	s.proc = p
	s.stdin = p.Stdin()
	s.started = true
	return nil
}

func (s *FFmpegSink) buildArgs() []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", s.opts.Width, s.opts.Height),
		"-framerate", fmt.Sprintf("%d", s.opts.FPS),
		"-i", "-",
	}

	withAudio := s.audioPath != "" && s.opts.Container == ContainerMP4
	if withAudio {
		args = append(args, "-i", s.audioPath)
	}

	switch s.opts.Container {
	case ContainerGIF:
		// GIF needs a palette pass to avoid dithering artifacts.
		args = append(args,
			"-vf", "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
			"-f", "gif",
		)
	default:
		args = append(args, "-pix_fmt", "yuv420p", "-c:v", s.opts.Codec)

		switch s.opts.Codec {
		case "h264_videotoolbox":
			// VideoToolbox rejects -crf on most versions; use bitrate.
			args = append(args, "-b:v", fmt.Sprintf("%dk", s.opts.Quality*100))
		case "h264_nvenc":
			args = append(args, "-cq", fmt.Sprintf("%d", s.opts.Quality))
		default: // libx264
			args = append(args, "-crf", fmt.Sprintf("%d", s.opts.Quality), "-preset", "medium")
		}

		if withAudio {
			args = append(args,
				"-map", "0:v", "-map", "1:a",
				"-c:a", "aac",
				"-shortest",
			)
		}
		args = append(args, "-movflags", "+faststart", "-f", "mp4")
	}

	args = append(args, s.tempPath)
	return args
}

func (s *FFmpegSink) Finalize() error {
	s.mu.Lock()
	if s.finalized {
		err := s.finalErr
		s.mu.Unlock()
		return err
	}
	s.finalized = true

	if !s.started {
		// No frame ever arrived: nothing to flush, nothing on disk.
		s.mu.Unlock()
		return nil
	}
	stdin := s.stdin
	p := s.proc
	s.mu.Unlock()

	// Closing stdin is the flush signal; ffmpeg drains and exits.
	stdin.Close()
	code, waitErr := p.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reaped = true

	switch {
	case s.aborted:
		s.finalErr = ErrAborted
	case waitErr != nil:
		s.finalErr = fmt.Errorf("wait for encoder: %w", waitErr)
	case code != 0:
		s.finalErr = &ExitError{Code: code, Log: truncateLog(s.errLog.String())}
	}

	if s.finalErr != nil {
		os.Remove(s.tempPath)
		return s.finalErr
	}

	if err := os.Rename(s.tempPath, s.opts.DestPath); err != nil {
		s.finalErr = fmt.Errorf("move output into place: %w", err)
		os.Remove(s.tempPath)
		return s.finalErr
	}
	return nil
}

func (s *FFmpegSink) Abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	if !s.started {
		if !s.finalized {
			s.finalized = true
			s.finalErr = ErrAborted
		}
		s.mu.Unlock()
		return
	}
	if s.reaped {
		s.mu.Unlock()
		return
	}
	p := s.proc
	s.mu.Unlock()

	// The process may be mid-Wait inside a concurrent Finalize; killing it
	// unblocks that Wait, and the cleanup path removes the partial file.
	p.Kill()
}

// writeRawRGBA streams the frame's pixels to the encoder. Non-canonical
// layouts (sub-images, padded strides) are normalized first.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	if img.Stride != bounds.Dx()*4 || bounds.Min.X != 0 || bounds.Min.Y != 0 {
		norm := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(norm, norm.Bounds(), img, bounds.Min, draw.Src)
		img = norm
	}
	_, err := w.Write(img.Pix)
	return err
}

func truncateLog(log string) string {
	const max = 512
	if len(log) > max {
		return "..." + log[len(log)-max:]
	}
	return log
}

// launchFFmpeg is the production launch path.
func launchFFmpeg(args []string, stderr io.Writer) (proc, error) {
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	return &execProc{cmd: cmd, stdin: stdin}, nil
}

type execProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (p *execProc) Start() error { return p.cmd.Start() }

func (p *execProc) Stdin() io.WriteCloser { return p.stdin }

func (p *execProc) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

func (p *execProc) Kill() {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}
