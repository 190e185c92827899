package project

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/ivlev/animstudio/internal/assets"
	"github.com/ivlev/animstudio/internal/canvas"
	"github.com/ivlev/animstudio/internal/capture"
	"github.com/ivlev/animstudio/internal/config"
	"github.com/ivlev/animstudio/internal/encoder"
	"github.com/ivlev/animstudio/internal/export"
	"github.com/ivlev/animstudio/internal/playback"
	"github.com/ivlev/animstudio/internal/system"
	"github.com/ivlev/animstudio/internal/timeline"
)

var (
	ErrRecording     = errors.New("recording already in progress")
	ErrNotRecording  = errors.New("no recording in progress")
	ErrNoAudioFolder = errors.New("audio folder not configured")
	ErrNoImageFolder = errors.New("image folder not configured")
)

// Project ties the editor pieces together: one timeline, one playback
// scheduler, asset pools and at most one live capture session at a time.
// Drawing goes through Draw, which serializes pixel mutation with capture
// snapshots on the timeline lock.
type Project struct {
	cfg *config.Config

	Timeline  *timeline.Timeline
	Settings  canvas.Settings
	Scheduler *playback.Scheduler
	Player    *assets.Player

	brush *canvas.Canvas

	mu      sync.Mutex
	audio   *assets.AudioPool
	images  *assets.ImagePool
	session *capture.Session
}

// New builds a project with one blank frame, so drawing can start
// immediately.
func New(cfg *config.Config) *Project {
	tl := timeline.New(cfg.Width, cfg.Height)
	tl.Append()
	return newWith(cfg, tl)
}

func newWith(cfg *config.Config, tl *timeline.Timeline) *Project {
	p := &Project{
		cfg:      cfg,
		Timeline: tl,
		Settings: canvas.DefaultSettings(),
		Player:   assets.NewPlayer(),
	}
	p.brush = canvas.New(tl.CurrentFrame(), &p.Settings)
	p.Scheduler = playback.NewScheduler(tl, cfg.FPS)
	return p
}

// Draw applies fn to the current frame under the timeline lock. The brush
// is retargeted first, so selection changes need no bookkeeping here.
func (p *Project) Draw(fn func(*canvas.Canvas)) error {
	return p.Timeline.Edit(func(frame *image.RGBA) {
		p.brush.Retarget(frame)
		fn(p.brush)
	})
}

func (p *Project) Config() *config.Config { return p.cfg }

// SelectFrame moves the timeline pointer; the next Draw targets the newly
// current frame.
func (p *Project) SelectFrame(i int) error {
	return p.Timeline.SetCurrent(i)
}

func (p *Project) AddFrame() {
	p.Timeline.Append()
}

func (p *Project) InsertFrame(i int) error {
	_, err := p.Timeline.Insert(i)
	return err
}

func (p *Project) DuplicateFrame() error {
	_, err := p.Timeline.Duplicate()
	return err
}

func (p *Project) DeleteFrame() error {
	return p.Timeline.Delete()
}

func (p *Project) Play() error {
	return p.Scheduler.Start()
}

func (p *Project) Pause() {
	p.Scheduler.Pause()
	p.Player.Pause()
}

func (p *Project) StopPlayback() {
	p.Scheduler.Stop()
	p.Player.Stop()
}

// SetAudioFolder rescans the soundtrack pool.
func (p *Project) SetAudioFolder(dir string) error {
	pool, err := assets.ScanAudio(dir)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.audio = pool
	p.mu.Unlock()
	return nil
}

// NextTrack plays the next soundtrack in the loop.
func (p *Project) NextTrack() error {
	p.mu.Lock()
	pool := p.audio
	p.mu.Unlock()
	if pool == nil {
		return ErrNoAudioFolder
	}
	track, err := pool.NextTrack()
	if err != nil {
		return err
	}
	return p.Player.Play(track.Path)
}

// SetImageFolder rescans the reference image pool.
func (p *Project) SetImageFolder(dir string) error {
	pool, err := assets.ScanImages(dir)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.images = pool
	p.mu.Unlock()
	return nil
}

// ThrowImage pastes a random pool image onto the current frame at the
// brush opacity.
func (p *Project) ThrowImage() error {
	p.mu.Lock()
	pool := p.images
	p.mu.Unlock()
	if pool == nil {
		return ErrNoImageFolder
	}
	path, err := pool.RandomImage()
	if err != nil {
		return err
	}

	src, err := loadImage(path)
	if err != nil {
		return err
	}
	if err := p.Draw(func(c *canvas.Canvas) {
		c.Paste(src, float64(p.Settings.Opacity)/100)
	}); err != nil {
		return err
	}
	log.Printf("[+] Threw %s onto frame %d", filepath.Base(path), p.Timeline.Current())
	return nil
}

// StartRecording begins a live capture of whatever the playback loop shows.
// Playback starts if it was not already running; the current soundtrack, if
// any, is played for monitoring and muxed into the output.
func (p *Project) StartRecording(outPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return ErrRecording
	}

	var audioPath string
	if p.audio != nil {
		if track, err := p.audio.Current(); err == nil {
			audioPath = track.Path
		}
	}

	sink := encoder.NewFFmpegSink(encoder.Options{
		Width:    p.cfg.Width,
		Height:   p.cfg.Height,
		FPS:      p.cfg.FPS,
		Codec:    p.cfg.VideoEncoder,
		Quality:  p.cfg.Quality,
		DestPath: outPath,
	})

	sess, err := capture.Start(&timelineSource{tl: p.Timeline}, sink, capture.Options{
		FPS:          p.cfg.FPS,
		Audio:        audioPath,
		FlushTimeout: time.Duration(p.cfg.FlushTimeoutSec * float64(time.Second)),
	})
	if err != nil {
		return err
	}
	p.session = sess

	if err := p.Scheduler.Start(); err != nil && !errors.Is(err, playback.ErrAlreadyPlaying) {
		p.session = nil
		sess.Stop()
		return err
	}
	if audioPath != "" {
		p.Player.Play(audioPath)
	}
	return nil
}

// StopRecording ends the capture session and reports how it went. Playback
// keeps running; stopping the loop is a separate decision.
func (p *Project) StopRecording() (capture.Stats, error) {
	p.mu.Lock()
	sess := p.session
	p.session = nil
	p.mu.Unlock()

	if sess == nil {
		return capture.Stats{}, ErrNotRecording
	}
	p.Player.Stop()
	err := sess.Stop()
	return sess.Stats(), err
}

func (p *Project) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Export writes the whole timeline out as the requested kind, with the
// current soundtrack muxed into video exports.
func (p *Project) Export(kind export.Kind, outPath string) error {
	var audioPath string
	p.mu.Lock()
	if p.audio != nil {
		if track, err := p.audio.Current(); err == nil {
			audioPath = track.Path
		}
	}
	p.mu.Unlock()

	e := export.New(p.cfg.VideoEncoder, p.cfg.Quality)
	return e.Export(p.Timeline.Snapshot(), export.Job{
		Kind:          kind,
		FrameDuration: time.Second / time.Duration(p.cfg.FPS),
		OutPath:       outPath,
		AudioPath:     audioPath,
	})
}

// timelineSource adapts the timeline to the capture pipeline. Each snapshot
// is the currently displayed frame composited onto white, the whole copy
// made under the timeline lock shared with Draw, so the sampler never reads
// a stroke mid-write. Snapshots come from the shared buffer pool; the
// capture session returns them once encoded.
type timelineSource struct {
	tl *timeline.Timeline
}

func (s *timelineSource) Snapshot() *image.RGBA {
	w, h := s.tl.Size()
	dst := system.GetImage(image.Rect(0, 0, w, h))
	if !s.tl.CompositeCurrentInto(dst) {
		system.PutImage(dst)
		return nil
	}
	return dst
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
