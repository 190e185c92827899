package project

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/animstudio/internal/canvas"
	"github.com/ivlev/animstudio/internal/config"
	"github.com/ivlev/animstudio/internal/timeline"
)

// Manifest is the on-disk description of a saved project. Frames live next
// to it as numbered PNG files; the manifest records everything else.
type Manifest struct {
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	FPS      int      `yaml:"fps"`
	Current  int      `yaml:"current"`
	Frames   []string `yaml:"frames"`
	AudioDir string   `yaml:"audio_dir,omitempty"`
	ImageDir string   `yaml:"image_dir,omitempty"`

	Brush brushState `yaml:"brush"`
}

type brushState struct {
	Tool    string `yaml:"tool"`
	Size    int    `yaml:"size"`
	Opacity int    `yaml:"opacity"`
	Waver   int    `yaml:"waver"`
	Color   string `yaml:"color"`
}

const manifestName = "project.yaml"

// Save writes the project into dir: one PNG per frame plus project.yaml.
// The manifest goes last, so a crash mid-save never leaves a manifest
// pointing at frames that were not written.
func (p *Project) Save(dir string) error {
	framesDir := filepath.Join(dir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	frames := p.Timeline.Snapshot()
	w, h := p.Timeline.Size()

	m := Manifest{
		Width:   w,
		Height:  h,
		FPS:     p.cfg.FPS,
		Current: p.Timeline.Current(),
		Brush: brushState{
			Tool:    string(p.Settings.Tool),
			Size:    p.Settings.Size,
			Opacity: p.Settings.Opacity,
			Waver:   p.Settings.Waver,
			Color: fmt.Sprintf("#%02x%02x%02x%02x",
				p.Settings.Color.R, p.Settings.Color.G, p.Settings.Color.B, p.Settings.Color.A),
		},
	}

	for i, frame := range frames {
		name := fmt.Sprintf("frame_%04d.png", i)
		if err := savePNG(filepath.Join(framesDir, name), frame); err != nil {
			return fmt.Errorf("save frame %d: %w", i, err)
		}
		m.Frames = append(m.Frames, filepath.Join("frames", name))
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0644); err != nil {
		return err
	}

	log.Printf("[+] Saved project: %d frames to %s", len(frames), dir)
	return nil
}

// Load reads a saved project back. The manifest's size wins over the
// passed config; everything else in cfg stays as given.
func Load(dir string, cfg *config.Config) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("manifest has invalid size %dx%d", m.Width, m.Height)
	}

	cfg.Width, cfg.Height = m.Width, m.Height
	if m.FPS > 0 {
		cfg.FPS = m.FPS
	}

	tl := timeline.New(m.Width, m.Height)
	for i, rel := range m.Frames {
		img, err := loadImage(filepath.Join(dir, rel))
		if err != nil {
			return nil, fmt.Errorf("load frame %d: %w", i, err)
		}
		tl.AppendImage(img)
	}
	if tl.Len() == 0 {
		tl.Append()
	}
	if err := tl.SetCurrent(clamp(m.Current, 0, tl.Len()-1)); err != nil {
		return nil, err
	}

	p := newWith(cfg, tl)
	p.Settings = m.Brush.settings()

	log.Printf("[*] Loaded project: %d frames from %s", p.Timeline.Len(), dir)
	return p, nil
}

func (b brushState) settings() canvas.Settings {
	s := canvas.DefaultSettings()
	if b.Tool != "" {
		s.Tool = canvas.Tool(b.Tool)
	}
	if b.Size > 0 {
		s.Size = b.Size
	}
	if b.Opacity > 0 {
		s.Opacity = b.Opacity
	}
	s.Waver = b.Waver

	var r, g, bl, a uint8
	if _, err := fmt.Sscanf(b.Color, "#%02x%02x%02x%02x", &r, &g, &bl, &a); err == nil {
		s.Color.R, s.Color.G, s.Color.B, s.Color.A = r, g, bl, a
	}
	return s
}

func savePNG(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
