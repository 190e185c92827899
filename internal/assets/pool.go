package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ivlev/animstudio/internal/system"
)

var (
	ErrEmptyFolder = errors.New("no usable files in folder")
	ErrNoTrack     = errors.New("no track selected yet")
)

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true,
	".ogg": true, ".aac": true, ".flac": true,
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
}

// Track is one playable audio file.
type Track struct {
	Path     string
	Duration time.Duration
}

// AudioPool hands out tracks from a folder in a fixed loop, so the same
// scene always gets the same soundtrack order. Rescanning resets the loop.
type AudioPool struct {
	mu     sync.Mutex
	dir    string
	tracks []Track
	next   int
	picked bool
}

// ScanAudio walks dir recursively and collects every playable track, sorted
// by path. Files whose duration cannot be probed are kept with a zero
// duration rather than dropped: the player can still loop them.
func ScanAudio(dir string) (*AudioPool, error) {
	paths, err := scan(dir, audioExtensions)
	if err != nil {
		return nil, err
	}

	pool := &AudioPool{dir: dir, tracks: make([]Track, 0, len(paths))}
	for _, p := range paths {
		d, err := system.GetAudioDuration(p)
		if err != nil {
			log.Printf("[-] Cannot probe %s: %v", p, err)
			d = 0
		}
		pool.tracks = append(pool.tracks, Track{Path: p, Duration: d})
	}
	log.Printf("[*] Audio pool: %d tracks from %s", len(pool.tracks), dir)
	return pool, nil
}

func (p *AudioPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

func (p *AudioPool) Dir() string { return p.dir }

// NextTrack returns the next track in the loop, wrapping at the end.
func (p *AudioPool) NextTrack() (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return Track{}, ErrEmptyFolder
	}
	t := p.tracks[p.next]
	p.next = (p.next + 1) % len(p.tracks)
	p.picked = true
	return t, nil
}

// Current returns the track NextTrack handed out last, without advancing.
// Before any track was picked there is no current one.
func (p *AudioPool) Current() (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.picked {
		return Track{}, ErrNoTrack
	}
	idx := (p.next - 1 + len(p.tracks)) % len(p.tracks)
	return p.tracks[idx], nil
}

// ImagePool serves random reference images from a folder.
type ImagePool struct {
	mu    sync.Mutex
	dir   string
	paths []string
	rng   *rand.Rand
}

func ScanImages(dir string) (*ImagePool, error) {
	paths, err := scan(dir, imageExtensions)
	if err != nil {
		return nil, err
	}
	log.Printf("[*] Image pool: %d images from %s", len(paths), dir)
	return &ImagePool{
		dir:   dir,
		paths: paths,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (p *ImagePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

// RandomImage picks any image from the pool.
func (p *ImagePool) RandomImage() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.paths) == 0 {
		return "", ErrEmptyFolder
	}
	return p.paths[p.rng.Intn(len(p.paths))], nil
}

// scan walks dir recursively, keeping files whose extension is in exts.
func scan(dir string, exts map[string]bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if exts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
