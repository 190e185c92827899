package assets

import (
	"fmt"
	"log"
	"os/exec"
	"sync"
	"syscall"
)

// Player plays one audio track through ffplay. It exists for monitoring
// during recording; export muxes audio separately, so whatever the player
// does never touches the output file.
type Player struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

func NewPlayer() *Player {
	return &Player{}
}

// Play starts the track from the beginning, replacing any current playback.
func (p *Player) Play(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	cmd := exec.Command("ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	p.cmd = cmd
	p.paused = false

	// Reap in the background so a track that plays to its end does not
	// linger as a zombie.
	go cmd.Wait()

	log.Printf("[>] Playing %s", path)
	return nil
}

// Pause suspends playback in place. ffplay has no pause control on stdin
// when the display is disabled, so the process itself is stopped.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil || p.paused {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGSTOP); err == nil {
		p.paused = true
	}
}

// Resume continues a paused track.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil || !p.paused {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGCONT); err == nil {
		p.paused = false
	}
}

// Stop ends playback. Safe to call with nothing playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cmd != nil && p.cmd.Process != nil {
		// SIGKILL terminates the process even while it is stopped.
		p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.paused = false
}

// Playing reports whether a track is active and not paused.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && !p.paused
}
