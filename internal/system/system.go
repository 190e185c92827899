package system

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not read file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Could not raise file limit: %v", err)
	}
}

// FindFFmpeg resolves the ffmpeg binary, so a missing install surfaces as a
// clean error before any session starts instead of a failed exec mid-capture.
func FindFFmpeg() (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return path, nil
}

func FindFFplay() (string, error) {
	path, err := exec.LookPath("ffplay")
	if err != nil {
		return "", fmt.Errorf("ffplay not found in PATH: %w", err)
	}
	return path, nil
}

// GetBestH264Encoder probes ffmpeg for hardware encoders.
// Priority: VideoToolbox (macOS), NVENC (NVIDIA), then software libx264.
func GetBestH264Encoder() string {
	candidates := []string{"h264_videotoolbox", "h264_nvenc"}

	cmd := exec.Command("ffmpeg", "-encoders")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "libx264"
	}

	for _, name := range candidates {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

// GetAudioDuration reads a track's duration via ffprobe.
func GetAudioDuration(path string) (time.Duration, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var seconds float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &seconds)
	if err != nil {
		return 0, err
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// CheckDiskSpace verifies the filesystem holding dir has at least need bytes
// free. Export jobs call this before creating any output.
func CheckDiskSpace(dir string, need uint64) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("disk usage for %s: %w", dir, err)
	}
	if usage.Free < need {
		return fmt.Errorf("not enough disk space in %s: need %d bytes, %d free", dir, need, usage.Free)
	}
	return nil
}
