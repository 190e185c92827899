package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/animstudio/internal/config"
	"github.com/ivlev/animstudio/internal/export"
	"github.com/ivlev/animstudio/internal/project"
	"github.com/ivlev/animstudio/internal/source"
	"github.com/ivlev/animstudio/internal/system"
)

func main() {
	system.InitResourceLimits()

	configPtr := flag.String("config", "", "Path to a YAML config file")
	projectPtr := flag.String("project", "", "Project directory to load (and save back to)")
	widthPtr := flag.Int("width", 0, "Canvas width (overrides config)")
	heightPtr := flag.Int("height", 0, "Canvas height (overrides config)")
	fpsPtr := flag.Int("fps", 0, "Playback and export frame rate (overrides config)")
	presetPtr := flag.String("preset", "", "Canvas preset: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	audioPtr := flag.String("audio-dir", "", "Folder with soundtrack files")
	imagesPtr := flag.String("image-dir", "", "Folder with reference images")
	importPtr := flag.String("import", "", "PDF, image file or folder to import as frames")
	exportPtr := flag.String("export", "", "Export the timeline: video, gif or sequence")
	outputPtr := flag.String("output", "", "Output path (default: generated under output/)")
	qualityPtr := flag.Int("quality", 0, "Video quality (x264: CRF 1-51, NVENC: CQ)")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			log.Fatalf("[-] Cannot load config: %v", err)
		}
		cfg = loaded
	}
	if *widthPtr > 0 {
		cfg.Width = *widthPtr
	}
	if *heightPtr > 0 {
		cfg.Height = *heightPtr
	}
	if *fpsPtr > 0 {
		cfg.FPS = *fpsPtr
	}
	if *presetPtr != "" {
		cfg.Preset = *presetPtr
		cfg.ApplyPreset()
	}
	if *audioPtr != "" {
		cfg.AudioDir = *audioPtr
	}
	if *imagesPtr != "" {
		cfg.ImageDir = *imagesPtr
	}
	if *qualityPtr > 0 {
		cfg.Quality = *qualityPtr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Bad configuration: %v", err)
	}

	for _, d := range []string{cfg.AudioDir, cfg.ImageDir, cfg.OutputDir} {
		os.MkdirAll(d, 0755)
	}

	if _, err := system.FindFFmpeg(); err != nil {
		log.Printf("[!] ffmpeg not found in PATH: video and gif export will fail")
	}
	if enc := system.GetBestH264Encoder(); enc != cfg.VideoEncoder {
		fmt.Printf("[*] Using hardware encoder: %s\n", enc)
		cfg.VideoEncoder = enc
	}

	var p *project.Project
	if *projectPtr != "" {
		loaded, err := project.Load(*projectPtr, cfg)
		if err != nil {
			log.Fatalf("[-] Cannot load project: %v", err)
		}
		p = loaded
	} else {
		p = project.New(cfg)
	}

	if err := p.SetAudioFolder(cfg.AudioDir); err != nil {
		log.Printf("[!] Audio folder unavailable: %v", err)
	}
	if err := p.SetImageFolder(cfg.ImageDir); err != nil {
		log.Printf("[!] Image folder unavailable: %v", err)
	}

	if *importPtr != "" {
		src, err := source.Open(*importPtr)
		if err != nil {
			log.Fatalf("[-] Cannot open %s: %v", *importPtr, err)
		}
		n, err := source.ImportAll(p.Timeline, src)
		src.Close()
		if err != nil {
			log.Fatalf("[-] Import failed after %d frames: %v", n, err)
		}
		if *projectPtr != "" {
			if err := p.Save(*projectPtr); err != nil {
				log.Fatalf("[-] Cannot save project: %v", err)
			}
		}
	}

	if *exportPtr != "" {
		kind := export.Kind(*exportPtr)
		out := *outputPtr
		if out == "" {
			out = defaultOutput(cfg.OutputDir, kind, *importPtr, *projectPtr)
		}

		start := time.Now()
		if err := p.Export(kind, out); err != nil {
			log.Fatalf("[-] Export failed: %v", err)
		}
		fmt.Printf("[+++] Done in %.1fs: %s\n", time.Since(start).Seconds(), out)
		return
	}

	w, h := p.Timeline.Size()
	fmt.Printf("[*] animstudio: %d frame(s), %dx%d @ %d fps, encoder %s\n",
		p.Timeline.Len(), w, h, cfg.FPS, cfg.VideoEncoder)
	fmt.Println("[*] Nothing to do: pass -import and/or -export (video, gif, sequence)")
}

// defaultOutput builds a timestamped name the way exports are usually
// filed: named after the imported source or the project, under output/.
func defaultOutput(outDir string, kind export.Kind, importPath, projectPath string) string {
	name := "animation"
	if importPath != "" {
		base := filepath.Base(importPath)
		name = strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	} else if projectPath != "" {
		name = filepath.Base(filepath.Clean(projectPath))
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	switch kind {
	case export.KindGIF:
		return filepath.Join(outDir, fmt.Sprintf("%s_%s.gif", name, timestamp))
	case export.KindSequence:
		return filepath.Join(outDir, fmt.Sprintf("%s_%s", name, timestamp))
	default:
		return filepath.Join(outDir, fmt.Sprintf("%s_%s.mp4", name, timestamp))
	}
}
