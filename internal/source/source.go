package source

import (
	"image"
	"path/filepath"
	"strings"
)

// Source yields frames for import into a timeline. Implementations exist
// for folders of images and for PDF storyboards.
type Source interface {
	FrameCount() int
	RenderFrame(index int) (image.Image, error)
	Close() error
}

// Open picks an implementation by path: PDFs go through the renderer,
// everything else is treated as an image file or a folder of them.
func Open(path string) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewPDFSource(path)
	}
	return NewImageSource(path)
}
