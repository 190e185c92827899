package source

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// PDFSource imports each page of a PDF as one frame. Useful for bringing a
// scanned storyboard or sketchbook into the timeline.
type PDFSource struct {
	doc  *fitz.Document
	path string
}

func NewPDFSource(path string) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDFSource{doc: doc, path: path}, nil
}

func (s *PDFSource) FrameCount() int {
	return s.doc.NumPage()
}

func (s *PDFSource) RenderFrame(index int) (image.Image, error) {
	return s.doc.ImageDPI(index, 150)
}

func (s *PDFSource) Close() error {
	return s.doc.Close()
}
