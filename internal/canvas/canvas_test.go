package canvas

import (
	"image"
	"image/color"
	"testing"
)

var (
	red = color.RGBA{255, 0, 0, 255}
)

func newTestCanvas(w, h int, s Settings) (*Canvas, *image.RGBA) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	return New(img, &s), img
}

func TestBrushStampsDisc(t *testing.T) {
	s := DefaultSettings()
	s.Color = red
	s.Size = 10
	c, img := newTestCanvas(50, 50, s)

	c.DrawPoint(25, 25)

	if img.RGBAAt(25, 25) != red {
		t.Error("Center pixel not painted")
	}
	if img.RGBAAt(25, 21) != red {
		t.Error("Pixel inside radius not painted")
	}
	if img.RGBAAt(25, 35) == red {
		t.Error("Pixel outside radius painted")
	}
}

func TestLineCoversSegment(t *testing.T) {
	s := DefaultSettings()
	s.Tool = ToolPencil
	s.Color = red
	s.Size = 3
	c, img := newTestCanvas(60, 20, s)

	c.DrawLine(5, 10, 55, 10)

	for x := 5; x <= 55; x += 10 {
		if img.RGBAAt(x, 10) != red {
			t.Errorf("Pixel (%d,10) on line not painted", x)
		}
	}
}

func TestEraserClearsPixels(t *testing.T) {
	s := DefaultSettings()
	s.Color = red
	s.Size = 8
	c, img := newTestCanvas(30, 30, s)
	c.DrawPoint(15, 15)

	s2 := s
	s2.Tool = ToolEraser
	e := New(img, &s2)
	e.DrawPoint(15, 15)

	if img.RGBAAt(15, 15) != (color.RGBA{}) {
		t.Errorf("Expected erased pixel, got %v", img.RGBAAt(15, 15))
	}
}

func TestOpacityBlends(t *testing.T) {
	s := DefaultSettings()
	s.Color = red
	s.Opacity = 50
	s.Size = 4
	c, img := newTestCanvas(20, 20, s)

	c.DrawPoint(10, 10)

	got := img.RGBAAt(10, 10)
	if got.A == 0 || got.A == 255 {
		t.Errorf("Expected partial alpha, got %d", got.A)
	}
}

func TestSprayStaysNearCenter(t *testing.T) {
	s := DefaultSettings()
	s.Tool = ToolSpray
	s.Color = red
	s.Size = 10
	c, img := newTestCanvas(200, 200, s)

	c.DrawPoint(100, 100)

	painted := 0
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y).A > 0 {
				painted++
				// radius = size*1.5, plus dot extent
				if dx, dy := x-100, y-100; dx*dx+dy*dy > 40*40 {
					t.Fatalf("Spray dot at (%d,%d) too far from center", x, y)
				}
			}
		}
	}
	if painted == 0 {
		t.Error("Spray painted nothing")
	}
}

func TestFillRespectsBoundary(t *testing.T) {
	s := DefaultSettings()
	s.Tool = ToolFill
	s.Color = red
	c, img := newTestCanvas(20, 20, s)

	// Vertical wall at x=10.
	wall := color.RGBA{0, 0, 0, 255}
	for y := 0; y < 20; y++ {
		img.SetRGBA(10, y, wall)
	}

	c.Fill(2, 2)

	if img.RGBAAt(5, 5) != red {
		t.Error("Left side not filled")
	}
	if img.RGBAAt(10, 5) != wall {
		t.Error("Wall overwritten")
	}
	if img.RGBAAt(15, 5) == red {
		t.Error("Fill leaked past the wall")
	}
}

func TestFillNoopOnSameColor(t *testing.T) {
	s := DefaultSettings()
	s.Color = color.RGBA{0, 0, 0, 0}
	c, img := newTestCanvas(8, 8, s)

	// Filling transparent with transparent must terminate and change nothing.
	c.Fill(4, 4)
	if img.RGBAAt(4, 4) != (color.RGBA{}) {
		t.Error("No-op fill modified pixels")
	}
}

func TestPasteCentersScaledImage(t *testing.T) {
	s := DefaultSettings()
	c, img := newTestCanvas(100, 100, s)

	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.SetRGBA(x, y, color.RGBA{0, 0, 255, 255})
		}
	}

	c.Paste(src, 1.0)

	// Scaled to 100x50, centered vertically.
	if img.RGBAAt(50, 50).B == 0 {
		t.Error("Pasted region center not painted")
	}
	if img.RGBAAt(50, 10).A != 0 {
		t.Error("Area above pasted region painted")
	}
}

func TestOnionCompositeLeavesInputsIntact(t *testing.T) {
	prev := image.NewRGBA(image.Rect(0, 0, 10, 10))
	cur := image.NewRGBA(image.Rect(0, 0, 10, 10))
	prev.SetRGBA(1, 1, red)
	cur.SetRGBA(2, 2, red)

	out := OnionComposite(prev, cur)

	if prev.RGBAAt(2, 2).A != 0 {
		t.Error("OnionComposite modified previous frame")
	}
	if out.RGBAAt(2, 2) != red {
		t.Error("Current frame not on top")
	}
	faint := out.RGBAAt(1, 1)
	if faint == red || faint == (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected faint onion pixel, got %v", faint)
	}
}
