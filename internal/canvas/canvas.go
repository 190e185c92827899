package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"

	xdraw "golang.org/x/image/draw"
)

type Tool string

const (
	ToolPencil Tool = "pencil"
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
	ToolSpray  Tool = "spray"
	ToolFill   Tool = "fill"
)

// Settings mirror the tool panel: active tool, color, stroke size, opacity
// percentage and the waver ("drunkenness") jitter amplitude in pixels.
type Settings struct {
	Tool    Tool
	Color   color.RGBA
	Size    int
	Opacity int
	Waver   int
}

func DefaultSettings() Settings {
	return Settings{
		Tool:    ToolBrush,
		Color:   color.RGBA{0, 0, 0, 255},
		Size:    15,
		Opacity: 100,
		Waver:   0,
	}
}

// Canvas applies drawing operations to a frame buffer in place. It holds no
// pixel data of its own; the timeline owns the frame.
type Canvas struct {
	img      *image.RGBA
	settings *Settings
	rng      *rand.Rand
}

func New(img *image.RGBA, settings *Settings) *Canvas {
	return &Canvas{
		img:      img,
		settings: settings,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
}

// Retarget points the canvas at a different frame buffer, e.g. after the
// current frame changed.
func (c *Canvas) Retarget(img *image.RGBA) {
	c.img = img
}

// DrawPoint applies the active tool at a single position.
func (c *Canvas) DrawPoint(x, y float64) {
	switch c.settings.Tool {
	case ToolSpray:
		c.spray(x, y)
	case ToolFill:
		c.Fill(int(x), int(y))
	default:
		px, py := c.waver(x, y)
		c.stamp(px, py)
	}
}

// DrawLine applies the active tool along the segment from (x0,y0) to (x1,y1).
// Stroke tools stamp along the line; spray only paints at the end point, like
// dragging a can.
func (c *Canvas) DrawLine(x0, y0, x1, y1 float64) {
	if c.settings.Tool == ToolSpray {
		c.spray(x1, y1)
		return
	}
	if c.settings.Tool == ToolFill {
		return
	}

	x0, y0 = c.waver(x0, y0)
	x1, y1 = c.waver(x1, y1)

	dist := math.Hypot(x1-x0, y1-y0)
	steps := int(dist) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.stamp(x0+(x1-x0)*t, y0+(y1-y0)*t)
	}
}

// stamp paints one brush footprint: a filled disc for the brush and eraser,
// a square for the pencil.
func (c *Canvas) stamp(cx, cy float64) {
	size := c.settings.Size
	if size < 1 {
		size = 1
	}
	r := float64(size) / 2

	minX := int(cx - r)
	maxX := int(cx + r)
	minY := int(cy - r)
	maxY := int(cy + r)

	square := c.settings.Tool == ToolPencil
	erase := c.settings.Tool == ToolEraser
	src := c.paintColor()

	b := c.img.Bounds()
	for y := minY; y <= maxY; y++ {
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for x := minX; x <= maxX; x++ {
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			if !square && math.Hypot(float64(x)-cx, float64(y)-cy) > r {
				continue
			}
			if erase {
				c.img.SetRGBA(x, y, color.RGBA{})
			} else {
				blend(c.img, x, y, src)
			}
		}
	}
}

// spray scatters dots around the center. Density and radius scale with the
// brush size; each dot is a quarter-size stamp.
func (c *Canvas) spray(cx, cy float64) {
	size := c.settings.Size
	if size < 1 {
		size = 1
	}
	density := size * 2
	radius := float64(size) * 1.5
	dot := size / 4
	if dot < 1 {
		dot = 1
	}
	src := c.paintColor()

	b := c.img.Bounds()
	for i := 0; i < density; i++ {
		x := int(cx + (c.rng.Float64()-0.5)*radius*2)
		y := int(cy + (c.rng.Float64()-0.5)*radius*2)
		for dy := 0; dy < dot; dy++ {
			for dx := 0; dx < dot; dx++ {
				px, py := x+dx, y+dy
				if px >= b.Min.X && px < b.Max.X && py >= b.Min.Y && py < b.Max.Y {
					blend(c.img, px, py, src)
				}
			}
		}
	}
}

// Paste scales an image to fit the canvas, preserving aspect ratio, and
// composites it centered at the given opacity (0..1).
func (c *Canvas) Paste(src image.Image, opacity float64) {
	cb := c.img.Bounds()
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}

	scale := float64(cb.Dx()) / float64(sb.Dx())
	if s := float64(cb.Dy()) / float64(sb.Dy()); s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, sb, xdraw.Over, nil)

	x := cb.Min.X + (cb.Dx()-w)/2
	y := cb.Min.Y + (cb.Dy()-h)/2
	target := image.Rect(x, y, x+w, y+h)

	if opacity >= 1 {
		draw.Draw(c.img, target, scaled, image.Point{}, draw.Over)
		return
	}

	alpha := uint8(opacity * 255)
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(c.img, target, scaled, image.Point{}, mask, image.Point{}, draw.Over)
}

func (c *Canvas) paintColor() color.RGBA {
	col := c.settings.Color
	op := c.settings.Opacity
	if op < 0 {
		op = 0
	}
	if op > 100 {
		op = 100
	}
	col.A = uint8(int(col.A) * op / 100)
	return col
}

// waver applies the "drunkenness" jitter to a stroke point.
func (c *Canvas) waver(x, y float64) (float64, float64) {
	w := float64(c.settings.Waver)
	if w == 0 {
		return x, y
	}
	return x + (c.rng.Float64()-0.5)*w, y + (c.rng.Float64()-0.5)*w
}

// blend composites src over the pixel at (x,y) with source-over alpha.
func blend(img *image.RGBA, x, y int, src color.RGBA) {
	if src.A == 255 {
		img.SetRGBA(x, y, src)
		return
	}
	dst := img.RGBAAt(x, y)
	sa := uint32(src.A)
	da := uint32(dst.A)
	outA := sa + da*(255-sa)/255
	if outA == 0 {
		img.SetRGBA(x, y, color.RGBA{})
		return
	}
	blendCh := func(s, d uint8) uint8 {
		v := (uint32(s)*sa + uint32(d)*da*(255-sa)/255) / outA
		return uint8(v)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: blendCh(src.R, dst.R),
		G: blendCh(src.G, dst.G),
		B: blendCh(src.B, dst.B),
		A: uint8(outA),
	})
}

// OnionComposite renders the previous frame faintly underneath the current
// one for display. Neither input is modified.
func OnionComposite(prev, cur *image.RGBA) *image.RGBA {
	out := image.NewRGBA(cur.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if prev != nil {
		mask := image.NewUniform(color.Alpha{A: 76}) // ~0.3 opacity
		draw.DrawMask(out, out.Bounds(), prev, prev.Bounds().Min, mask, image.Point{}, draw.Over)
	}
	draw.Draw(out, out.Bounds(), cur, cur.Bounds().Min, draw.Over)
	return out
}
