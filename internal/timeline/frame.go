package timeline

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// CompositeWhite flattens a transparent frame onto a white paper background.
// Exported video and image sequences always ship flattened frames; the
// transparent originals stay in the timeline.
func CompositeWhite(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	CompositeWhiteInto(dst, src)
	return dst
}

// CompositeWhiteInto flattens src onto white into an existing buffer, for
// callers that recycle frame buffers. Every pixel of dst is overwritten.
func CompositeWhiteInto(dst, src *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
}

// Thumbnail scales a frame down to fit maxW x maxH, preserving aspect ratio,
// on a white background. Front ends use these for the timeline strip.
func Thumbnail(src *image.RGBA, maxW, maxH int) *image.RGBA {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw == 0 || sh == 0 {
		return image.NewRGBA(image.Rect(0, 0, maxW, maxH))
	}

	scale := float64(maxW) / float64(sw)
	if s := float64(maxH) / float64(sh); s < scale {
		scale = s
	}
	tw, th := int(float64(sw)*scale), int(float64(sh)*scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
