package source

import (
	"fmt"
	"image"
	"log"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/animstudio/internal/timeline"
)

// ImportAll appends every frame of src to the timeline, scaled to fit the
// timeline's frame size and centered. Returns the number of frames added.
func ImportAll(tl *timeline.Timeline, src Source) (int, error) {
	w, h := tl.Size()
	count := src.FrameCount()

	for i := 0; i < count; i++ {
		img, err := src.RenderFrame(i)
		if err != nil {
			return i, fmt.Errorf("render frame %d: %w", i, err)
		}
		tl.AppendImage(fitInto(img, w, h))
	}

	log.Printf("[+] Imported %d frames", count)
	return count, nil
}

// fitInto scales img to fit a w x h frame, preserving aspect ratio and
// centering the result on a transparent background.
func fitInto(img image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	sb := img.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return out
	}

	scale := float64(w) / float64(sb.Dx())
	if s := float64(h) / float64(sb.Dy()); s < scale {
		scale = s
	}
	dw := int(float64(sb.Dx()) * scale)
	dh := int(float64(sb.Dy()) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	x := (w - dw) / 2
	y := (h - dh) / 2
	dst := image.Rect(x, y, x+dw, y+dh)
	xdraw.ApproxBiLinear.Scale(out, dst, img, sb, xdraw.Over, nil)
	return out
}
