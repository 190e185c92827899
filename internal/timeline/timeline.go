package timeline

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

var (
	ErrEmptyTimeline = errors.New("timeline is empty")
	ErrOutOfRange    = errors.New("frame index out of range")
)

// Timeline is the ordered frame store of an animation. Frames are RGBA
// buffers that never share backing storage: duplication and snapshots always
// perform full pixel copies, so editing one frame can never bleed into
// another.
//
// Indices stay contiguous 0..N-1 after every mutation; the current pointer
// is always a valid index, or -1 while the timeline is empty.
type Timeline struct {
	mu      sync.Mutex
	frames  []*image.RGBA
	current int
	width   int
	height  int
}

func New(width, height int) *Timeline {
	return &Timeline{
		current: -1,
		width:   width,
		height:  height,
	}
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

func (t *Timeline) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

// Current returns the current frame index, or -1 when the timeline is empty.
func (t *Timeline) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// CurrentFrame returns the live buffer of the current frame. Drawing tools
// mutate it in place; there is no separate commit step.
func (t *Timeline) CurrentFrame() *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < 0 {
		return nil
	}
	return t.frames[t.current]
}

func (t *Timeline) Frame(i int) (*image.RGBA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.frames) {
		return nil, ErrOutOfRange
	}
	return t.frames[i], nil
}

// Append adds a blank transparent frame at the end and makes it current.
func (t *Timeline) Append() *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	t.frames = append(t.frames, frame)
	t.current = len(t.frames) - 1
	return frame
}

// AppendImage adds a copy of img at the end and makes it current.
// The image is copied so the caller keeps ownership of its buffer.
func (t *Timeline) AppendImage(img image.Image) *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	draw.Draw(frame, frame.Bounds(), img, img.Bounds().Min, draw.Src)
	t.frames = append(t.frames, frame)
	t.current = len(t.frames) - 1
	return frame
}

// Edit runs fn on the current frame while holding the timeline lock. All
// pixel mutation must go through here: capture snapshots take the same
// lock, so a stroke is never observed half drawn.
func (t *Timeline) Edit(fn func(*image.RGBA)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < 0 {
		return ErrEmptyTimeline
	}
	fn(t.frames[t.current])
	return nil
}

// CompositeCurrentInto flattens the current frame onto white into dst under
// the timeline lock. Reports false when the timeline is empty. The capture
// sampler uses this to snapshot without racing Edit.
func (t *Timeline) CompositeCurrentInto(dst *image.RGBA) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < 0 {
		return false
	}
	CompositeWhiteInto(dst, t.frames[t.current])
	return true
}

// Insert places a blank frame at index i, shifting later frames right, and
// makes it current. i may equal Len to insert at the end.
func (t *Timeline) Insert(i int) (*image.RGBA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i > len(t.frames) {
		return nil, ErrOutOfRange
	}

	frame := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	t.frames = append(t.frames, nil)
	copy(t.frames[i+1:], t.frames[i:])
	t.frames[i] = frame
	t.current = i
	return frame, nil
}

// Duplicate inserts a full pixel copy of the current frame right after it and
// makes the copy current.
func (t *Timeline) Duplicate() (*image.RGBA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return nil, ErrEmptyTimeline
	}

	dup := cloneRGBA(t.frames[t.current])
	at := t.current + 1
	t.frames = append(t.frames, nil)
	copy(t.frames[at+1:], t.frames[at:])
	t.frames[at] = dup
	t.current = at
	return dup, nil
}

// Delete removes the current frame. The previous index becomes current
// (index 0 when the first frame was deleted, -1 when none remain).
func (t *Timeline) Delete() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current < 0 {
		return ErrEmptyTimeline
	}

	i := t.current
	t.frames = append(t.frames[:i], t.frames[i+1:]...)

	if len(t.frames) == 0 {
		t.current = -1
	} else if i > 0 {
		t.current = i - 1
	} else {
		t.current = 0
	}
	return nil
}

func (t *Timeline) SetCurrent(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.frames) {
		return ErrOutOfRange
	}
	t.current = i
	return nil
}

// Move reorders the frame at from to position to. The moved frame stays
// current.
func (t *Timeline) Move(from, to int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.frames)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrOutOfRange
	}
	if from == to {
		return nil
	}

	frame := t.frames[from]
	t.frames = append(t.frames[:from], t.frames[from+1:]...)
	t.frames = append(t.frames, nil)
	copy(t.frames[to+1:], t.frames[to:])
	t.frames[to] = frame
	t.current = to
	return nil
}

// Advance steps the current pointer forward, wrapping to 0 after the last
// frame, and returns the new index with its frame. Playback ticks call this.
func (t *Timeline) Advance() (int, *image.RGBA) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.frames) == 0 {
		return -1, nil
	}
	t.current = (t.current + 1) % len(t.frames)
	return t.current, t.frames[t.current]
}

// Snapshot returns deep copies of all frames in index order. Export jobs
// encode from a snapshot so a recording session drawing into the live
// timeline cannot race the batch walk.
func (t *Timeline) Snapshot() []*image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*image.RGBA, len(t.frames))
	for i, f := range t.frames {
		out[i] = cloneRGBA(f)
	}
	return out
}

// Resize grows or shrinks every frame to width x height, shifting existing
// content by (shiftX, shiftY). Dragging the left or top canvas edge shifts
// the artwork so it stays put visually.
func (t *Timeline) Resize(width, height, shiftX, shiftY int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if width < 100 {
		width = 100
	}
	if height < 100 {
		height = 100
	}
	if width == t.width && height == t.height {
		return
	}

	for i, old := range t.frames {
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		r := old.Bounds().Add(image.Pt(shiftX, shiftY))
		draw.Draw(resized, r, old, old.Bounds().Min, draw.Src)
		t.frames[i] = resized
	}
	t.width = width
	t.height = height
}

// Clear removes the frame's content, leaving it transparent.
func (t *Timeline) Clear(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.frames) {
		return ErrOutOfRange
	}
	blank := image.NewUniform(color.RGBA{})
	draw.Draw(t.frames[i], t.frames[i].Bounds(), blank, image.Point{}, draw.Src)
	return nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
