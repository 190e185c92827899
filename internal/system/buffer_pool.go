package system

import (
	"image"
	"sync"
)

// BufferPool recycles RGBA buffers by size, so the capture sampler does not
// allocate a fresh frame on every tick. image.Rectangle is comparable and
// keys the per-size pools directly.
type BufferPool struct {
	mu    sync.Mutex
	sizes map[image.Rectangle]*sync.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{sizes: make(map[image.Rectangle]*sync.Pool)}
}

var framePool = NewBufferPool()

// GetImage returns a buffer of the given size from the shared frame pool.
// Contents are whatever the previous user left behind.
func GetImage(rect image.Rectangle) *image.RGBA {
	return framePool.Get(rect)
}

// PutImage hands a buffer back to the shared frame pool.
func PutImage(img *image.RGBA) {
	framePool.Put(img)
}

func (p *BufferPool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.Lock()
	pool := p.sizes[rect]
	if pool == nil {
		pool = &sync.Pool{
			New: func() interface{} { return image.NewRGBA(rect) },
		}
		p.sizes[rect] = pool
	}
	p.mu.Unlock()

	return pool.Get().(*image.RGBA)
}

func (p *BufferPool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.Lock()
	pool := p.sizes[img.Rect]
	p.mu.Unlock()

	// Buffers of a size never requested have no pool to go back to.
	if pool != nil {
		pool.Put(img)
	}
}
