package frame

import (
	"image"
	"sync"
)

// Pool recycles RGB buffers keyed by dimensions to keep GC pressure flat when
// every composed frame has the same canvas size.
type Pool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

func NewPool() *Pool {
	return &Pool{pools: make(map[image.Point]*sync.Pool)}
}

// Get returns a zeroed (black) buffer of the requested size.
func (p *Pool) Get(width, height int) *RGB {
	key := image.Point{X: width, Y: height}
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return New(width, height)
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	f := pool.Get().(*RGB)
	clear(f.Pix)
	return f
}

// Put hands a buffer back. Buffers of a size never requested through Get are
// dropped.
func (p *Pool) Put(f *RGB) {
	if f == nil {
		return
	}
	key := image.Point{X: f.Width, Y: f.Height}
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		pool.Put(f)
	}
}
