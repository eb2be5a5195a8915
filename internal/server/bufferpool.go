package server

import "sync"

// BufferPool recycles the fixed-size buffers workers read request heads into
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of buffers of exactly size bytes
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Get returns a buffer of the pool's size
func (bp *BufferPool) Get() []byte {
	buf := bp.pool.Get().(*[]byte)
	return (*buf)[:bp.size]
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		// Non-standard size, let GC handle it
		return
	}
	full := buf[:bp.size]
	bp.pool.Put(&full)
}

func (bp *BufferPool) Size() int {
	return bp.size
}
