package mempool

import (
	"bytes"
	"sync"
)

// Sized pools for tensor buffers and encode scratch space.

var (
	float32Pools sync.Map // key: size class (int), value: *sync.Pool
	bufferPool   = sync.Pool{New: func() any { return new(bytes.Buffer) }}
)

const step = 1024

// sizeClass rounds n up to the next multiple of 1024.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func float32Pool(cls int) *sync.Pool {
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// GetFloat32 returns a []float32 of length n. Contents are not zeroed.
// The caller must hand it back via PutFloat32.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	p := float32Pool(cls)
	if p == nil {
		return make([]float32, n, cls)
	}
	buf, ok := p.Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. Nil is ignored.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	// Buffers that did not come from GetFloat32 land in the class below
	// their capacity so Get never sees a short buffer.
	c := cap(buf)
	cls := c / step * step
	if cls < step {
		return
	}
	if p := float32Pool(cls); p != nil {
		p.Put(buf[:cls]) //nolint:staticcheck // slices are the pooled value
	}
}

// GetBuffer returns an empty bytes.Buffer for encoding.
func GetBuffer() *bytes.Buffer {
	b, ok := bufferPool.Get().(*bytes.Buffer)
	if !ok {
		return new(bytes.Buffer)
	}
	b.Reset()
	return b
}

// PutBuffer returns b to the pool. Very large buffers are dropped.
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > 32<<20 {
		return
	}
	bufferPool.Put(b)
}
