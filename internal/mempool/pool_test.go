package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{224 * 224 * 3, 150528},
		{299 * 299 * 3, 268288},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.in), "n=%d", tt.in)
	}
}

func TestGetFloat32_LengthAndCapacity(t *testing.T) {
	n := 224 * 224 * 3
	buf := GetFloat32(n)
	require.Len(t, buf, n)
	assert.GreaterOrEqual(t, cap(buf), sizeClass(n))
	PutFloat32(buf)

	again := GetFloat32(n)
	assert.Len(t, again, n)
	PutFloat32(again)
}

func TestPutFloat32_ForeignBuffers(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutFloat32(make([]float32, 10))
		PutFloat32(make([]float32, 1500))
	})

	// A 1500-cap buffer is filed under 1024 and still satisfies a 1024 request.
	buf := GetFloat32(1024)
	assert.Len(t, buf, 1024)
}

func TestBufferPool(t *testing.T) {
	b := GetBuffer()
	b.WriteString("crop")
	PutBuffer(b)

	b2 := GetBuffer()
	assert.Equal(t, 0, b2.Len())
	PutBuffer(b2)
	PutBuffer(nil)
}

func TestGetFloat32_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 50 {
				buf := GetFloat32(n)
				for j := range buf {
					buf[j] = 1
				}
				PutFloat32(buf)
			}
		}(1000 + i*700)
	}
	wg.Wait()
}
