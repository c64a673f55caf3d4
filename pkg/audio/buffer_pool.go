package audio

import "sync"

// Slice pools for the hot capture/playback paths. Callers must not retain a
// released slice.

var (
	bytesPool   sync.Pool
	int16Pool   sync.Pool
	float32Pool sync.Pool
)

// AcquireBytes returns a byte slice with length size.
func AcquireBytes(size int) []byte {
	if size <= 0 {
		return nil
	}
	if v := bytesPool.Get(); v != nil {
		if buf := v.([]byte); cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// ReleaseBytes puts a byte slice back to the pool.
func ReleaseBytes(buf []byte) {
	if buf != nil {
		bytesPool.Put(buf[:0])
	}
}

// AcquireInt16 returns an int16 slice with length size.
func AcquireInt16(size int) []int16 {
	if size <= 0 {
		return nil
	}
	if v := int16Pool.Get(); v != nil {
		if buf := v.([]int16); cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]int16, size)
}

// ReleaseInt16 puts an int16 slice back to the pool.
func ReleaseInt16(buf []int16) {
	if buf != nil {
		int16Pool.Put(buf[:0])
	}
}

// AcquireFloat32 returns a float32 slice with length size.
func AcquireFloat32(size int) []float32 {
	if size <= 0 {
		return nil
	}
	if v := float32Pool.Get(); v != nil {
		if buf := v.([]float32); cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]float32, size)
}

// ReleaseFloat32 puts a float32 slice back to the pool.
func ReleaseFloat32(buf []float32) {
	if buf != nil {
		float32Pool.Put(buf[:0])
	}
}
