package attrib

import (
	"math"
	"sync/atomic"

	"github.com/achilleasa/voxelgi/types"
)

// Record holds the filtered attributes of a leaf voxel.
type Record struct {
	Albedo   types.Vec3
	Normal   types.Vec3
	Radiance types.Vec3

	// Number of fragments averaged into this record.
	Count uint32
}

// Number of float channels accumulated per voxel.
const channels = 9

// In-memory size of a Record.
const RecordSize = 4*channels + 4

// Add delta to the float32 whose bits are stored at addr. The update is
// lock-free and retries until no other writer intervened.
func atomicAddFloat32(addr *uint32, delta float32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, math.Float32bits(math.Float32frombits(old)+delta)) {
			return
		}
	}
}

// Decode three accumulated channels and divide them by count.
func meanVec3(sums []uint32, count float32) types.Vec3 {
	return types.Vec3{
		math.Float32frombits(sums[0]) / count,
		math.Float32frombits(sums[1]) / count,
		math.Float32frombits(sums[2]) / count,
	}
}
