package voxel

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/achilleasa/voxelgi/types"
)

// The largest supported grid resolution along one axis. Leaf coordinates
// must fit in a uint32 linear id.
const MaxResolution uint32 = 1 << 10

var (
	ErrInvalidResolution = errors.New("voxel: grid resolution must be a power of two")
	ErrInvalidExtent     = errors.New("voxel: volume half-extent must be a positive finite number")
)

// A cubic voxelization volume split into Resolution^3 leaf cells.
type Volume struct {
	Center     types.Vec3 `toml:"center"`
	HalfExtent float32    `toml:"half_extent"`
	Resolution uint32     `toml:"resolution"`
}

// Check that the volume can be voxelized.
func (v Volume) Validate() error {
	if v.Resolution == 0 || v.Resolution&(v.Resolution-1) != 0 || v.Resolution > MaxResolution {
		return fmt.Errorf("%w (got %d, max %d)", ErrInvalidResolution, v.Resolution, MaxResolution)
	}
	if !(v.HalfExtent > 0) || math.IsInf(float64(v.HalfExtent), 0) || !v.Center.IsFinite() {
		return ErrInvalidExtent
	}
	return nil
}

// Get the number of octree levels required to reach leaf resolution. A
// volume with resolution R needs log2(R)+1 levels with level 0 being the root.
func (v Volume) Levels() int {
	return bits.TrailingZeros32(v.Resolution) + 1
}

// Get the world-space edge length of a leaf voxel.
func (v Volume) VoxelSize() float32 {
	return 2 * v.HalfExtent / float32(v.Resolution)
}

// Get the min corner of the volume.
func (v Volume) Min() types.Vec3 {
	return v.Center.Sub(types.Vec3{v.HalfExtent, v.HalfExtent, v.HalfExtent})
}

// Get the max corner of the volume.
func (v Volume) Max() types.Vec3 {
	return v.Center.Add(types.Vec3{v.HalfExtent, v.HalfExtent, v.HalfExtent})
}

// Returns true if p lies inside the volume. The test uses the half-open
// interval [min, max) on every axis so a point on a shared face belongs to
// exactly one side.
func (v Volume) Contains(p types.Vec3) bool {
	min, max := v.Min(), v.Max()
	for axis := 0; axis < 3; axis++ {
		if !(p[axis] >= min[axis] && p[axis] < max[axis]) {
			return false
		}
	}
	return true
}

// Map a world-space position to the coordinates of the leaf cell that
// contains it. Positions that fall outside the grid because of floating
// point error are clamped to the nearest valid cell; clamped reports
// whether that happened.
func (v Volume) VoxelCoord(p types.Vec3) (c Coord, clamped bool) {
	min := v.Min()
	scale := float32(v.Resolution) / (2 * v.HalfExtent)
	last := float32(v.Resolution - 1)

	var cell [3]uint32
	for axis := 0; axis < 3; axis++ {
		f := float32(math.Floor(float64((p[axis] - min[axis]) * scale)))
		switch {
		case f < 0 || math.IsNaN(float64(f)):
			f = 0
			clamped = true
		case f > last:
			f = last
			clamped = true
		}
		cell[axis] = uint32(f)
	}

	return Coord{X: cell[0], Y: cell[1], Z: cell[2], Level: uint8(v.Levels() - 1)}, clamped
}

// Get the world-space bounds of a cell at any octree level.
func (v Volume) CellBounds(c Coord) [2]types.Vec3 {
	cellsPerAxis := float32(uint32(1) << c.Level)
	size := 2 * v.HalfExtent / cellsPerAxis
	min := v.Min().Add(types.Vec3{float32(c.X) * size, float32(c.Y) * size, float32(c.Z) * size})
	return [2]types.Vec3{min, min.Add(types.Vec3{size, size, size})}
}
