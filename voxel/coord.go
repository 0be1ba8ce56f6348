package voxel

import "fmt"

// Coord identifies an octree cell. At level l the grid has 2^l cells per
// axis; X, Y and Z index that grid.
type Coord struct {
	X, Y, Z uint32
	Level   uint8
}

// Get the coordinates of this cell's ancestor at the given level. Calling
// Ancestor with a level greater than c.Level returns c.
func (c Coord) Ancestor(level uint8) Coord {
	if level >= c.Level {
		return c
	}
	shift := c.Level - level
	return Coord{X: c.X >> shift, Y: c.Y >> shift, Z: c.Z >> shift, Level: level}
}

// Get the coordinates of the child cell in the given octant. Octant bits
// select the upper half along x (bit 0), y (bit 1) and z (bit 2).
func (c Coord) Child(octant uint32) Coord {
	return Coord{
		X:     c.X<<1 | octant&1,
		Y:     c.Y<<1 | (octant>>1)&1,
		Z:     c.Z<<1 | (octant>>2)&1,
		Level: c.Level + 1,
	}
}

// Get the octant of the level+1 cell containing this cell, relative to its
// ancestor at level. The receiver must be deeper than level.
func (c Coord) Octant(level uint8) uint32 {
	shift := c.Level - level - 1
	return (c.X>>shift)&1 | ((c.Y>>shift)&1)<<1 | ((c.Z>>shift)&1)<<2
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d, %d @ %d)", c.X, c.Y, c.Z, c.Level)
}
