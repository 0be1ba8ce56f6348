package octree

import (
	"math"

	"github.com/achilleasa/voxelgi/voxel"
)

// Node flags.
const (
	// Set by any fragment that falls inside the node's cell. At the leaf
	// level it doubles as the occupied flag.
	FlagSubdivide uint32 = 1 << iota

	// Set on occupied nodes at the bottom level.
	FlagLeaf
)

// Sentinel values for unset node links.
const (
	NoChild uint32 = math.MaxUint32
	NoVoxel uint32 = math.MaxUint32
)

// A Node is a cell of the octree. Internal nodes point to a block of 8
// children stored contiguously in the node pool; the child for octant o is
// stored at Child+o.
type Node struct {
	Coord voxel.Coord
	Flags uint32

	// Index of the first node in the child block or NoChild.
	Child uint32

	// Slot in the attribute pool for leaf nodes or NoVoxel.
	Voxel uint32
}

// Create an empty node for the given cell.
func newNode(coord voxel.Coord) Node {
	return Node{
		Coord: coord,
		Child: NoChild,
		Voxel: NoVoxel,
	}
}

// Returns true if the node is an occupied leaf.
func (n *Node) IsLeaf() bool {
	return n.Flags&FlagLeaf != 0
}

// Returns true if the node has a child block.
func (n *Node) HasChildren() bool {
	return n.Child != NoChild
}

// Returns true if some fragment was marked into this node's cell.
func (n *Node) Marked() bool {
	return n.Flags&FlagSubdivide != 0
}
