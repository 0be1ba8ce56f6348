package traversal

import (
	"github.com/achilleasa/voxelgi/types"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/attrib"
	"github.com/achilleasa/voxelgi/voxel/octree"
)

// NoNode is reported by Lookup for positions outside the tree.
const NoNode = octree.NoChild

// Tree is a frozen octree snapshot that answers point and ray queries.
// Trees are never mutated so queries can run concurrently.
type Tree struct {
	Volume     voxel.Volume
	Nodes      []octree.Node
	Attributes []attrib.Record
}

// The result of a point lookup.
type Hit struct {
	// Index of the deepest node containing the point or NoNode.
	Node uint32

	// Level of that node; -1 if the point is outside the tree.
	Level int

	// True if Node is an occupied leaf.
	Occupied bool
}

// Create a tree from a finished build and its resolved attributes.
func NewTree(ctx *octree.BuildContext, records []attrib.Record) *Tree {
	return &Tree{
		Volume:     ctx.Volume,
		Nodes:      ctx.Nodes(),
		Attributes: records,
	}
}

// Get the number of nodes and voxels in the tree.
func (t *Tree) Counts() (nodes, voxels uint32) {
	return uint32(len(t.Nodes)), uint32(len(t.Attributes))
}

// Find the deepest node whose cell contains p. The descent stops at a leaf
// or at a node without children and never takes more than Volume.Levels()
// iterations.
func (t *Tree) Lookup(p types.Vec3) Hit {
	miss := Hit{Node: NoNode, Level: -1}
	if len(t.Nodes) == 0 || !t.Volume.Contains(p) {
		return miss
	}

	coord, _ := t.Volume.VoxelCoord(p)
	levels := t.Volume.Levels()
	nodeIndex := uint32(0)
	for level := 0; level < levels; level++ {
		node := &t.Nodes[nodeIndex]
		if node.IsLeaf() {
			return Hit{Node: nodeIndex, Level: level, Occupied: true}
		}
		if !node.HasChildren() || level == levels-1 {
			return Hit{Node: nodeIndex, Level: level}
		}

		nodeIndex = node.Child + coord.Octant(uint8(level))
		if nodeIndex >= uint32(len(t.Nodes)) {
			return miss
		}
	}

	return miss
}

// Get the attributes of the voxel containing p. The second return value
// is false if the voxel is empty or p lies outside the volume.
func (t *Tree) Sample(p types.Vec3) (attrib.Record, bool) {
	hit := t.Lookup(p)
	if !hit.Occupied {
		return attrib.Record{}, false
	}

	slot := t.Nodes[hit.Node].Voxel
	if slot >= uint32(len(t.Attributes)) {
		return attrib.Record{}, false
	}
	return t.Attributes[slot], true
}
