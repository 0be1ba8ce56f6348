package octree

import (
	"sync/atomic"
)

// Pools grow at least by this factor to amortize copies across levels.
const growthFactor = 2

// Allocator is a growable node pool with lock-free bump allocation.
//
// Reserve and ClaimVoxel may be called concurrently from within a pass.
// GrowIfNeeded must only be called between passes; the pass barrier makes
// the published pool visible to every worker of the next pass.
type Allocator struct {
	pool atomic.Pointer[[]Node]

	nodeCount  atomic.Uint32
	voxelCount atomic.Uint32

	maxNodes uint32
}

// Create an allocator with room for initialCapacity nodes that refuses to
// grow beyond maxNodes. A maxNodes value of 0 only limits the pool by the
// range of the node index type.
func NewAllocator(initialCapacity, maxNodes uint32) *Allocator {
	if maxNodes == 0 {
		maxNodes = NoChild - 1
	}
	if initialCapacity == 0 {
		initialCapacity = 1
	}
	if initialCapacity > maxNodes {
		initialCapacity = maxNodes
	}

	pool := make([]Node, initialCapacity)
	a := &Allocator{maxNodes: maxNodes}
	a.pool.Store(&pool)
	return a
}

// Reserve count contiguous node slots and return the index of the first
// one. The returned range is exclusive to the caller. Reserve returns false
// if the range does not fit in the current pool; the counter is still
// advanced so the caller must treat this as fatal.
func (a *Allocator) Reserve(count uint32) (first uint32, ok bool) {
	end := a.nodeCount.Add(count)
	first = end - count
	return first, end >= first && end <= uint32(len(*a.pool.Load()))
}

// Ensure that the pool can hold at least required nodes. Existing node
// contents are copied into the new pool which is then published atomically.
// This method is not safe to call while a pass is running.
func (a *Allocator) GrowIfNeeded(required uint64) error {
	if required > uint64(a.maxNodes) {
		return &CapacityError{Resource: "nodes", Required: required, Limit: uint64(a.maxNodes)}
	}

	cur := *a.pool.Load()
	if required <= uint64(len(cur)) {
		return nil
	}

	newCap := uint64(len(cur)) * growthFactor
	if newCap < required {
		newCap = required
	}
	if newCap > uint64(a.maxNodes) {
		newCap = uint64(a.maxNodes)
	}

	grown := make([]Node, newCap)
	copy(grown, cur[:min(a.NodeCount(), uint32(len(cur)))])
	a.pool.Store(&grown)
	return nil
}

// Claim the next attribute pool slot.
func (a *Allocator) ClaimVoxel() uint32 {
	return a.voxelCount.Add(1) - 1
}

// Get the active pool. Only the first NodeCount entries are allocated.
func (a *Allocator) Pool() []Node {
	return *a.pool.Load()
}

// Get the allocated prefix of the node pool.
func (a *Allocator) Nodes() []Node {
	pool := a.Pool()
	return pool[:min(a.NodeCount(), uint32(len(pool)))]
}

// Get the number of allocated nodes.
func (a *Allocator) NodeCount() uint32 {
	return a.nodeCount.Load()
}

// Get the number of claimed attribute slots.
func (a *Allocator) VoxelCount() uint32 {
	return a.voxelCount.Load()
}

// Get the current pool capacity.
func (a *Allocator) Capacity() uint32 {
	return uint32(len(*a.pool.Load()))
}

// Get the configured node ceiling.
func (a *Allocator) MaxNodes() uint32 {
	return a.maxNodes
}
