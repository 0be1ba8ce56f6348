package attrib

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/achilleasa/voxelgi/compute"
	"github.com/achilleasa/voxelgi/log"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/octree"
)

var (
	ErrFragmentMismatch = errors.New("attrib: fragment list does not match the octree build")
	ErrOrphanFragment   = errors.New("attrib: fragment mapped to a node that is not a leaf")
	ErrEmptyLeaf        = errors.New("attrib: leaf voxel has no fragments")
)

// Resolver averages fragment attributes into one record per leaf voxel.
type Resolver struct {
	logger log.Logger
	device *compute.Device
}

// Create a new resolver.
func NewResolver(dev *compute.Device) *Resolver {
	return &Resolver{
		logger: log.New("attribute resolver"),
		device: dev,
	}
}

// Accumulate the attributes of each fragment into its leaf and resolve the
// sums into averages. The returned slice is indexed by the leaf Voxel slot.
//
// Sums are built with atomic float adds so the order in which fragments
// are added depends on scheduling; results are deterministic up to float
// rounding of that order.
func (r *Resolver) Resolve(ctx *octree.BuildContext, fragments []voxel.Fragment) ([]Record, error) {
	if len(fragments) != ctx.FragmentCount() {
		return nil, fmt.Errorf("%w (got %d fragments, octree built from %d)", ErrFragmentMismatch, len(fragments), ctx.FragmentCount())
	}

	start := time.Now()
	nodes := ctx.Nodes()
	voxelCount := int(ctx.Allocator().VoxelCount())

	// Accumulation buffers are indexed by leaf slot and start zeroed.
	sums := make([]uint32, voxelCount*channels)
	counts := make([]uint32, voxelCount)

	var orphans atomic.Uint32
	accumTime, err := r.device.Kernel("attrib_accumulate", func(i int) {
		leaf := &nodes[ctx.FragmentLeaf(i)]
		if !leaf.IsLeaf() {
			orphans.Add(1)
			return
		}

		frag := &fragments[i]
		slot := sums[int(leaf.Voxel)*channels : int(leaf.Voxel+1)*channels]
		for axis := 0; axis < 3; axis++ {
			atomicAddFloat32(&slot[axis], frag.Albedo[axis])
			atomicAddFloat32(&slot[3+axis], frag.Normal[axis])
			atomicAddFloat32(&slot[6+axis], frag.Radiance[axis])
		}
		atomic.AddUint32(&counts[leaf.Voxel], 1)
	}).Exec1D(0, len(fragments), 0)
	if err != nil {
		return nil, err
	}
	if n := orphans.Load(); n != 0 {
		return nil, fmt.Errorf("%w (%d fragments)", ErrOrphanFragment, n)
	}

	records := make([]Record, voxelCount)
	if voxelCount == 0 {
		return records, nil
	}

	var emptyLeaves atomic.Uint32
	leafFirst, leafEnd := ctx.LevelRange(ctx.Volume.Levels() - 1)
	resolveTime, err := r.device.Kernel("attrib_resolve", func(i int) {
		leaf := &nodes[leafFirst+uint32(i)]
		if !leaf.IsLeaf() {
			return
		}

		count := counts[leaf.Voxel]
		if count == 0 {
			emptyLeaves.Add(1)
			return
		}

		slot := sums[int(leaf.Voxel)*channels:]
		records[leaf.Voxel] = Record{
			Albedo:   meanVec3(slot[0:3], float32(count)),
			Normal:   meanVec3(slot[3:6], float32(count)),
			Radiance: meanVec3(slot[6:9], float32(count)),
			Count:    count,
		}
	}).Exec1D(0, int(leafEnd-leafFirst), 0)
	if err != nil {
		return nil, err
	}
	if n := emptyLeaves.Load(); n != 0 {
		return nil, fmt.Errorf("%w (%d leaves)", ErrEmptyLeaf, n)
	}

	r.logger.Infof(
		"resolved %d voxels from %d fragments in %d ms (accumulate: %s, resolve: %s)",
		voxelCount, len(fragments), time.Since(start).Nanoseconds()/1e6, accumTime, resolveTime,
	)
	return records, nil
}
