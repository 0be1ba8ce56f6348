package octree

import (
	"sync/atomic"
	"time"

	"github.com/achilleasa/voxelgi/compute"
	"github.com/achilleasa/voxelgi/log"
	"github.com/achilleasa/voxelgi/voxel"
)

const defaultInitialNodes = 1 << 12

// Builder options.
type Options struct {
	// Initial node pool capacity. If 0 a default value is used.
	InitialNodes uint32

	// Absolute ceiling for the node pool. Builds requiring more nodes
	// fail with a CapacityError. If 0 the pool is only limited by the
	// node index range.
	MaxNodes uint32
}

// Builder constructs sparse voxel octrees from fragment lists using one
// level-synchronous sequence of passes per tree level.
type Builder struct {
	logger log.Logger
	device *compute.Device
	volume voxel.Volume
	opts   Options
}

// Create a new builder for the given volume.
func NewBuilder(dev *compute.Device, vol voxel.Volume, opts Options) *Builder {
	if opts.InitialNodes == 0 {
		opts.InitialNodes = defaultInitialNodes
	}

	return &Builder{
		logger: log.New("octree builder"),
		device: dev,
		volume: vol,
		opts:   opts,
	}
}

// Build an octree containing every fragment. Each level l runs the
// following passes separated by barriers:
//   - mark: every fragment flags the level l node containing it.
//   - count: flagged level l nodes are counted (skipped at the bottom level).
//   - grow: the pool is grown to fit 8 children per flagged node.
//   - allocate: flagged nodes reserve a child block or become leaves.
//
// The returned context owns a fresh node pool; nothing outside of it is
// modified. If the node ceiling is exceeded the build is aborted with a
// CapacityError.
func (b *Builder) Build(fragments []voxel.Fragment) (*BuildContext, error) {
	if err := b.volume.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	levels := b.volume.Levels()
	b.logger.Noticef("building octree for %d fragments (resolution %d, %d levels)", len(fragments), b.volume.Resolution, levels)

	ctx := newBuildContext(b.volume, NewAllocator(b.opts.InitialNodes, b.opts.MaxNodes), len(fragments))

	// Allocate root
	rootIndex, ok := ctx.alloc.Reserve(1)
	if !ok {
		return nil, &CapacityError{Resource: "nodes", Required: 1, Limit: uint64(ctx.alloc.MaxNodes())}
	}
	ctx.alloc.Pool()[rootIndex] = newNode(voxel.Coord{})
	ctx.levelStart = append(ctx.levelStart, ctx.alloc.NodeCount())

	if err := b.locateFragments(ctx, fragments); err != nil {
		return nil, err
	}

	for level := 0; level < levels; level++ {
		if err := b.processLevel(ctx, level, level == levels-1); err != nil {
			b.logger.Errorf("aborting build at level %d: %v", level, err)
			return nil, err
		}
	}

	ctx.stats = BuildStats{
		Levels:           levels,
		Nodes:            ctx.alloc.NodeCount(),
		Voxels:           ctx.alloc.VoxelCount(),
		Fragments:        len(fragments),
		ClampedFragments: int(ctx.clampedFragments.Load()),
		NodesPerLevel:    make([]uint32, levels),
		Time:             time.Since(start),
	}
	for level := 0; level < levels; level++ {
		first, end := ctx.LevelRange(level)
		ctx.stats.NodesPerLevel[level] = end - first
	}

	b.logger.Noticef("built octree with %d nodes and %d voxels in %d ms", ctx.stats.Nodes, ctx.stats.Voxels, ctx.stats.Time.Nanoseconds()/1e6)
	return ctx, nil
}

// Map each fragment to its leaf cell. Fragments that land outside the
// grid due to rounding are clamped to the nearest cell.
func (b *Builder) locateFragments(ctx *BuildContext, fragments []voxel.Fragment) error {
	_, err := b.device.Kernel("octree_locate", func(i int) {
		coord, clamped := ctx.Volume.VoxelCoord(fragments[i].Position)
		if clamped {
			ctx.clampedFragments.Add(1)
		}
		ctx.fragCoord[i] = coord
	}).Exec1D(0, len(fragments), 0)
	if err != nil {
		return err
	}

	if clamped := ctx.clampedFragments.Load(); clamped > 0 {
		b.logger.Debugf("clamped %d fragment(s) outside the voxel grid to the nearest cell", clamped)
	}
	return nil
}

// Run the mark, count, grow and allocate passes for a level. On return the
// level start offset for the next level has been recorded.
func (b *Builder) processLevel(ctx *BuildContext, level int, lastLevel bool) error {
	var markTime, countTime, allocTime time.Duration
	var err error

	// Mark
	pool := ctx.alloc.Pool()
	markTime, err = b.device.Kernel("octree_mark", func(i int) {
		nodeIndex := ctx.fragCursor[i]
		if level > 0 {
			nodeIndex = pool[nodeIndex].Child + ctx.fragCoord[i].Octant(uint8(level-1))
			ctx.fragCursor[i] = nodeIndex
		}

		// Concurrent writers all set the same bit.
		atomic.OrUint32(&pool[nodeIndex].Flags, FlagSubdivide)
	}).Exec1D(0, len(ctx.fragCursor), 0)
	if err != nil {
		return err
	}

	levelFirst, levelEnd := ctx.LevelRange(level)
	levelSize := int(levelEnd - levelFirst)

	ctx.subdivisions.Store(0)
	if !lastLevel {
		// Count
		countTime, err = b.device.Kernel("octree_count", func(i int) {
			if pool[levelFirst+uint32(i)].Flags&FlagSubdivide != 0 {
				ctx.subdivisions.Add(1)
			}
		}).Exec1D(0, levelSize, 0)
		if err != nil {
			return err
		}

		// Grow
		required := uint64(ctx.alloc.NodeCount()) + 8*uint64(ctx.subdivisions.Load())
		if err = ctx.alloc.GrowIfNeeded(required); err != nil {
			return err
		}
		pool = ctx.alloc.Pool()
	}

	// Allocate
	var exhausted atomic.Bool
	allocTime, err = b.device.Kernel("octree_allocate", func(i int) {
		node := &pool[levelFirst+uint32(i)]
		if node.Flags&FlagSubdivide == 0 {
			return
		}

		// Each node is visited by exactly one work item so the voxel
		// counter is advanced exactly once per leaf.
		if lastLevel {
			node.Flags |= FlagLeaf
			node.Voxel = ctx.alloc.ClaimVoxel()
			return
		}

		first, ok := ctx.alloc.Reserve(8)
		if !ok {
			exhausted.Store(true)
			return
		}
		for octant := uint32(0); octant < 8; octant++ {
			pool[first+octant] = newNode(node.Coord.Child(octant))
		}
		node.Child = first
		node.Flags &^= FlagSubdivide
	}).Exec1D(0, levelSize, 0)
	if err != nil {
		return err
	}
	if exhausted.Load() {
		return ErrPoolExhausted
	}

	if !lastLevel {
		ctx.levelStart = append(ctx.levelStart, ctx.alloc.NodeCount())
	}

	b.logger.Debugf(
		"level %d: %d nodes, %d subdivided (mark: %s, count: %s, allocate: %s)",
		level, levelSize, ctx.subdivisions.Load(), markTime, countTime, allocTime,
	)
	return nil
}
