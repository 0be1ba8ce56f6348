package octree

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/achilleasa/voxelgi/voxel"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Statistics for a completed build.
type BuildStats struct {
	Levels           int
	Nodes            uint32
	Voxels           uint32
	Fragments        int
	ClampedFragments int

	// Number of nodes allocated at each level.
	NodesPerLevel []uint32

	Time time.Duration
}

// Render stats as a table.
func (s BuildStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Level", "Nodes", "Size"})
	for level, count := range s.NodesPerLevel {
		table.Append([]string{fmt.Sprint(level), humanize.Comma(int64(count)), humanize.IBytes(uint64(count) * NodeSize)})
	}
	table.SetFooter([]string{
		fmt.Sprintf("%d voxels", s.Voxels),
		humanize.Comma(int64(s.Nodes)),
		humanize.IBytes(uint64(s.Nodes) * NodeSize),
	})
	table.Render()
	return buf.String()
}

// In-memory size of a Node.
const NodeSize = 4*3 + 4 + 4*3

// BuildContext owns all state for a single octree build: the node pool and
// its counters, the per-fragment node cursors and the level offsets. A
// context is never shared between builds.
type BuildContext struct {
	Volume voxel.Volume

	alloc *Allocator

	// The node each fragment was marked into at the most recently
	// processed level. After the build it points to the fragment's leaf.
	fragCursor []uint32

	// Leaf cell coordinates for each fragment.
	fragCoord []voxel.Coord

	// Nodes of level l occupy [levelStart[l], levelStart[l+1]).
	levelStart []uint32

	// Transient counter reset at every level.
	subdivisions atomic.Uint32

	clampedFragments atomic.Uint32

	stats BuildStats
}

func newBuildContext(vol voxel.Volume, alloc *Allocator, fragmentCount int) *BuildContext {
	return &BuildContext{
		Volume:     vol,
		alloc:      alloc,
		fragCursor: make([]uint32, fragmentCount),
		fragCoord:  make([]voxel.Coord, fragmentCount),
		levelStart: make([]uint32, 1, vol.Levels()+1),
	}
}

// Get the node allocator.
func (ctx *BuildContext) Allocator() *Allocator {
	return ctx.alloc
}

// Get the allocated nodes.
func (ctx *BuildContext) Nodes() []Node {
	return ctx.alloc.Nodes()
}

// Get the index of the leaf node that fragment i was assigned to.
func (ctx *BuildContext) FragmentLeaf(i int) uint32 {
	return ctx.fragCursor[i]
}

// Get the number of fragments the tree was built from.
func (ctx *BuildContext) FragmentCount() int {
	return len(ctx.fragCursor)
}

// Get the node index range [first, end) for a processed level.
func (ctx *BuildContext) LevelRange(level int) (first, end uint32) {
	return ctx.levelStart[level], ctx.levelStart[level+1]
}

// Get the build statistics.
func (ctx *BuildContext) Stats() BuildStats {
	return ctx.stats
}
