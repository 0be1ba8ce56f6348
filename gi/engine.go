package gi

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/achilleasa/voxelgi/compute"
	"github.com/achilleasa/voxelgi/lighting"
	"github.com/achilleasa/voxelgi/log"
	"github.com/achilleasa/voxelgi/scene"
	"github.com/achilleasa/voxelgi/types"
	"github.com/achilleasa/voxelgi/voxel/attrib"
	"github.com/achilleasa/voxelgi/voxel/fragment"
	"github.com/achilleasa/voxelgi/voxel/octree"
	"github.com/achilleasa/voxelgi/voxel/traversal"
	"github.com/google/uuid"
)

var ErrNoTree = errors.New("gi: no voxel tree has been built")

// A published tree together with the id of the build that produced it.
type snapshot struct {
	tree       *traversal.Tree
	generation uuid.UUID
}

// Engine voxelizes scenes into sparse voxel octrees and answers lighting
// queries against the most recent successful build.
//
// Builds construct a new tree from scratch and publish it only if every
// stage succeeds; a failed build leaves the previous tree in place. Queries
// must not be issued while a build is running.
type Engine struct {
	logger log.Logger
	opts   Options
	device *compute.Device

	active atomic.Pointer[snapshot]
}

// Create a new engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		logger: log.New("gi engine"),
		opts:   opts,
		device: compute.NewDevice("cpu", opts.Workers),
	}
	e.logger.Infof("using device %s", e.device)
	return e, nil
}

// Get the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Voxelize a set of geometry instances. On success the new tree replaces
// the active one.
func (e *Engine) Build(instances []fragment.Instance, light lighting.Source) (*BuildStats, error) {
	e.device.ResetStats()
	stats := &BuildStats{}
	start := time.Now()

	fragments, err := fragment.NewExtractor(e.device, e.opts.Volume, light, e.opts.MaxFragments).Extract(instances)
	if err != nil {
		return nil, e.abort("fragment extraction", err)
	}
	stats.ExtractTime = time.Since(start)

	tick := time.Now()
	builder := octree.NewBuilder(e.device, e.opts.Volume, octree.Options{
		InitialNodes: e.opts.InitialNodes,
		MaxNodes:     e.opts.MaxNodes,
	})
	ctx, err := builder.Build(fragments)
	if err != nil {
		return nil, e.abort("octree build", err)
	}
	stats.BuildTime = time.Since(tick)

	tick = time.Now()
	records, err := attrib.NewResolver(e.device).Resolve(ctx, fragments)
	if err != nil {
		return nil, e.abort("attribute resolution", err)
	}
	stats.ResolveTime = time.Since(tick)

	snap := &snapshot{
		tree:       traversal.NewTree(ctx, records),
		generation: uuid.New(),
	}
	e.active.Store(snap)

	stats.Octree = ctx.Stats()
	stats.Generation = snap.generation
	stats.TotalTime = time.Since(start)
	stats.Kernels = e.device.Stats()
	e.logger.Noticef("published tree %s (%d nodes, %d voxels) in %d ms", snap.generation, stats.Octree.Nodes, stats.Octree.Voxels, stats.TotalTime.Nanoseconds()/1e6)
	return stats, nil
}

func (e *Engine) abort(stage string, err error) error {
	if e.active.Load() != nil {
		e.logger.Warningf("%s failed; keeping previous tree", stage)
	}
	return fmt.Errorf("gi: %s failed: %w", stage, err)
}

// Sample the scene meshes and voxelize them. Samples are spaced so that
// each leaf voxel edge receives Options.SampleDensity samples in world space.
// Sampling stops with ErrTooManyFragments before any samples are generated
// once the sample total would exceed Options.MaxFragments.
func (e *Engine) BuildScene(sc *scene.Scene, light lighting.Source) (*BuildStats, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	worldSpacing := e.opts.Volume.VoxelSize() / e.opts.SampleDensity
	var instances []fragment.Instance
	totalSamples := 0
	for instIndex, inst := range sc.Instances {
		spacing := worldSpacing
		if scale := inst.Transform.MaxScale(); scale > 0 {
			spacing /= scale
		}

		// Every sample may become a fragment so the fragment limit also
		// bounds the samples held in memory.
		mesh := &sc.Meshes[inst.Mesh]
		totalSamples += mesh.SampleCount(spacing)
		if e.opts.MaxFragments > 0 && totalSamples > e.opts.MaxFragments {
			err := fmt.Errorf("%w (instance %d raises surface samples to %d, limit %d)", fragment.ErrTooManyFragments, instIndex, totalSamples, e.opts.MaxFragments)
			return nil, e.abort("scene sampling", err)
		}

		// Split samples by material so each fragment instance binds one.
		byMaterial := make([][]scene.SurfaceSample, len(sc.Materials))
		for _, sample := range mesh.Sample(spacing) {
			byMaterial[sample.Material] = append(byMaterial[sample.Material], sample)
		}

		for matIndex, samples := range byMaterial {
			if len(samples) == 0 {
				continue
			}
			instances = append(instances, fragment.Instance{
				Samples:   samples,
				Transform: inst.Transform,
				Material:  &sc.Materials[matIndex],
			})
		}
	}

	e.logger.Infof("sampled %d scene instances into %d fragment sources", len(sc.Instances), len(instances))
	return e.Build(instances, light)
}

// Get the active tree or nil if no build has succeeded yet.
func (e *Engine) Tree() *traversal.Tree {
	if snap := e.active.Load(); snap != nil {
		return snap.tree
	}
	return nil
}

// Get the id of the build that produced the active tree.
func (e *Engine) Generation() (uuid.UUID, error) {
	snap := e.active.Load()
	if snap == nil {
		return uuid.Nil, ErrNoTree
	}
	return snap.generation, nil
}

// Publish a tree loaded from elsewhere, e.g. a snapshot on disk.
func (e *Engine) Load(tree *traversal.Tree, generation uuid.UUID) {
	e.active.Store(&snapshot{tree: tree, generation: generation})
}

// Get the voxel attributes at p.
func (e *Engine) Sample(p types.Vec3) (attrib.Record, bool) {
	tree := e.Tree()
	if tree == nil {
		return attrib.Record{}, false
	}
	return tree.Sample(p)
}

// March a ray through the active tree using the configured policy.
func (e *Engine) March(origin, dir types.Vec3, maxDistance float32, maxSteps int) (float32, types.Vec3) {
	tree := e.Tree()
	if tree == nil {
		return 0, types.Vec3{}
	}
	return tree.MarchWithPolicy(origin, dir, maxDistance, maxSteps, e.opts.March)
}

// Get the node and voxel counts of the active tree.
func (e *Engine) Counts() (nodes, voxels uint32) {
	tree := e.Tree()
	if tree == nil {
		return 0, 0
	}
	return tree.Counts()
}
