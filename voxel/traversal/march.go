package traversal

import (
	"math"

	"github.com/achilleasa/voxelgi/types"
)

// MarchPolicy tunes ray marching. Step sizes are expressed in leaf voxels.
type MarchPolicy struct {
	// Distance between samples inside occupied space.
	StepScale float32 `toml:"step_scale"`

	// Opacity contributed by a single occupied sample.
	VoxelOpacity float32 `toml:"voxel_opacity"`

	// Marching stops once accumulated opacity reaches this value.
	SaturationOpacity float32 `toml:"saturation_opacity"`

	// Jump to the exit face of empty cells instead of stepping through them.
	SkipEmpty bool `toml:"skip_empty"`
}

var DefaultMarchPolicy = MarchPolicy{
	StepScale:         0.5,
	VoxelOpacity:      0.35,
	SaturationOpacity: 0.99,
	SkipEmpty:         true,
}

// Offset past a cell exit face, in leaf voxels.
const exitEpsilon = 1e-3

// March a ray through the tree using the default policy. It returns the
// accumulated opacity and the radiance composited front to back.
func (t *Tree) March(origin, dir types.Vec3, maxDistance float32, maxSteps int) (float32, types.Vec3) {
	return t.MarchWithPolicy(origin, dir, maxDistance, maxSteps, DefaultMarchPolicy)
}

// March a ray through the tree using the given policy.
func (t *Tree) MarchWithPolicy(origin, dir types.Vec3, maxDistance float32, maxSteps int, policy MarchPolicy) (float32, types.Vec3) {
	opacity, radiance, _ := t.march(origin, dir, maxDistance, maxSteps, policy)
	return opacity, radiance
}

// March implementation that also reports the number of steps taken. Each
// loop iteration consumes one step so the loop runs at most maxSteps times.
func (t *Tree) march(origin, dir types.Vec3, maxDistance float32, maxSteps int, policy MarchPolicy) (opacity float32, radiance types.Vec3, steps int) {
	if maxSteps <= 0 || len(t.Nodes) == 0 || !(maxDistance >= 0) {
		return 0, types.Vec3{}, 0
	}

	dir = dir.Normalize()
	if dir.Len() == 0 || !dir.IsFinite() || !origin.IsFinite() {
		return 0, types.Vec3{}, 0
	}

	tEnter, tExit, hit := intersectAABB(origin, dir, t.Volume.Min(), t.Volume.Max())
	if !hit || tExit < 0 {
		return 0, types.Vec3{}, 0
	}

	voxelSize := t.Volume.VoxelSize()
	stepScale := policy.StepScale
	if !(stepScale > 0) {
		stepScale = 1
	}
	step := voxelSize * stepScale
	eps := voxelSize * exitEpsilon
	saturation := policy.SaturationOpacity
	if !(saturation > 0) {
		saturation = 1
	}

	dist := float32(math.Max(float64(tEnter), 0))
	limit := float32(math.Min(float64(maxDistance), float64(tExit)))

	for ; steps < maxSteps && dist <= limit && opacity < saturation; steps++ {
		p := origin.Add(dir.Mul(dist))
		cell := t.Lookup(p)

		switch {
		case cell.Occupied:
			if slot := t.Nodes[cell.Node].Voxel; slot < uint32(len(t.Attributes)) {
				alpha := (1 - opacity) * policy.VoxelOpacity
				radiance = radiance.Add(t.Attributes[slot].Radiance.Mul(alpha))
				opacity += alpha
			}
			dist += step
		case policy.SkipEmpty && cell.Node != NoNode:
			bounds := t.Volume.CellBounds(t.Nodes[cell.Node].Coord)
			dist += cellExitDistance(p, dir, bounds) + eps
		default:
			dist += step
		}
	}

	return opacity, radiance, steps
}

// Intersect a ray with an AABB using the slab method.
func intersectAABB(origin, dir, min, max types.Vec3) (tEnter, tExit float32, hit bool) {
	tEnter = float32(math.Inf(-1))
	tExit = float32(math.Inf(1))
	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < min[axis] || origin[axis] >= max[axis] {
				return 0, 0, false
			}
			continue
		}

		invDir := 1 / dir[axis]
		t0 := (min[axis] - origin[axis]) * invDir
		t1 := (max[axis] - origin[axis]) * invDir
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tEnter {
			tEnter = t0
		}
		if t1 < tExit {
			tExit = t1
		}
	}
	return tEnter, tExit, tEnter <= tExit
}

// Get the distance along dir from p, which lies inside bounds, to the
// nearest exit face.
func cellExitDistance(p, dir types.Vec3, bounds [2]types.Vec3) float32 {
	exit := float32(math.Inf(1))
	for axis := 0; axis < 3; axis++ {
		var d float32
		switch {
		case dir[axis] > 0:
			d = (bounds[1][axis] - p[axis]) / dir[axis]
		case dir[axis] < 0:
			d = (bounds[0][axis] - p[axis]) / dir[axis]
		default:
			continue
		}
		if d < exit {
			exit = d
		}
	}

	if exit < 0 {
		return 0
	}
	return exit
}
