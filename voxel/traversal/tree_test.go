package traversal

import (
	"math"
	"math/rand"
	"testing"

	"github.com/achilleasa/voxelgi/compute"
	"github.com/achilleasa/voxelgi/types"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/attrib"
	"github.com/achilleasa/voxelgi/voxel/octree"
)

func buildTree(t *testing.T, vol voxel.Volume, fragments []voxel.Fragment) *Tree {
	dev := compute.NewDevice("cpu", 4)
	ctx, err := octree.NewBuilder(dev, vol, octree.Options{}).Build(fragments)
	if err != nil {
		t.Fatal(err)
	}
	records, err := attrib.NewResolver(dev).Resolve(ctx, fragments)
	if err != nil {
		t.Fatal(err)
	}
	return NewTree(ctx, records)
}

// A 16^3 volume with unit voxels and a single occupied voxel at cell (15, 0, 0).
func cornerTree(t *testing.T) *Tree {
	vol := voxel.Volume{HalfExtent: 8, Resolution: 16}
	return buildTree(t, vol, []voxel.Fragment{{
		Position: types.Vec3{7.5, -7.5, -7.5},
		Albedo:   types.Vec3{1, 1, 1},
		Radiance: types.Vec3{1, 0.5, 0.25},
	}})
}

func TestSampleEmptyTree(t *testing.T) {
	tree := buildTree(t, voxel.Volume{HalfExtent: 1, Resolution: 8}, nil)

	if nodes, voxels := tree.Counts(); nodes != 1 || voxels != 0 {
		t.Fatalf("expected 1 node and 0 voxels; got %d and %d", nodes, voxels)
	}

	points := []types.Vec3{{0, 0, 0}, {-1, -1, -1}, {0.99, 0.5, -0.3}, {5, 5, 5}}
	for index, p := range points {
		if _, ok := tree.Sample(p); ok {
			t.Fatalf("[spec %d] expected empty sample at %v", index, p)
		}
	}

	if opacity, radiance := tree.March(types.Vec3{-2, 0, 0}, types.Vec3{1, 0, 0}, 10, 100); opacity != 0 || radiance != (types.Vec3{}) {
		t.Fatalf("expected empty march result; got %v, %v", opacity, radiance)
	}
}

func TestSampleAndLookup(t *testing.T) {
	tree := cornerTree(t)

	type spec struct {
		p        types.Vec3
		expFound bool
		expLevel int
	}
	specs := []spec{
		{types.Vec3{7.5, -7.5, -7.5}, true, 4},
		{types.Vec3{7.01, -7.99, -7.01}, true, 4},
		// Sibling leaf cell
		{types.Vec3{6.5, -7.5, -7.5}, false, 4},
		// Empty level 1 octant
		{types.Vec3{-4, -4, -4}, false, 1},
		// Upper bound is exclusive
		{types.Vec3{8, -7.5, -7.5}, false, -1},
		{types.Vec3{float32(math.NaN()), 0, 0}, false, -1},
	}

	for index, s := range specs {
		rec, found := tree.Sample(s.p)
		if found != s.expFound {
			t.Fatalf("[spec %d] expected found to be %t; got %t", index, s.expFound, found)
		}
		if found && rec.Radiance != (types.Vec3{1, 0.5, 0.25}) {
			t.Fatalf("[spec %d] expected voxel radiance (1, 0.5, 0.25); got %v", index, rec.Radiance)
		}

		if hit := tree.Lookup(s.p); hit.Level != s.expLevel || hit.Occupied != s.expFound {
			t.Fatalf("[spec %d] expected lookup to stop at level %d (occupied %t); got %+v", index, s.expLevel, s.expFound, hit)
		}
	}
}

func TestSampleIsIdempotent(t *testing.T) {
	vol := voxel.Volume{HalfExtent: 2, Resolution: 32}
	rng := rand.New(rand.NewSource(3))
	fragments := make([]voxel.Fragment, 2000)
	for index := range fragments {
		fragments[index] = voxel.Fragment{
			Position: types.Vec3{rng.Float32()*4 - 2, rng.Float32() - 0.5, rng.Float32()*4 - 2},
			Albedo:   types.Vec3{rng.Float32(), rng.Float32(), rng.Float32()},
		}
	}
	tree := buildTree(t, vol, fragments)

	for i := 0; i < 1000; i++ {
		p := types.Vec3{rng.Float32()*5 - 2.5, rng.Float32()*5 - 2.5, rng.Float32()*5 - 2.5}
		rec1, ok1 := tree.Sample(p)
		rec2, ok2 := tree.Sample(p)
		if rec1 != rec2 || ok1 != ok2 {
			t.Fatalf("expected identical samples at %v; got %+v (%t) and %+v (%t)", p, rec1, ok1, rec2, ok2)
		}
	}

	// Every fragment position samples an occupied voxel
	for index, frag := range fragments {
		if _, ok := tree.Sample(frag.Position); !ok {
			t.Fatalf("expected fragment %d position %v to be occupied", index, frag.Position)
		}
	}
}

func TestMarchHitsVoxel(t *testing.T) {
	tree := cornerTree(t)

	opacity, radiance := tree.March(types.Vec3{-10, -7.5, -7.5}, types.Vec3{2, 0, 0}, 100, 100)
	if opacity <= 0 || opacity >= 1 {
		t.Fatalf("expected partial opacity; got %v", opacity)
	}
	if radiance[0] <= 0 || radiance[0] <= radiance[1] || radiance[1] <= radiance[2] {
		t.Fatalf("expected radiance to follow the voxel color; got %v", radiance)
	}

	// Stop before reaching the voxel
	if opacity, _ = tree.March(types.Vec3{-10, -7.5, -7.5}, types.Vec3{1, 0, 0}, 15, 100); opacity != 0 {
		t.Fatalf("expected zero opacity before the voxel; got %v", opacity)
	}

	// Miss the volume
	if opacity, _ = tree.March(types.Vec3{-10, 20, -7.5}, types.Vec3{1, 0, 0}, 100, 100); opacity != 0 {
		t.Fatalf("expected zero opacity for a ray missing the volume; got %v", opacity)
	}
}

func TestMarchDegenerateInput(t *testing.T) {
	tree := cornerTree(t)

	type spec struct {
		origin   types.Vec3
		dir      types.Vec3
		maxDist  float32
		maxSteps int
	}
	specs := []spec{
		{types.Vec3{-10, -7.5, -7.5}, types.Vec3{}, 100, 100},
		{types.Vec3{-10, -7.5, -7.5}, types.Vec3{float32(math.NaN()), 0, 0}, 100, 100},
		{types.Vec3{-10, -7.5, -7.5}, types.Vec3{1, 0, 0}, 100, 0},
		{types.Vec3{-10, -7.5, -7.5}, types.Vec3{1, 0, 0}, float32(math.NaN()), 100},
		{types.Vec3{float32(math.Inf(1)), 0, 0}, types.Vec3{1, 0, 0}, 100, 100},
	}

	for index, s := range specs {
		opacity, radiance := tree.March(s.origin, s.dir, s.maxDist, s.maxSteps)
		if opacity != 0 || radiance != (types.Vec3{}) {
			t.Fatalf("[spec %d] expected empty result; got %v, %v", index, opacity, radiance)
		}
	}
}

func TestMarchSkipsEmptySpace(t *testing.T) {
	tree := cornerTree(t)
	origin := types.Vec3{-10, -7.5, -7.5}
	dir := types.Vec3{1, 0, 0}

	// The ray enters the volume inside empty cells at levels 1, 2, 3 and 4,
	// one step each, and the fifth step lands in the voxel.
	skip := DefaultMarchPolicy
	if opacity, _, steps := tree.march(origin, dir, 100, 4, skip); opacity != 0 || steps != 4 {
		t.Fatalf("expected to exhaust 4 steps without reaching the voxel; got opacity %v after %d steps", opacity, steps)
	}
	if opacity, _, steps := tree.march(origin, dir, 100, 5, skip); opacity != skip.VoxelOpacity || steps != 5 {
		t.Fatalf("expected empty space skipping to reach the voxel in 5 steps; got opacity %v after %d steps", opacity, steps)
	}

	noSkip := DefaultMarchPolicy
	noSkip.SkipEmpty = false
	if opacity, _, _ := tree.march(origin, dir, 100, 6, noSkip); opacity != 0 {
		t.Fatalf("expected fixed stepping not to reach the voxel in 6 steps; got opacity %v", opacity)
	}
	if opacity, _, _ := tree.march(origin, dir, 100, 64, noSkip); opacity == 0 {
		t.Fatal("expected fixed stepping to reach the voxel in 64 steps")
	}
}

func TestMarchIsBounded(t *testing.T) {
	vol := voxel.Volume{HalfExtent: 4, Resolution: 16}
	rng := rand.New(rand.NewSource(11))
	fragments := make([]voxel.Fragment, 500)
	for index := range fragments {
		fragments[index].Position = types.Vec3{rng.Float32()*8 - 4, rng.Float32()*8 - 4, rng.Float32()*8 - 4}
	}
	tree := buildTree(t, vol, fragments)

	policies := []MarchPolicy{
		DefaultMarchPolicy,
		{StepScale: 0, VoxelOpacity: 0, SaturationOpacity: 0, SkipEmpty: false},
		{StepScale: 1e-9, VoxelOpacity: 0.01, SaturationOpacity: 2, SkipEmpty: true},
	}

	for i := 0; i < 500; i++ {
		origin := types.Vec3{rng.Float32()*20 - 10, rng.Float32()*20 - 10, rng.Float32()*20 - 10}
		dir := types.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		maxSteps := rng.Intn(64)

		for policyIndex, policy := range policies {
			opacity, _, steps := tree.march(origin, dir, float32(math.Inf(1)), maxSteps, policy)
			if steps > maxSteps {
				t.Fatalf("[policy %d] march took %d steps; budget was %d", policyIndex, steps, maxSteps)
			}
			if opacity < 0 || opacity > 1 {
				t.Fatalf("[policy %d] expected opacity in [0, 1]; got %v", policyIndex, opacity)
			}
		}
	}
}
