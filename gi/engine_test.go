package gi

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/voxelgi/lighting"
	"github.com/achilleasa/voxelgi/scene"
	"github.com/achilleasa/voxelgi/types"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/fragment"
	"github.com/achilleasa/voxelgi/voxel/octree"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Volume = voxel.Volume{HalfExtent: 2, Resolution: 4}
	opts.Workers = 4
	opts.InitialNodes = 1
	opts.MaxNodes = 25
	return opts
}

func instanceAt(points ...types.Vec3) fragment.Instance {
	samples := make([]scene.SurfaceSample, len(points))
	for index, p := range points {
		samples[index] = scene.SurfaceSample{Position: p, Normal: types.Vec3{0, 1, 0}}
	}
	return fragment.Instance{
		Samples:   samples,
		Transform: types.Ident4(),
		Material:  &scene.Material{Albedo: types.Vec3{1, 1, 1}},
	}
}

func TestEngineQueriesWithoutTree(t *testing.T) {
	e, err := NewEngine(testOptions())
	if err != nil {
		t.Fatal(err)
	}

	if e.Tree() != nil {
		t.Fatal("expected no active tree")
	}
	if _, ok := e.Sample(types.Vec3{}); ok {
		t.Fatal("expected empty sample")
	}
	if opacity, radiance := e.March(types.Vec3{-5, 0, 0}, types.Vec3{1, 0, 0}, 10, 10); opacity != 0 || radiance != (types.Vec3{}) {
		t.Fatalf("expected empty march; got %v, %v", opacity, radiance)
	}
	if nodes, voxels := e.Counts(); nodes != 0 || voxels != 0 {
		t.Fatalf("expected zero counts; got %d, %d", nodes, voxels)
	}
	if _, err := e.Generation(); !errors.Is(err, ErrNoTree) {
		t.Fatalf("expected ErrNoTree; got %v", err)
	}
}

func TestEngineFailedBuildKeepsPreviousTree(t *testing.T) {
	e, err := NewEngine(testOptions())
	if err != nil {
		t.Fatal(err)
	}

	// Fits in 17 nodes
	p := types.Vec3{0.5, 0.5, 0.5}
	stats, err := e.Build([]fragment.Instance{instanceAt(p)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Octree.Nodes != 17 || stats.Octree.Voxels != 1 {
		t.Fatalf("expected 17 nodes and 1 voxel; got %d and %d", stats.Octree.Nodes, stats.Octree.Voxels)
	}
	if !strings.Contains(stats.Table(), "octree_mark") {
		t.Fatalf("expected stats table to list kernels; got\n%s", stats.Table())
	}

	tree := e.Tree()
	gen, _ := e.Generation()

	// Needs 1 + 8 + 8*8 nodes which exceeds the ceiling
	var points []types.Vec3
	for _, x := range []float32{-1.5, 1.5} {
		for _, y := range []float32{-1.5, 1.5} {
			for _, z := range []float32{-1.5, 1.5} {
				points = append(points, types.Vec3{x, y, z})
			}
		}
	}
	_, err = e.Build([]fragment.Instance{instanceAt(points...)}, nil)
	if !errors.Is(err, octree.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded; got %v", err)
	}

	if e.Tree() != tree {
		t.Fatal("expected the previous tree to remain active")
	}
	if curGen, _ := e.Generation(); curGen != gen {
		t.Fatalf("expected generation %s; got %s", gen, curGen)
	}
	if rec, ok := e.Sample(p); !ok || rec.Count != 1 {
		t.Fatalf("expected previous tree to remain queryable; got %+v (%t)", rec, ok)
	}
	if nodes, voxels := e.Counts(); nodes != 17 || voxels != 1 {
		t.Fatalf("expected 17 nodes and 1 voxel; got %d and %d", nodes, voxels)
	}
}

func TestEngineFragmentLimitKeepsPreviousTree(t *testing.T) {
	opts := testOptions()
	opts.MaxFragments = 1
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = e.Build([]fragment.Instance{instanceAt(types.Vec3{})}, nil); err != nil {
		t.Fatal(err)
	}
	tree := e.Tree()

	_, err = e.Build([]fragment.Instance{instanceAt(types.Vec3{}, types.Vec3{1, 1, 1})}, nil)
	if !errors.Is(err, fragment.ErrTooManyFragments) {
		t.Fatalf("expected ErrTooManyFragments; got %v", err)
	}
	if e.Tree() != tree {
		t.Fatal("expected the previous tree to remain active")
	}
}

func TestEngineBuildScene(t *testing.T) {
	opts := testOptions()
	opts.MaxNodes = 0
	opts.Volume.Resolution = 16
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}

	// A horizontal quad at y = 0.1 spanning x, z in [-0.9, 0.9]
	sc := &scene.Scene{
		Materials: []scene.Material{
			{Name: "red", Albedo: types.Vec3{1, 0, 0}},
			{Name: "blue", Albedo: types.Vec3{0, 0, 1}},
		},
		Meshes: []scene.Mesh{{
			Name: "quad",
			Triangles: []scene.Triangle{
				{Vertices: [3]types.Vec3{{-0.9, 0, -0.9}, {-0.9, 0, 0.9}, {0.9, 0, 0.9}}, Material: 0},
				{Vertices: [3]types.Vec3{{-0.9, 0, -0.9}, {0.9, 0, 0.9}, {0.9, 0, -0.9}}, Material: 1},
			},
		}},
		Instances: []scene.Instance{{Mesh: 0, Transform: types.Translate4(types.Vec3{0, 0.1, 0})}},
	}

	sun := &lighting.Sun{Direction: types.Vec3{0, -1, 0}, Color: types.Vec3{1, 1, 1}, Intensity: 1}
	stats, err := e.BuildScene(sc, sun)
	if err != nil {
		t.Fatal(err)
	}

	// The quad covers 8x8 cells of a single voxel layer
	if stats.Octree.Voxels != 64 {
		t.Fatalf("expected 64 voxels; got %d", stats.Octree.Voxels)
	}

	// Pure red corner, away from the diagonal
	rec, ok := e.Sample(types.Vec3{-0.75, 0.1, 0.75})
	if !ok || rec.Albedo != (types.Vec3{1, 0, 0}) || rec.Radiance != (types.Vec3{1, 0, 0}) {
		t.Fatalf("expected a lit red voxel; got %+v (%t)", rec, ok)
	}

	// Looking down at the quad picks up its radiance
	opacity, radiance := e.March(types.Vec3{-0.75, 3, 0.75}, types.Vec3{0, -1, 0}, 10, 64)
	if opacity <= 0 || radiance[0] <= 0 {
		t.Fatalf("expected march to hit the quad; got %v, %v", opacity, radiance)
	}

	// Invalid scenes are rejected
	sc.Instances[0].Mesh = 3
	if _, err = e.BuildScene(sc, sun); err == nil {
		t.Fatal("expected an error for an invalid scene")
	}
}

func TestEngineBuildSceneSampleLimit(t *testing.T) {
	opts := testOptions()
	opts.MaxNodes = 0
	opts.MaxFragments = 1000
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = e.Build([]fragment.Instance{instanceAt(types.Vec3{0.5, 0.5, 0.5})}, nil); err != nil {
		t.Fatal(err)
	}
	tree := e.Tree()

	// A triangle far larger than the volume sampled at voxel spacing needs
	// millions of samples; the limit must trip before they are generated.
	sc := &scene.Scene{
		Materials: []scene.Material{{Name: "white", Albedo: types.Vec3{1, 1, 1}}},
		Meshes: []scene.Mesh{{
			Name: "huge",
			Triangles: []scene.Triangle{
				{Vertices: [3]types.Vec3{{-1e4, 0, -1e4}, {-1e4, 0, 1e4}, {1e4, 0, 1e4}}},
			},
		}},
		Instances: []scene.Instance{{Mesh: 0, Transform: types.Ident4()}},
	}
	if exp := sc.Meshes[0].SampleCount(opts.Volume.VoxelSize() / opts.SampleDensity); exp <= opts.MaxFragments {
		t.Fatalf("expected the test mesh to exceed the sample limit; got %d samples", exp)
	}

	_, err = e.BuildScene(sc, nil)
	if !errors.Is(err, fragment.ErrTooManyFragments) || !errors.Is(err, octree.ErrCapacityExceeded) {
		t.Fatalf("expected ErrTooManyFragments; got %v", err)
	}
	if e.Tree() != tree {
		t.Fatal("expected the previous tree to remain active")
	}
}

func TestLoadOptions(t *testing.T) {
	cfg := `
workers = 3
initial_nodes = 100
max_nodes = 1000
sample_density = 4.0

[volume]
center = [1.0, 2.0, 3.0]
half_extent = 8.0
resolution = 64

[march]
skip_empty = false

[sun]
intensity = 2.5
`
	filename := filepath.Join(t.TempDir(), "voxelgi.toml")
	if err := os.WriteFile(filename, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(filename)
	if err != nil {
		t.Fatal(err)
	}

	expVolume := voxel.Volume{Center: types.Vec3{1, 2, 3}, HalfExtent: 8, Resolution: 64}
	if opts.Volume != expVolume {
		t.Fatalf("expected volume %+v; got %+v", expVolume, opts.Volume)
	}
	if opts.Workers != 3 || opts.MaxNodes != 1000 || opts.SampleDensity != 4 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.March.SkipEmpty || opts.March.StepScale != DefaultOptions().March.StepScale {
		t.Fatalf("expected march policy to override skip_empty only; got %+v", opts.March)
	}
	if opts.Sun.Intensity != 2.5 || opts.Sun.Color != DefaultOptions().Sun.Color {
		t.Fatalf("expected sun to override intensity only; got %+v", opts.Sun)
	}

	// Invalid resolution
	if err = os.WriteFile(filename, []byte("[volume]\nresolution = 12\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err = LoadOptions(filename); !errors.Is(err, voxel.ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution; got %v", err)
	}
}
