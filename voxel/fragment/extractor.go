package fragment

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/achilleasa/voxelgi/compute"
	"github.com/achilleasa/voxelgi/lighting"
	"github.com/achilleasa/voxelgi/log"
	"github.com/achilleasa/voxelgi/scene"
	"github.com/achilleasa/voxelgi/types"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/octree"
)

var (
	ErrTooManyFragments = fmt.Errorf("%w: too many fragments", octree.ErrCapacityExceeded)
	ErrSamplesChanged   = errors.New("fragment: surface samples changed between passes")
)

// Material used by instances without a bound material.
var defaultMaterial = scene.Material{Name: "default", Albedo: types.Vec3{0.7, 0.7, 0.7}, Roughness: 1}

// A geometry instance: surface samples in local space, the transform that
// places them in the world and the material they are made of.
type Instance struct {
	Samples   []scene.SurfaceSample
	Transform types.Mat4
	Material  *scene.Material
}

// Extractor converts instance surface samples into voxel fragments.
type Extractor struct {
	logger log.Logger
	device *compute.Device
	volume voxel.Volume
	light  lighting.Source

	// Maximum number of fragments; 0 disables the limit.
	maxFragments int
}

// Create a new extractor. If light is nil fragments carry no radiance.
func NewExtractor(dev *compute.Device, vol voxel.Volume, light lighting.Source, maxFragments int) *Extractor {
	if light == nil {
		light = lighting.Dark{}
	}

	return &Extractor{
		logger:       log.New("fragment extractor"),
		device:       dev,
		volume:       vol,
		light:        light,
		maxFragments: maxFragments,
	}
}

// A resolved instance with the matrices needed to move its samples into
// world space.
type worldInstance struct {
	*Instance
	normalMat types.Mat4
	material  *scene.Material
}

// Generate one fragment for every sample whose world-space position lies
// inside the volume. A count pass sizes the output exactly and a second
// pass writes the fragments at indices obtained by fetch-and-add, so the
// order of the returned fragments is not defined.
func (e *Extractor) Extract(instances []Instance) ([]voxel.Fragment, error) {
	if err := e.volume.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	// offsets[i] is the global id of the first sample of instance i
	offsets := make([]int, len(instances)+1)
	resolved := make([]worldInstance, len(instances))
	for index := range instances {
		inst := &instances[index]
		offsets[index+1] = offsets[index] + len(inst.Samples)

		mat := inst.Material
		if mat == nil {
			mat = &defaultMaterial
		}
		resolved[index] = worldInstance{
			Instance:  inst,
			normalMat: inst.Transform.NormalMat(),
			material:  mat,
		}
	}

	totalSamples := offsets[len(instances)]
	if totalSamples == 0 {
		e.logger.Info("no surface samples to voxelize")
		return []voxel.Fragment{}, nil
	}

	locate := func(id int) (*worldInstance, *scene.SurfaceSample) {
		index := sort.Search(len(instances), func(i int) bool { return offsets[i+1] > id })
		return &resolved[index], &resolved[index].Samples[id-offsets[index]]
	}

	// Count
	var counted atomic.Uint32
	countTime, err := e.device.Kernel("fragment_count", func(id int) {
		inst, sample := locate(id)
		if e.volume.Contains(inst.Transform.MulPoint(sample.Position)) {
			counted.Add(1)
		}
	}).Exec1D(0, totalSamples, 0)
	if err != nil {
		return nil, err
	}

	count := int(counted.Load())
	if e.maxFragments > 0 && count > e.maxFragments {
		err = fmt.Errorf("%w (counted %d, limit %d, overflow %d)", ErrTooManyFragments, count, e.maxFragments, count-e.maxFragments)
		e.logger.Error(err.Error())
		return nil, err
	}
	if count == 0 {
		e.logger.Infof("none of the %d surface samples fall inside the volume", totalSamples)
		return []voxel.Fragment{}, nil
	}

	// Allocate and write
	fragments := make([]voxel.Fragment, count)
	var written atomic.Uint32
	var overflow atomic.Bool
	writeTime, err := e.device.Kernel("fragment_write", func(id int) {
		inst, sample := locate(id)
		pos := inst.Transform.MulPoint(sample.Position)
		if !e.volume.Contains(pos) {
			return
		}

		index := int(written.Add(1) - 1)
		if index >= len(fragments) {
			overflow.Store(true)
			return
		}

		normal := inst.normalMat.MulDir(sample.Normal).Normalize()
		fragments[index] = voxel.Fragment{
			Position: pos,
			Albedo:   inst.material.Albedo,
			Normal:   normal,
			Radiance: e.light.Radiance(pos, normal, inst.material),
		}
	}).Exec1D(0, totalSamples, 0)
	if err != nil {
		return nil, err
	}
	if overflow.Load() || int(written.Load()) != count {
		return nil, fmt.Errorf("%w (counted %d, wrote %d)", ErrSamplesChanged, count, written.Load())
	}

	e.logger.Infof(
		"extracted %d fragments from %d samples in %d ms (count: %s, write: %s)",
		count, totalSamples, time.Since(start).Nanoseconds()/1e6, countTime, writeTime,
	)
	return fragments, nil
}
