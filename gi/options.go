package gi

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/achilleasa/voxelgi/lighting"
	"github.com/achilleasa/voxelgi/types"
	"github.com/achilleasa/voxelgi/voxel"
	"github.com/achilleasa/voxelgi/voxel/traversal"
)

type Options struct {
	// The voxelization volume.
	Volume voxel.Volume `toml:"volume"`

	// Number of concurrent workers; 0 uses one per CPU.
	Workers int `toml:"workers"`

	// Node pool sizing. MaxNodes is a hard ceiling; 0 disables it.
	InitialNodes uint32 `toml:"initial_nodes"`
	MaxNodes     uint32 `toml:"max_nodes"`

	// Maximum number of fragments per build; 0 disables the limit.
	MaxFragments int `toml:"max_fragments"`

	// Number of surface samples per leaf voxel edge when sampling meshes.
	SampleDensity float32 `toml:"sample_density"`

	// Ray marching policy.
	March traversal.MarchPolicy `toml:"march"`

	// Direct light used when voxelizing scenes.
	Sun lighting.Sun `toml:"sun"`

	Logging LogOptions `toml:"logging"`
}

// Log file settings.
type LogOptions struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Get the default engine options.
func DefaultOptions() Options {
	return Options{
		Volume: voxel.Volume{
			HalfExtent: 1,
			Resolution: 128,
		},
		InitialNodes:  1 << 16,
		MaxNodes:      1 << 26,
		MaxFragments:  1 << 26,
		SampleDensity: 2,
		March:         traversal.DefaultMarchPolicy,
		Sun: lighting.Sun{
			Direction: types.Vec3{-0.3, -1, -0.2},
			Color:     types.Vec3{1, 1, 1},
			Intensity: 1,
		},
		Logging: LogOptions{
			MaxSizeMB:  100,
			MaxAgeDays: 7,
		},
	}
}

// Check that the options describe a usable engine configuration.
func (o *Options) Validate() error {
	if err := o.Volume.Validate(); err != nil {
		return err
	}
	if !(o.SampleDensity > 0) {
		return fmt.Errorf("gi: sample density must be positive; got %v", o.SampleDensity)
	}
	if o.MaxNodes != 0 && o.InitialNodes > o.MaxNodes {
		return fmt.Errorf("gi: initial node capacity %d exceeds node ceiling %d", o.InitialNodes, o.MaxNodes)
	}
	return nil
}

// Load options from a TOML file. Settings missing from the file keep their
// default values.
func LoadOptions(filename string) (Options, error) {
	opts := DefaultOptions()
	if _, err := toml.DecodeFile(filename, &opts); err != nil {
		return opts, fmt.Errorf("gi: could not decode TOML config %q: %w", filename, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
