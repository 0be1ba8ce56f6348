package cmd

import (
	"fmt"
	"strconv"

	"github.com/achilleasa/voxelgi/gi"
	"github.com/achilleasa/voxelgi/types"
	"github.com/urfave/cli"
)

// Flags that override engine options for commands that build a voxel tree.
var EngineFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "resolution, r",
		Usage: "leaf grid resolution along each axis; must be a power of two",
	},
	cli.Float64Flag{
		Name:  "half-extent",
		Usage: "half the edge length of the voxelization volume",
	},
	cli.IntFlag{
		Name:  "workers, w",
		Usage: "number of concurrent workers (0 = one per CPU)",
	},
	cli.IntFlag{
		Name:  "max-nodes",
		Usage: "node pool ceiling (0 = unlimited)",
	},
}

// Load engine options from the optional config file and apply any command
// line overrides.
func loadOptions(ctx *cli.Context) (gi.Options, error) {
	opts := gi.DefaultOptions()
	if cfgFile := ctx.GlobalString("config"); cfgFile != "" {
		var err error
		if opts, err = gi.LoadOptions(cfgFile); err != nil {
			return opts, err
		}
	}

	if ctx.IsSet("resolution") {
		opts.Volume.Resolution = uint32(ctx.Int("resolution"))
	}
	if ctx.IsSet("half-extent") {
		opts.Volume.HalfExtent = float32(ctx.Float64("half-extent"))
	}
	if ctx.IsSet("workers") {
		opts.Workers = ctx.Int("workers")
	}
	if ctx.IsSet("max-nodes") {
		opts.MaxNodes = uint32(ctx.Int("max-nodes"))
	}

	return opts, opts.Validate()
}

// Parse a Vec3 from three consecutive positional arguments.
func parseVec3Args(ctx *cli.Context, first int) (types.Vec3, error) {
	var v types.Vec3
	for index := range v {
		arg := ctx.Args().Get(first + index)
		f, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			return v, fmt.Errorf("invalid coordinate %q for argument %d", arg, first+index+1)
		}
		v[index] = float32(f)
	}
	return v, nil
}
