package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/voxelgi/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "voxelgi"
	app.Usage = "voxelize scenes into sparse voxel octrees and query them"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load engine options from a TOML file",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "mirror log output to a rotated log file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "voxelize",
			Usage: "voxelize a scene into a sparse voxel octree snapshot",
			Description: `
Parse a scene definition from a wavefront obj file, sample its surfaces into
lit voxel fragments and build a sparse voxel octree from them.

The tree is written to a zip archive which can be supplied as an argument to
the sample, march and stats commands.`,
			ArgsUsage: "scene_file.obj",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Usage: "snapshot filename (defaults to the scene name with a .svo.zip extension)",
				},
			}, cmd.EngineFlags...),
			Action: cmd.Voxelize,
		},
		{
			Name:      "sample",
			Usage:     "print the voxel attributes at a world position",
			ArgsUsage: "snapshot.svo.zip x y z",
			Action:    cmd.Sample,
		},
		{
			Name:      "march",
			Usage:     "march a ray through a snapshot and print the accumulated opacity and radiance",
			ArgsUsage: "snapshot.svo.zip ox oy oz dx dy dz",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "max-distance",
					Value: 1e3,
					Usage: "maximum distance along the ray",
				},
				cli.IntFlag{
					Name:  "max-steps",
					Value: 256,
					Usage: "maximum number of march steps",
				},
			},
			Action: cmd.March,
		},
		{
			Name:      "stats",
			Usage:     "display snapshot statistics",
			ArgsUsage: "snapshot.svo.zip",
			Action:    cmd.Stats,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}
