package cmd

import (
	"errors"
	"strings"

	"github.com/achilleasa/voxelgi/asset/scene/reader"
	"github.com/achilleasa/voxelgi/asset/svo"
	"github.com/achilleasa/voxelgi/gi"
	"github.com/urfave/cli"
)

// Voxelize a scene and write the resulting tree to a snapshot archive.
func Voxelize(ctx *cli.Context) error {
	opts, err := loadOptions(ctx)
	if err != nil {
		return err
	}
	defer setupLogging(ctx, opts.Logging).Close()

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}
	sceneFile := ctx.Args().First()

	sc, err := reader.ReadScene(sceneFile)
	if err != nil {
		return err
	}
	logger.Noticef("scene information:\n%s", sc.Stats())

	engine, err := gi.NewEngine(opts)
	if err != nil {
		return err
	}
	stats, err := engine.BuildScene(sc, &opts.Sun)
	if err != nil {
		return err
	}
	logger.Noticef("octree information:\n%s", stats.Octree.Table())
	logger.Noticef("build statistics:\n%s", stats.Table())

	outFile := ctx.String("out")
	if outFile == "" {
		outFile = strings.TrimSuffix(sceneFile, ".obj") + ".svo.zip"
	}
	return svo.Write(outFile, engine.Tree(), stats.Generation)
}
