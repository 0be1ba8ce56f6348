package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/voxelgi/asset"
	"github.com/achilleasa/voxelgi/asset/svo"
	"github.com/achilleasa/voxelgi/gi"
	"github.com/achilleasa/voxelgi/voxel/attrib"
	"github.com/achilleasa/voxelgi/voxel/octree"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Load the snapshot named by the first argument into a new engine.
func loadSnapshot(ctx *cli.Context, opts gi.Options, minArgs int) (*gi.Engine, *svo.Meta, error) {
	if ctx.NArg() < minArgs {
		return nil, nil, errors.New("missing arguments; see help for usage")
	}

	res, err := asset.NewResource(ctx.Args().First(), nil)
	if err != nil {
		return nil, nil, err
	}
	defer res.Close()

	tree, meta, err := svo.Read(res)
	if err != nil {
		return nil, nil, err
	}

	// The volume and grid come from the snapshot.
	opts.Volume = tree.Volume
	engine, err := gi.NewEngine(opts)
	if err != nil {
		return nil, nil, err
	}
	engine.Load(tree, meta.Generation)
	return engine, meta, nil
}

// Print the voxel attributes at a world position.
func Sample(ctx *cli.Context) error {
	opts, err := loadOptions(ctx)
	if err != nil {
		return err
	}
	defer setupLogging(ctx, opts.Logging).Close()

	engine, _, err := loadSnapshot(ctx, opts, 4)
	if err != nil {
		return err
	}
	p, err := parseVec3Args(ctx, 1)
	if err != nil {
		return err
	}

	rec, ok := engine.Sample(p)
	if !ok {
		fmt.Printf("%v: empty\n", p)
		return nil
	}
	fmt.Printf("%v:\n%s", p, recordTable(rec))
	return nil
}

// March a ray through a snapshot and print the accumulated result.
func March(ctx *cli.Context) error {
	opts, err := loadOptions(ctx)
	if err != nil {
		return err
	}
	defer setupLogging(ctx, opts.Logging).Close()

	engine, _, err := loadSnapshot(ctx, opts, 7)
	if err != nil {
		return err
	}
	origin, err := parseVec3Args(ctx, 1)
	if err != nil {
		return err
	}
	dir, err := parseVec3Args(ctx, 4)
	if err != nil {
		return err
	}

	maxDistance := float32(ctx.Float64("max-distance"))
	opacity, radiance := engine.March(origin, dir, maxDistance, ctx.Int("max-steps"))
	fmt.Printf("opacity: %.4f\nradiance: %.4f %.4f %.4f\n", opacity, radiance[0], radiance[1], radiance[2])
	return nil
}

// Print snapshot statistics.
func Stats(ctx *cli.Context) error {
	opts, err := loadOptions(ctx)
	if err != nil {
		return err
	}
	defer setupLogging(ctx, opts.Logging).Close()

	engine, meta, err := loadSnapshot(ctx, opts, 1)
	if err != nil {
		return err
	}
	tree := engine.Tree()

	levels := tree.Volume.Levels()
	perLevel := make([]int, levels)
	for _, node := range tree.Nodes {
		if int(node.Coord.Level) < levels {
			perLevel[node.Coord.Level]++
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Level", "Nodes", "Cell size"})
	for level, count := range perLevel {
		cellSize := 2 * tree.Volume.HalfExtent / float32(uint32(1)<<uint(level))
		table.Append([]string{fmt.Sprint(level), humanize.Comma(int64(count)), fmt.Sprintf("%.4f", cellSize)})
	}

	nodes, voxels := tree.Counts()
	poolSize := uint64(nodes)*octree.NodeSize + uint64(voxels)*attrib.RecordSize
	table.SetFooter([]string{"Total", humanize.Comma(int64(nodes)), humanize.IBytes(poolSize)})
	table.Render()

	fmt.Printf("snapshot %s (format %s, created %s)\n", meta.Generation, meta.Version, humanize.Time(meta.Created))
	fmt.Printf("volume: center %v, half extent %v, resolution %d, %s voxels\n",
		tree.Volume.Center, tree.Volume.HalfExtent, tree.Volume.Resolution, humanize.Comma(int64(voxels)))
	fmt.Print(buf.String())
	return nil
}

func recordTable(rec attrib.Record) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Attribute", "Value"})
	table.Append([]string{"Albedo", fmt.Sprintf("%.4f %.4f %.4f", rec.Albedo[0], rec.Albedo[1], rec.Albedo[2])})
	table.Append([]string{"Normal", fmt.Sprintf("%.4f %.4f %.4f", rec.Normal[0], rec.Normal[1], rec.Normal[2])})
	table.Append([]string{"Radiance", fmt.Sprintf("%.4f %.4f %.4f", rec.Radiance[0], rec.Radiance[1], rec.Radiance[2])})
	table.Append([]string{"Fragments", fmt.Sprint(rec.Count)})
	table.Render()
	return buf.String()
}
