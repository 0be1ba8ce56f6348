package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/voxelgi/asset"
	"github.com/achilleasa/voxelgi/asset/svo"
	"github.com/achilleasa/voxelgi/types"
	"github.com/urfave/cli"
)

func testApp() *cli.App {
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "v"},
		cli.BoolFlag{Name: "vv"},
		cli.StringFlag{Name: "config, c"},
		cli.StringFlag{Name: "log-file"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "voxelize",
			Flags:  append([]cli.Flag{cli.StringFlag{Name: "out, o"}}, EngineFlags...),
			Action: Voxelize,
		},
		{Name: "sample", Action: Sample},
		{
			Name: "march",
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "max-distance", Value: 100},
				cli.IntFlag{Name: "max-steps", Value: 64},
			},
			Action: March,
		},
		{Name: "stats", Action: Stats},
	}
	return app
}

const quadScene = `
mtllib quad.mtl
o quad
v -0.9 0.1 -0.9
v -0.9 0.1 0.9
v 0.9 0.1 0.9
v 0.9 0.1 -0.9
usemtl white
f 1 2 3 4
`

func TestVoxelizeAndQuery(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"quad.obj":     quadScene,
		"quad.mtl":     "newmtl white\nKd 1 1 1\n",
		"voxelgi.toml": "[sun]\ndirection = [0.0, -1.0, 0.0]\n",
	}
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}

	app := testApp()
	cfg := filepath.Join(dir, "voxelgi.toml")
	logFile := filepath.Join(dir, "voxelgi.log")
	snapshot := filepath.Join(dir, "quad.svo.zip")

	err := app.Run([]string{"voxelgi", "--config", cfg, "--log-file", logFile, "voxelize", "-r", "16", "--half-extent", "2", filepath.Join(dir, "quad.obj")})
	if err != nil {
		t.Fatal(err)
	}

	res, err := asset.NewResource(snapshot, nil)
	if err != nil {
		t.Fatalf("expected snapshot at default location: %v", err)
	}
	tree, _, err := svo.Read(res)
	res.Close()
	if err != nil {
		t.Fatal(err)
	}
	if _, voxels := tree.Counts(); voxels != 64 {
		t.Fatalf("expected 64 voxels; got %d", voxels)
	}
	rec, ok := tree.Sample(types.Vec3{0.25, 0.1, 0.25})
	if !ok || rec.Radiance != (types.Vec3{1, 1, 1}) {
		t.Fatalf("expected a lit white voxel; got %+v (%t)", rec, ok)
	}

	if info, err := os.Stat(logFile); err != nil || info.Size() == 0 {
		t.Fatalf("expected log output in %s; got %v", logFile, err)
	}

	commands := [][]string{
		{"voxelgi", "sample", snapshot, "0.25", "0.1", "0.25"},
		{"voxelgi", "sample", snapshot, "5", "5", "5"},
		{"voxelgi", "march", snapshot, "0.25", "3", "0.25", "0", "-1", "0"},
		{"voxelgi", "stats", snapshot},
	}
	for index, args := range commands {
		if err = app.Run(args); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	badCfg := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(badCfg, []byte("[volume]\nresolution = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	type spec struct {
		args   []string
		expErr string
	}
	specs := []spec{
		{[]string{"voxelgi", "voxelize"}, "missing scene file argument"},
		{[]string{"voxelgi", "voxelize", "-r", "12", "scene.obj"}, "power of two"},
		{[]string{"voxelgi", "--config", badCfg, "stats", "x.svo.zip"}, "power of two"},
		{[]string{"voxelgi", "sample", "x.svo.zip", "1", "2"}, "missing arguments"},
		{[]string{"voxelgi", "stats", filepath.Join(dir, "missing.svo.zip")}, "missing.svo.zip"},
	}

	app := testApp()
	for index, s := range specs {
		err := app.Run(s.args)
		if err == nil || !strings.Contains(err.Error(), s.expErr) {
			t.Fatalf("[spec %d] expected error containing %q; got %v", index, s.expErr, err)
		}
	}
}
