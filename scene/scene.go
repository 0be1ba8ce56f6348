package scene

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/achilleasa/voxelgi/types"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// The surface properties consumed by the voxelizer.
type Material struct {
	Name string

	// Diffuse reflectance.
	Albedo types.Vec3

	Roughness float32
	Metallic  float32
}

// A triangle in mesh-local space.
type Triangle struct {
	Vertices [3]types.Vec3
	Normals  [3]types.Vec3

	// Index into the scene material list.
	Material int
}

type Mesh struct {
	Name      string
	Triangles []Triangle
}

// Get the local-space AABB of the mesh.
func (m *Mesh) BBox() [2]types.Vec3 {
	if len(m.Triangles) == 0 {
		return [2]types.Vec3{}
	}

	bbox := [2]types.Vec3{m.Triangles[0].Vertices[0], m.Triangles[0].Vertices[0]}
	for _, tri := range m.Triangles {
		for _, v := range tri.Vertices {
			bbox[0] = types.MinVec3(bbox[0], v)
			bbox[1] = types.MaxVec3(bbox[1], v)
		}
	}
	return bbox
}

// A placement of a mesh in the world.
type Instance struct {
	Mesh      int
	Transform types.Mat4
}

// The static geometry that gets voxelized.
type Scene struct {
	Materials []Material
	Meshes    []Mesh
	Instances []Instance
}

// Check that all mesh and material references are valid.
func (sc *Scene) Validate() error {
	for index, inst := range sc.Instances {
		if inst.Mesh < 0 || inst.Mesh >= len(sc.Meshes) {
			return fmt.Errorf("scene: instance %d references unknown mesh %d", index, inst.Mesh)
		}
	}
	for meshIndex, mesh := range sc.Meshes {
		for triIndex, tri := range mesh.Triangles {
			if tri.Material < 0 || tri.Material >= len(sc.Materials) {
				return fmt.Errorf("scene: triangle %d of mesh %q references unknown material %d", triIndex, sc.Meshes[meshIndex].Name, tri.Material)
			}
		}
	}
	return nil
}

// Generate a table with scene asset statistics.
func (sc *Scene) Stats() string {
	var triangles int
	for _, mesh := range sc.Meshes {
		triangles += len(mesh.Triangles)
	}

	// Approximate in-memory footprint of the geometry
	triSize := uint64(triangles) * (6*3*4 + 8)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Count", "Size"})
	table.Append([]string{"Meshes", fmt.Sprint(len(sc.Meshes)), " "})
	table.Append([]string{"Triangles", humanize.Comma(int64(triangles)), fmtSize(triSize)})
	table.Append([]string{"Instances", fmt.Sprint(len(sc.Instances)), fmtSize(uint64(len(sc.Instances)) * 16 * 4)})
	table.Append([]string{"Materials", fmt.Sprint(len(sc.Materials)), " "})
	table.Render()
	return buf.String()
}

func fmtSize(size uint64) string {
	return strings.TrimSpace(humanize.IBytes(size))
}
