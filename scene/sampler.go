package scene

import (
	"math"

	"github.com/achilleasa/voxelgi/types"
)

// Upper bound for the number of grid steps along a triangle edge.
const maxEdgeSteps = 4096

// A surface sample in mesh-local space.
type SurfaceSample struct {
	Position types.Vec3
	Normal   types.Vec3

	// Index into the scene material list.
	Material int
}

// Get the number of grid steps along the longest triangle edge for the
// given spacing. A result of 0 means a single centroid sample.
func (tri Triangle) gridSteps(spacing float32) int {
	if !(spacing > 0) {
		return 0
	}

	longest := tri.Vertices[1].Sub(tri.Vertices[0]).Len()
	longest = float32(math.Max(float64(longest), float64(tri.Vertices[2].Sub(tri.Vertices[1]).Len())))
	longest = float32(math.Max(float64(longest), float64(tri.Vertices[0].Sub(tri.Vertices[2]).Len())))

	s := math.Ceil(float64(longest / spacing))
	switch {
	case s > maxEdgeSteps || math.IsNaN(s):
		return maxEdgeSteps
	case s > 1:
		return int(s)
	}
	return 1
}

// Get the number of samples SampleTriangle generates for tri without
// generating them.
func SampleCount(tri Triangle, spacing float32) int {
	steps := tri.gridSteps(spacing)
	if steps == 0 {
		return 1
	}
	return (steps + 1) * (steps + 2) / 2
}

// Generate surface samples for a triangle on a barycentric grid whose step
// along the longest edge does not exceed spacing. Vertex normals are
// interpolated; if they are missing or cancel out the face normal is used.
// A non-positive spacing yields a single sample at the centroid.
func SampleTriangle(tri Triangle, spacing float32) []SurfaceSample {
	faceNormal := tri.Vertices[1].Sub(tri.Vertices[0]).Cross(tri.Vertices[2].Sub(tri.Vertices[0])).Normalize()

	steps := tri.gridSteps(spacing)
	if steps == 0 {
		return []SurfaceSample{tri.sampleAt(1.0/3.0, 1.0/3.0, faceNormal)}
	}

	samples := make([]SurfaceSample, 0, (steps+1)*(steps+2)/2)
	invSteps := 1.0 / float32(steps)
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps-i; j++ {
			samples = append(samples, tri.sampleAt(float32(i)*invSteps, float32(j)*invSteps, faceNormal))
		}
	}
	return samples
}

// Evaluate the triangle at barycentric coordinates (u, v) where u weights
// the second vertex and v the third one.
func (tri Triangle) sampleAt(u, v float32, faceNormal types.Vec3) SurfaceSample {
	w := 1 - u - v
	pos := tri.Vertices[0].Mul(w).Add(tri.Vertices[1].Mul(u)).Add(tri.Vertices[2].Mul(v))
	normal := tri.Normals[0].Mul(w).Add(tri.Normals[1].Mul(u)).Add(tri.Normals[2].Mul(v)).Normalize()
	if normal.Len() == 0 {
		normal = faceNormal
	}

	return SurfaceSample{
		Position: pos,
		Normal:   normal,
		Material: tri.Material,
	}
}

// Get the number of samples Sample generates for the mesh. Callers with a
// sample budget check it before sampling.
func (m *Mesh) SampleCount(spacing float32) int {
	count := 0
	for _, tri := range m.Triangles {
		count += SampleCount(tri, spacing)
	}
	return count
}

// Generate surface samples for all mesh triangles.
func (m *Mesh) Sample(spacing float32) []SurfaceSample {
	samples := make([]SurfaceSample, 0, m.SampleCount(spacing))
	for _, tri := range m.Triangles {
		samples = append(samples, SampleTriangle(tri, spacing)...)
	}
	return samples
}
