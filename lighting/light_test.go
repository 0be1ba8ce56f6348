package lighting

import (
	"testing"

	"github.com/achilleasa/voxelgi/scene"
	"github.com/achilleasa/voxelgi/types"
)

type halfShadow struct{}

func (halfShadow) Visibility(pos types.Vec3) float32 {
	if pos[0] < 0 {
		return 0
	}
	return 0.5
}

func TestSunRadiance(t *testing.T) {
	mat := &scene.Material{Albedo: types.Vec3{1, 0.5, 0.25}}
	metal := &scene.Material{Albedo: types.Vec3{1, 1, 1}, Metallic: 1}
	sun := &Sun{
		Direction: types.Vec3{0, -2, 0},
		Color:     types.Vec3{1, 1, 1},
		Intensity: 2,
	}
	shadowed := *sun
	shadowed.Shadows = halfShadow{}

	type spec struct {
		light  Source
		pos    types.Vec3
		normal types.Vec3
		mat    *scene.Material
		exp    types.Vec3
	}
	specs := []spec{
		{sun, types.Vec3{}, types.Vec3{0, 1, 0}, mat, types.Vec3{2, 1, 0.5}},
		// facing away from the light
		{sun, types.Vec3{}, types.Vec3{0, -1, 0}, mat, types.Vec3{}},
		{sun, types.Vec3{}, types.Vec3{0, 1, 0}, metal, types.Vec3{}},
		{sun, types.Vec3{}, types.Vec3{0, 1, 0}, nil, types.Vec3{}},
		{&shadowed, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0}, mat, types.Vec3{1, 0.5, 0.25}},
		{&shadowed, types.Vec3{-1, 0, 0}, types.Vec3{0, 1, 0}, mat, types.Vec3{}},
		{Dark{}, types.Vec3{}, types.Vec3{0, 1, 0}, mat, types.Vec3{}},
	}

	for index, s := range specs {
		got := s.light.Radiance(s.pos, s.normal, s.mat)
		if got != s.exp {
			t.Fatalf("[spec %d] expected radiance %v; got %v", index, s.exp, got)
		}
	}
}
