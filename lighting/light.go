package lighting

import (
	"github.com/achilleasa/voxelgi/scene"
	"github.com/achilleasa/voxelgi/types"
)

// A Source computes the direct radiance leaving a surface point. It is
// invoked concurrently by the fragment extractor so implementations must
// be safe for concurrent use.
type Source interface {
	Radiance(pos, normal types.Vec3, mat *scene.Material) types.Vec3
}

// A ShadowOracle reports how much of a light reaches a world-space point.
// Visibility returns a value in [0, 1] where 0 means fully occluded.
type ShadowOracle interface {
	Visibility(pos types.Vec3) float32
}

// A directional light with a Lambertian response.
type Sun struct {
	// Direction the light travels in. It does not need to be normalized.
	Direction types.Vec3 `toml:"direction"`

	Color     types.Vec3 `toml:"color"`
	Intensity float32    `toml:"intensity"`

	// Optional shadow visibility source. If nil the scene is fully lit.
	Shadows ShadowOracle `toml:"-"`
}

// Implements Source.
func (s *Sun) Radiance(pos, normal types.Vec3, mat *scene.Material) types.Vec3 {
	if mat == nil {
		return types.Vec3{}
	}

	cosTheta := normal.Dot(s.Direction.Normalize().Mul(-1))
	if cosTheta <= 0 {
		return types.Vec3{}
	}

	visibility := float32(1)
	if s.Shadows != nil {
		visibility = s.Shadows.Visibility(pos)
		if visibility <= 0 {
			return types.Vec3{}
		}
	}

	scale := (1 - mat.Metallic) * s.Intensity * cosTheta * visibility
	return mat.Albedo.MulVec(s.Color).Mul(scale)
}

// A Source that emits no light.
type Dark struct{}

// Implements Source.
func (Dark) Radiance(types.Vec3, types.Vec3, *scene.Material) types.Vec3 {
	return types.Vec3{}
}
