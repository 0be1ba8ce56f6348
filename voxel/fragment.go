package voxel

import "github.com/achilleasa/voxelgi/types"

// A Fragment is a single surface sample that falls inside the voxelization
// volume. Fragments are produced once per build and never modified.
type Fragment struct {
	// World-space sample position.
	Position types.Vec3

	// Surface albedo.
	Albedo types.Vec3

	// World-space surface normal.
	Normal types.Vec3

	// Direct radiance leaving the surface at this sample.
	Radiance types.Vec3
}
