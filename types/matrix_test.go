package types

import (
	"math"
	"testing"
)

func approxVec3(a, b Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a[i]-b[i])) > 1e-4 {
			return false
		}
	}
	return true
}

func TestMatrixInverse(t *testing.T) {
	specs := []Mat4{
		Ident4(),
		Translate4(Vec3{1, -2, 3}),
		Scale4(Vec3{2, 4, 0.5}),
		Translate4(Vec3{1, 2, 3}).Mul4(QuatFromEuler(0.3, 1.1, -0.4).Mat4()).Mul4(Scale4(Vec3{2, 2, 3})),
	}

	p := Vec3{0.25, -1.5, 7}
	for index, m := range specs {
		got := m.Inv().MulPoint(m.MulPoint(p))
		if !approxVec3(got, p) {
			t.Fatalf("[spec %d] expected inverse transform to restore %v; got %v", index, p, got)
		}
	}

	if inv := (Mat4{}).Inv(); inv != (Mat4{}) {
		t.Fatalf("expected singular matrix inverse to be the zero matrix; got %v", inv)
	}
}

func TestMatrixPointTransform(t *testing.T) {
	m := Translate4(Vec3{1, 2, 3}).Mul4(Scale4(Vec3{2, 2, 2}))

	exp := Vec3{3, 4, 5}
	if got := m.MulPoint(Vec3{1, 1, 1}); !approxVec3(got, exp) {
		t.Fatalf("expected transformed point to be %v; got %v", exp, got)
	}

	exp = Vec3{2, 2, 2}
	if got := m.MulDir(Vec3{1, 1, 1}); !approxVec3(got, exp) {
		t.Fatalf("expected transformed direction to be %v; got %v", exp, got)
	}

	if s := m.MaxScale(); s != 2 {
		t.Fatalf("expected max scale to be 2; got %f", s)
	}
}

func TestNormalMatrix(t *testing.T) {
	// Non-uniform scale must keep normals perpendicular to transformed tangents.
	m := Scale4(Vec3{4, 1, 1})
	tangent := m.MulDir(Vec3{1, -1, 0})
	normal := m.NormalMat().MulDir(Vec3{1, 1, 0})

	if d := tangent.Dot(normal); math.Abs(float64(d)) > 1e-5 {
		t.Fatalf("expected transformed normal to be perpendicular to tangent; dot = %f", d)
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 1, 0}, math.Pi/2)
	v := Vec3{1, 0, 0}

	viaQuat := q.Rotate(v)
	viaMat := q.Mat4().MulDir(v)
	if !approxVec3(viaQuat, viaMat) {
		t.Fatalf("expected quaternion and matrix rotation to match; got %v and %v", viaQuat, viaMat)
	}

	exp := Vec3{0, 0, -1}
	if !approxVec3(viaQuat, exp) {
		t.Fatalf("expected rotated vector to be %v; got %v", exp, viaQuat)
	}
}
