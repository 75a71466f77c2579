package geom

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

const tol = 1e-9

func vecNear(t *testing.T, want, got r3.Vector, eps float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, "x")
	assert.InDelta(t, want.Y, got.Y, eps, "y")
	assert.InDelta(t, want.Z, got.Z, eps, "z")
}

func TestMat4InverseRoundTrip(t *testing.T) {
	t.Parallel()

	m := Compose(
		r3.Vector{X: 1, Y: -2, Z: 3},
		QuatFromEuler(EulerXYZ{X: 0.3, Y: -0.7, Z: 1.1}),
		r3.Vector{X: 2, Y: 2, Z: 0.5},
	)
	inv, ok := m.Inverse()
	require.True(t, ok)
	assert.True(t, Mul(m, inv).ApproxEqual(Identity(), 1e-9))

	p := r3.Vector{X: 0.25, Y: 4, Z: -1}
	vecNear(t, p, inv.MulPoint(m.MulPoint(p)), 1e-9)
}

func TestMat4InverseSingular(t *testing.T) {
	t.Parallel()

	inv, ok := UniformScale(0).Inverse()
	assert.False(t, ok)
	assert.Equal(t, Identity(), inv)
}

func TestFromColumnMajor(t *testing.T) {
	t.Parallel()

	// glTF stores translation in elements 12..14
	cm := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1}
	m := FromColumnMajor(cm)
	assert.Equal(t, r3.Vector{X: 5, Y: 6, Z: 7}, m.Translation())
}

func TestQuatFromUnitVectors(t *testing.T) {
	t.Parallel()

	up := r3.Vector{Y: 1}
	cases := []struct {
		name string
		to   r3.Vector
	}{
		{"same", r3.Vector{Y: 1}},
		{"x", r3.Vector{X: 1}},
		{"z", r3.Vector{Z: 1}},
		{"opposite", r3.Vector{Y: -1}},
		{"oblique", r3.Vector{X: 1, Y: 1, Z: 1}.Normalize()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := QuatFromUnitVectors(up, tc.to)
			assert.InDelta(t, 1, quat.Abs(q), tol)
			vecNear(t, tc.to, Rotate(q, up), 1e-9)
		})
	}
}

func TestEulerRoundTrip(t *testing.T) {
	t.Parallel()

	for _, e := range []EulerXYZ{
		{},
		{X: 0.1, Y: 0.2, Z: 0.3},
		{X: -1.2, Y: 0.9, Z: 2.5},
		{X: 3, Y: -1.4, Z: -3},
	} {
		got := EulerFromQuat(QuatFromEuler(e))
		assert.InDelta(t, e.X, got.X, 1e-9)
		assert.InDelta(t, e.Y, got.Y, 1e-9)
		assert.InDelta(t, e.Z, got.Z, 1e-9)
	}
}

func TestComposeMatchesRotate(t *testing.T) {
	t.Parallel()

	q := QuatFromEuler(EulerXYZ{X: 0.4, Y: 0.5, Z: -0.6})
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	vecNear(t, Rotate(q, v), Compose(r3.Vector{}, q, r3.Vector{X: 1, Y: 1, Z: 1}).MulPoint(v), 1e-12)
}

func TestSlerpEndpoints(t *testing.T) {
	t.Parallel()

	a := IdentityQuat
	b := QuatFromEuler(EulerXYZ{Z: math.Pi / 2})
	assert.InDelta(t, 0, quat.Abs(quat.Sub(Slerp(a, b, 0), a)), tol)
	assert.InDelta(t, 0, quat.Abs(quat.Sub(Slerp(a, b, 1), b)), tol)

	half := EulerFromQuat(Slerp(a, b, 0.5))
	assert.InDelta(t, math.Pi/4, half.Z, 1e-9)
}

func TestLookAtPerspective(t *testing.T) {
	t.Parallel()

	view := LookAt(r3.Vector{Z: 5}, r3.Vector{}, r3.Vector{Y: 1})
	proj := Perspective(60, 1, 0.1, 100)
	vp := Mul(proj, view)

	// the target projects to the centre of the screen
	c := vp.Project(r3.Vector{})
	assert.InDelta(t, 0, c.X, tol)
	assert.InDelta(t, 0, c.Y, tol)
	assert.True(t, c.Z > -1 && c.Z < 1)
}

func TestWrapAngle(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, WrapAngle(2*math.Pi), tol)
	assert.InDelta(t, math.Pi, WrapAngle(-math.Pi), tol)
	assert.InDelta(t, -0.1, WrapAngle(2*math.Pi-0.1), tol)
	assert.InDelta(t, 0.2, WrapAngle(0.2), tol)
}

func TestDecomposeRoundTrip(t *testing.T) {
	t.Parallel()

	tr := r3.Vector{X: 1, Y: -2, Z: 0.5}
	q := QuatFromEuler(EulerXYZ{X: 0.3, Y: -1.1, Z: 2.4})
	s := r3.Vector{X: 2, Y: 0.5, Z: 3}
	gotT, gotQ, gotS := Decompose(Compose(tr, q, s))
	assert.InDelta(t, tr.X, gotT.X, 1e-12)
	assert.InDelta(t, tr.Y, gotT.Y, 1e-12)
	assert.InDelta(t, s.X, gotS.X, 1e-9)
	assert.InDelta(t, s.Z, gotS.Z, 1e-9)
	assert.True(t, Compose(gotT, gotQ, gotS).ApproxEqual(Compose(tr, q, s), 1e-9))
}
