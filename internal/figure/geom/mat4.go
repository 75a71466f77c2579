// Package geom holds the small amount of linear algebra the figure
// packages share: an affine 4×4 matrix type, quaternion helpers on top of
// gonum's quat.Number and Euler conversion for telemetry.
//
// Vectors are github.com/golang/geo/r3 values throughout.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Mat4 is a 4×4 matrix stored row-major. Value type, no heap allocation.
type Mat4 [16]float64

// Identity returns the 4×4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns a × b.
func Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// Mul returns m × b.
func (m Mat4) Mul(b Mat4) Mat4 {
	return Mul(m, b)
}

// MulPoint transforms a point (w=1). The projective row is ignored, so this
// is only correct for affine matrices; use Project for camera matrices.
func (m Mat4) MulPoint(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3],
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7],
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11],
	}
}

// MulDir transforms a direction (w=0).
func (m Mat4) MulDir(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[4]*v.X + m[5]*v.Y + m[6]*v.Z,
		Z: m[8]*v.X + m[9]*v.Y + m[10]*v.Z,
	}
}

// Project transforms a point with perspective divide.
func (m Mat4) Project(v r3.Vector) r3.Vector {
	w := m[12]*v.X + m[13]*v.Y + m[14]*v.Z + m[15]
	if w == 0 {
		w = 1
	}
	p := m.MulPoint(v)
	return r3.Vector{X: p.X / w, Y: p.Y / w, Z: p.Z / w}
}

// Scale multiplies every element by s. Used when accumulating weighted
// bone matrices.
func (m Mat4) Scale(s float64) Mat4 {
	for i := range m {
		m[i] *= s
	}
	return m
}

// Add returns the element-wise sum.
func (m Mat4) Add(b Mat4) Mat4 {
	for i := range m {
		m[i] += b[i]
	}
	return m
}

// Translation returns the translation column.
func (m Mat4) Translation() r3.Vector {
	return r3.Vector{X: m[3], Y: m[7], Z: m[11]}
}

// Inverse returns the inverse of m. ok is false when m is singular, in
// which case the identity is returned.
func (m Mat4) Inverse() (Mat4, bool) {
	src := mat.NewDense(4, 4, m[:])
	var inv mat.Dense
	if err := inv.Inverse(src); err != nil {
		return Identity(), false
	}
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = inv.At(r, c)
		}
	}
	return out, true
}

// ApproxEqual reports whether every element differs by at most eps.
func (m Mat4) ApproxEqual(b Mat4, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// FromColumnMajor converts a glTF style column-major array.
func FromColumnMajor(a [16]float64) Mat4 {
	var m Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			m[r*4+c] = a[c*4+r]
		}
	}
	return m
}

// Compose builds translation × rotation × scale.
func Compose(t r3.Vector, q quat.Number, s r3.Vector) Mat4 {
	r := QuatToMat(q)
	return Mat4{
		r[0] * s.X, r[1] * s.Y, r[2] * s.Z, t.X,
		r[4] * s.X, r[5] * s.Y, r[6] * s.Z, t.Y,
		r[8] * s.X, r[9] * s.Y, r[10] * s.Z, t.Z,
		0, 0, 0, 1,
	}
}

// Translate returns a pure translation matrix.
func Translate(t r3.Vector) Mat4 {
	m := Identity()
	m[3], m[7], m[11] = t.X, t.Y, t.Z
	return m
}

// UniformScale returns a pure scale matrix.
func UniformScale(s float64) Mat4 {
	return Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns an OpenGL style projection (right-handed view space,
// camera looking down -Z, NDC depth in [-1, 1]).
func Perspective(fovYDeg, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovYDeg*math.Pi/360)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, 2 * far * near * nf,
		0, 0, -1, 0,
	}
}

// LookAt returns the view matrix for a camera at eye looking at target.
func LookAt(eye, target, up r3.Vector) Mat4 {
	z := eye.Sub(target).Normalize()
	if z.Norm() == 0 {
		z = r3.Vector{Z: 1}
	}
	x := up.Cross(z)
	if x.Norm() < 1e-12 {
		// up parallel to the view direction; nudge it
		x = r3.Vector{X: 1}.Cross(z)
		if x.Norm() < 1e-12 {
			x = r3.Vector{Y: 1}.Cross(z)
		}
	}
	x = x.Normalize()
	y := z.Cross(x)
	return Mat4{
		x.X, x.Y, x.Z, -x.Dot(eye),
		y.X, y.Y, y.Z, -y.Dot(eye),
		z.X, z.Y, z.Z, -z.Dot(eye),
		0, 0, 0, 1,
	}
}

// Decompose splits an affine matrix into translation, rotation and scale.
// A negative determinant flips the X scale.
func Decompose(m Mat4) (r3.Vector, quat.Number, r3.Vector) {
	sx := r3.Vector{X: m[0], Y: m[4], Z: m[8]}.Norm()
	sy := r3.Vector{X: m[1], Y: m[5], Z: m[9]}.Norm()
	sz := r3.Vector{X: m[2], Y: m[6], Z: m[10]}.Norm()
	if m.det3() < 0 {
		sx = -sx
	}
	t := r3.Vector{X: m[3], Y: m[7], Z: m[11]}
	if sx == 0 || sy == 0 || sz == 0 {
		return t, IdentityQuat, r3.Vector{X: sx, Y: sy, Z: sz}
	}
	r := m
	for row := 0; row < 3; row++ {
		r[row*4] /= sx
		r[row*4+1] /= sy
		r[row*4+2] /= sz
	}
	return t, quatFromRotation(r), r3.Vector{X: sx, Y: sy, Z: sz}
}

func (m Mat4) det3() float64 {
	return m[0]*(m[5]*m[10]-m[6]*m[9]) -
		m[1]*(m[4]*m[10]-m[6]*m[8]) +
		m[2]*(m[4]*m[9]-m[5]*m[8])
}
