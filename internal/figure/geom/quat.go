package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// IdentityQuat is the zero rotation.
var IdentityQuat = quat.Number{Real: 1}

// QuatXYZW builds a quaternion from glTF component order (x, y, z, w).
func QuatXYZW(x, y, z, w float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// NormalizeQuat returns q scaled to unit length, or the identity for a
// zero quaternion.
func NormalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 {
		return IdentityQuat
	}
	return quat.Scale(1/n, q)
}

func quatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// QuatToMat returns the rotation as a 4×4 matrix.
func QuatToMat(q quat.Number) Mat4 {
	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy), 0,
		2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx), 0,
		2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Rotate applies q to v.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// QuatFromUnitVectors returns the shortest rotation taking from onto to.
// Both inputs must be unit length.
func QuatFromUnitVectors(from, to r3.Vector) quat.Number {
	const eps = 1e-8
	r := from.Dot(to) + 1
	var q quat.Number
	if r < eps {
		// opposite vectors: rotate 180° about any perpendicular axis
		r = 0
		if math.Abs(from.X) > math.Abs(from.Z) {
			q = QuatXYZW(-from.Y, from.X, 0, r)
		} else {
			q = QuatXYZW(0, -from.Z, from.Y, r)
		}
	} else {
		c := from.Cross(to)
		q = QuatXYZW(c.X, c.Y, c.Z, r)
	}
	return NormalizeQuat(q)
}

// Slerp interpolates between a and b along the shortest arc.
func Slerp(a, b quat.Number, t float64) quat.Number {
	cos := quatDot(a, b)
	if cos < 0 {
		b = quat.Scale(-1, b)
		cos = -cos
	}
	if cos > 1-1e-9 {
		return NormalizeQuat(quat.Add(quat.Scale(1-t, a), quat.Scale(t, b)))
	}
	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return quat.Add(quat.Scale(wa, a), quat.Scale(wb, b))
}

// EulerXYZ is an intrinsic X-Y-Z rotation in radians. X, Y and Z read as
// roll, pitch and yaw on the telemetry charts.
type EulerXYZ struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector returns the angles as a vector for finite differencing.
func (e EulerXYZ) Vector() r3.Vector {
	return r3.Vector{X: e.X, Y: e.Y, Z: e.Z}
}

// EulerFromQuat decomposes q into XYZ order.
func EulerFromQuat(q quat.Number) EulerXYZ {
	m := QuatToMat(NormalizeQuat(q))
	m11, m12, m13 := m[0], m[1], m[2]
	m22, m23 := m[5], m[6]
	m32, m33 := m[9], m[10]

	var e EulerXYZ
	e.Y = math.Asin(clamp(m13, -1, 1))
	if math.Abs(m13) < 0.9999999 {
		e.X = math.Atan2(-m23, m33)
		e.Z = math.Atan2(-m12, m11)
	} else {
		// gimbal lock: fold the remaining rotation into X
		e.X = math.Atan2(m32, m22)
		e.Z = 0
	}
	return e
}

// QuatFromEuler is the inverse of EulerFromQuat.
func QuatFromEuler(e EulerXYZ) quat.Number {
	c1, s1 := math.Cos(e.X/2), math.Sin(e.X/2)
	c2, s2 := math.Cos(e.Y/2), math.Sin(e.Y/2)
	c3, s3 := math.Cos(e.Z/2), math.Sin(e.Z/2)
	return QuatXYZW(
		s1*c2*c3+c1*s2*s3,
		c1*s2*c3-s1*c2*s3,
		c1*c2*s3+s1*s2*c3,
		c1*c2*c3-s1*s2*s3,
	)
}

// WrapAngle maps a into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// quatFromRotation reads the upper 3×3 of a pure rotation matrix.
func quatFromRotation(m Mat4) quat.Number {
	m11, m12, m13 := m[0], m[1], m[2]
	m21, m22, m23 := m[4], m[5], m[6]
	m31, m32, m33 := m[8], m[9], m[10]
	trace := m11 + m22 + m33
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m32 - m23) * s, Jmag: (m13 - m31) * s, Kmag: (m21 - m12) * s}
	case m11 > m22 && m11 > m33:
		s := 2 * math.Sqrt(1+m11-m22-m33)
		q = quat.Number{Real: (m32 - m23) / s, Imag: 0.25 * s, Jmag: (m12 + m21) / s, Kmag: (m13 + m31) / s}
	case m22 > m33:
		s := 2 * math.Sqrt(1+m22-m11-m33)
		q = quat.Number{Real: (m13 - m31) / s, Imag: (m12 + m21) / s, Jmag: 0.25 * s, Kmag: (m23 + m32) / s}
	default:
		s := 2 * math.Sqrt(1+m33-m11-m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: (m13 + m31) / s, Jmag: (m23 + m32) / s, Kmag: 0.25 * s}
	}
	return NormalizeQuat(q)
}
