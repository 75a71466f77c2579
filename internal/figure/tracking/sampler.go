package tracking

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/pick"
)

// degenerateArea is the cross-product length below which a triangle has
// no usable normal.
const degenerateArea = 1e-12

// ErrNoSelection is returned when sampling without a pick.
var ErrNoSelection = errors.New("tracking: no selection")

// ReferenceUp is the axis the orientation maps onto the surface normal.
var ReferenceUp = r3.Vector{Y: 1}

// Pose is the tracked point's placement for one frame.
type Pose struct {
	Position    r3.Vector
	Normal      r3.Vector
	Rotation    quat.Number
	Orientation geom.EulerXYZ
	// Degenerate is set when the triangle collapsed this frame and the
	// orientation was carried over from the last valid one.
	Degenerate bool
}

// Sampler turns a selection into a pose every frame. It remembers the last
// valid orientation so a collapsed triangle never produces NaNs. Display
// scale belongs on the scene graph root, where the evaluated vertices
// already carry it.
type Sampler struct {
	lastRotation quat.Number
}

// NewSampler returns a sampler with no orientation history.
func NewSampler() *Sampler {
	return &Sampler{lastRotation: geom.IdentityQuat}
}

// Sample evaluates the selected triangle under the current pose.
func (s *Sampler) Sample(sel *pick.Selection) (Pose, error) {
	if sel == nil || sel.Mesh == nil {
		return Pose{}, ErrNoSelection
	}
	var v [3]r3.Vector
	for k, idx := range sel.Triangle {
		p, err := sel.Mesh.Evaluate(idx)
		if err != nil {
			return Pose{}, fmt.Errorf("tracking: evaluate vertex %d: %w", idx, err)
		}
		v[k] = p
	}

	b := sel.Barycentric
	pose := Pose{Position: v[0].Mul(b[0]).Add(v[1].Mul(b[1])).Add(v[2].Mul(b[2]))}

	n := v[1].Sub(v[0]).Cross(v[2].Sub(v[0]))
	if n.Norm() < degenerateArea {
		pose.Degenerate = true
		pose.Rotation = s.lastRotation
		pose.Normal = geom.Rotate(s.lastRotation, ReferenceUp)
	} else {
		pose.Normal = n.Normalize()
		pose.Rotation = geom.QuatFromUnitVectors(ReferenceUp, pose.Normal)
		s.lastRotation = pose.Rotation
	}
	pose.Orientation = geom.EulerFromQuat(pose.Rotation)
	return pose, nil
}

// Reset forgets the last valid orientation.
func (s *Sampler) Reset() {
	s.lastRotation = geom.IdentityQuat
}
