package tracking

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/skintrack/internal/figure/geom"
)

// DefaultMinDelta is the frame delta (seconds) at or below which
// derivatives are carried forward instead of divided.
const DefaultMinDelta = 1e-6

// Derivatives are the finite-difference estimates for one frame.
type Derivatives struct {
	Velocity        r3.Vector
	Acceleration    r3.Vector
	AngularVelocity r3.Vector
}

// Estimator is a first-order backward difference over successive samples.
// It is observational: jitter in dt shows up directly in the output, and
// without UnwrapAngles an Euler component crossing ±π produces a spike.
type Estimator struct {
	// MinDelta guards the division; zero selects DefaultMinDelta.
	MinDelta float64
	// UnwrapAngles wraps each orientation difference into (-π, π].
	UnwrapAngles bool

	primed          bool
	prevPosition    r3.Vector
	prevVelocity    r3.Vector
	prevOrientation r3.Vector
	last            Derivatives
}

// Advance consumes one sample. The previous-state fields are updated on
// every call, including the first and any zero-dt call.
func (e *Estimator) Advance(position r3.Vector, orientation geom.EulerXYZ, dt float64) Derivatives {
	o := orientation.Vector()
	minDelta := e.MinDelta
	if minDelta <= 0 {
		minDelta = DefaultMinDelta
	}

	var d Derivatives
	switch {
	case !e.primed:
		// nothing to difference against yet
	case dt <= minDelta:
		d = e.last
	default:
		d.Velocity = position.Sub(e.prevPosition).Mul(1 / dt)
		d.Acceleration = d.Velocity.Sub(e.prevVelocity).Mul(1 / dt)
		dO := o.Sub(e.prevOrientation)
		if e.UnwrapAngles {
			dO = r3.Vector{X: geom.WrapAngle(dO.X), Y: geom.WrapAngle(dO.Y), Z: geom.WrapAngle(dO.Z)}
		}
		d.AngularVelocity = dO.Mul(1 / dt)
	}

	e.primed = true
	e.prevPosition = position
	e.prevVelocity = d.Velocity
	e.prevOrientation = o
	e.last = d
	return d
}

// Reset clears the kinematic state; the next Advance reports zeros.
func (e *Estimator) Reset() {
	minDelta, unwrap := e.MinDelta, e.UnwrapAngles
	*e = Estimator{MinDelta: minDelta, UnwrapAngles: unwrap}
}
