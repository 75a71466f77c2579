package tracking

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/series"
)

// Sample is everything recorded about the tracked point for one frame.
type Sample struct {
	Frame           int64         `json:"frame"`
	TimestampNanos  int64         `json:"timestamp_ns"`
	DeltaSeconds    float64       `json:"dt"`
	Position        r3.Vector     `json:"position"`
	Orientation     geom.EulerXYZ `json:"orientation"`
	Velocity        r3.Vector     `json:"velocity"`
	AngularVelocity r3.Vector     `json:"angular_velocity"`
	Acceleration    r3.Vector     `json:"acceleration"`
	Degenerate      bool          `json:"degenerate,omitempty"`
}

// NewSample combines a pose and its derivatives.
func NewSample(frame, tsNanos int64, dt float64, p Pose, d Derivatives) Sample {
	return Sample{
		Frame:           frame,
		TimestampNanos:  tsNanos,
		DeltaSeconds:    dt,
		Position:        p.Position,
		Orientation:     p.Orientation,
		Velocity:        d.Velocity,
		AngularVelocity: d.AngularVelocity,
		Acceleration:    d.Acceleration,
		Degenerate:      p.Degenerate,
	}
}

// Values lays the sample out in series channel order.
func (s Sample) Values() [series.NumChannels]float64 {
	var v [series.NumChannels]float64
	v[series.PosX], v[series.PosY], v[series.PosZ] = s.Position.X, s.Position.Y, s.Position.Z
	v[series.RotX], v[series.RotY], v[series.RotZ] = s.Orientation.X, s.Orientation.Y, s.Orientation.Z
	v[series.AngVelX], v[series.AngVelY], v[series.AngVelZ] = s.AngularVelocity.X, s.AngularVelocity.Y, s.AngularVelocity.Z
	v[series.AccX], v[series.AccY], v[series.AccZ] = s.Acceleration.X, s.Acceleration.Y, s.Acceleration.Z
	return v
}
