package stream

import (
	"fmt"
	"strconv"

	"github.com/golang/geo/r3"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/tracking"
)

func vec(v r3.Vector) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

// SampleToStruct encodes a sample as the wire message. Keys match the
// sample's JSON form. The nanosecond timestamp is a decimal string because
// Struct numbers are doubles.
func SampleToStruct(s tracking.Sample) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"frame":            float64(s.Frame),
		"timestamp_ns":     strconv.FormatInt(s.TimestampNanos, 10),
		"dt":               s.DeltaSeconds,
		"position":         vec(s.Position),
		"orientation":      map[string]any{"x": s.Orientation.X, "y": s.Orientation.Y, "z": s.Orientation.Z},
		"velocity":         vec(s.Velocity),
		"angular_velocity": vec(s.AngularVelocity),
		"acceleration":     vec(s.Acceleration),
		"degenerate":       s.Degenerate,
	})
}

func readVec(fields map[string]*structpb.Value, key string) (r3.Vector, error) {
	v, ok := fields[key]
	if !ok {
		return r3.Vector{}, fmt.Errorf("missing %q", key)
	}
	st := v.GetStructValue()
	if st == nil {
		return r3.Vector{}, fmt.Errorf("%q is not an object", key)
	}
	f := st.GetFields()
	return r3.Vector{
		X: f["x"].GetNumberValue(),
		Y: f["y"].GetNumberValue(),
		Z: f["z"].GetNumberValue(),
	}, nil
}

// SampleFromStruct decodes a wire message.
func SampleFromStruct(m *structpb.Struct) (tracking.Sample, error) {
	var s tracking.Sample
	f := m.GetFields()
	if _, ok := f["frame"]; !ok {
		return s, fmt.Errorf("stream: sample without frame")
	}
	s.Frame = int64(f["frame"].GetNumberValue())
	ts, err := strconv.ParseInt(f["timestamp_ns"].GetStringValue(), 10, 64)
	if err != nil {
		return s, fmt.Errorf("stream: timestamp_ns: %w", err)
	}
	s.TimestampNanos = ts
	s.DeltaSeconds = f["dt"].GetNumberValue()
	s.Degenerate = f["degenerate"].GetBoolValue()

	if s.Position, err = readVec(f, "position"); err != nil {
		return s, fmt.Errorf("stream: %w", err)
	}
	rot, err := readVec(f, "orientation")
	if err != nil {
		return s, fmt.Errorf("stream: %w", err)
	}
	s.Orientation = geom.EulerXYZ{X: rot.X, Y: rot.Y, Z: rot.Z}
	if s.Velocity, err = readVec(f, "velocity"); err != nil {
		return s, fmt.Errorf("stream: %w", err)
	}
	if s.AngularVelocity, err = readVec(f, "angular_velocity"); err != nil {
		return s, fmt.Errorf("stream: %w", err)
	}
	if s.Acceleration, err = readVec(f, "acceleration"); err != nil {
		return s, fmt.Errorf("stream: %w", err)
	}
	return s, nil
}
