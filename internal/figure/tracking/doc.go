// Package tracking follows one picked surface point on a skinned mesh.
//
// Responsibilities: per-frame re-evaluation of the picked triangle
// (Sampler), finite-difference kinematics over successive samples
// (Estimator), and the Sample record handed to the series buffer and the
// sample sinks.
//
// Both types are single-owner and not safe for concurrent use; the viewer
// session serialises access.
package tracking
