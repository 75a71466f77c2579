// Package pick turns a screen click into a tracked-point selection on a
// skinned mesh: camera ray construction, ray/triangle intersection against
// every pickable surface, and barycentric registration of the hit.
package pick

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/skintrack/internal/figure/geom"
)

// Viewport is the screen rectangle the scene is drawn into. Click
// coordinates are relative to the window; the viewport offset accounts
// for any side panel.
type Viewport struct {
	X, Y          float64
	Width, Height float64
}

// Aspect returns width / height, or 1 for an empty viewport.
func (v Viewport) Aspect() float64 {
	if v.Width <= 0 || v.Height <= 0 {
		return 1
	}
	return v.Width / v.Height
}

// NDC maps window coordinates to normalised device coordinates (x right,
// y up, both in [-1, 1] inside the viewport).
func (v Viewport) NDC(sx, sy float64) (float64, float64) {
	w, h := v.Width, v.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return (sx-v.X)/w*2 - 1, -((sy-v.Y)/h*2 - 1)
}

// Contains reports whether the window point is inside the viewport.
func (v Viewport) Contains(sx, sy float64) bool {
	return sx >= v.X && sx <= v.X+v.Width && sy >= v.Y && sy <= v.Y+v.Height
}

// Camera is a perspective camera.
type Camera struct {
	Position r3.Vector
	Target   r3.Vector
	Up       r3.Vector
	FovY     float64 // degrees
	Near     float64
	Far      float64
}

// DefaultCamera frames a roughly human-sized figure standing at the origin.
func DefaultCamera() Camera {
	return Camera{
		Position: r3.Vector{X: 0, Y: 1.5, Z: 4},
		Target:   r3.Vector{Y: 1},
		Up:       r3.Vector{Y: 1},
		FovY:     45,
		Near:     0.1,
		Far:      100,
	}
}

// View returns the world-to-camera matrix.
func (c Camera) View() geom.Mat4 {
	return geom.LookAt(c.Position, c.Target, c.Up)
}

// Projection returns the camera-to-clip matrix for the given aspect.
func (c Camera) Projection(aspect float64) geom.Mat4 {
	return geom.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vector {
	return r.Origin.Add(r.Direction.Mul(t))
}

// RayThrough builds the ray from the camera through a window coordinate.
func (c Camera) RayThrough(vp Viewport, sx, sy float64) Ray {
	nx, ny := vp.NDC(sx, sy)
	inv, _ := geom.Mul(c.Projection(vp.Aspect()), c.View()).Inverse()
	far := inv.Project(r3.Vector{X: nx, Y: ny, Z: 1})
	return Ray{Origin: c.Position, Direction: far.Sub(c.Position).Normalize()}
}

// ScreenPoint projects a world point to window coordinates. ok is false
// when the point is behind the camera.
func (c Camera) ScreenPoint(vp Viewport, p r3.Vector) (sx, sy float64, ok bool) {
	view := c.View().MulPoint(p)
	if view.Z >= 0 {
		return 0, 0, false
	}
	ndc := c.Projection(vp.Aspect()).Project(view)
	sx = vp.X + (ndc.X+1)/2*vp.Width
	sy = vp.Y + (1-ndc.Y)/2*vp.Height
	return sx, sy, true
}
