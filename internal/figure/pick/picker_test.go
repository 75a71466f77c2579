package pick

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/rig"
)

func downRay(x, z float64) Ray {
	return Ray{Origin: r3.Vector{X: x, Y: 5, Z: z}, Direction: r3.Vector{Y: -1}}
}

func gridPicker(t *testing.T) (*Picker, *rig.Figure) {
	t.Helper()
	f, err := rig.NewGridFigure(4, 4)
	require.NoError(t, err)
	return &Picker{
		Camera:   DefaultCamera(),
		Viewport: Viewport{Width: 800, Height: 600},
		Meshes:   f.Meshes,
	}, f
}

func TestPickRayHitsGrid(t *testing.T) {
	t.Parallel()

	p, f := gridPicker(t)
	sel, ok := p.PickRay(downRay(0.25, 0.5))
	require.True(t, ok)
	assert.Same(t, f.Meshes[0], sel.Mesh)
	assert.InDelta(t, 5, sel.Distance, 1e-9)
	assert.InDelta(t, 0.25, sel.WorldPoint.X, 1e-9)
	assert.InDelta(t, 0.5, sel.WorldPoint.Z, 1e-9)

	// the selected face contains the triangle's vertices
	assert.Equal(t, f.Meshes[0].Triangle(sel.Face), sel.Triangle)
}

func TestPickRayMiss(t *testing.T) {
	t.Parallel()

	p, _ := gridPicker(t)
	p.Props = []Prop{NewGroundProp(50)}

	// outside the grid only the ground is hit: no selection
	sel, ok := p.PickRay(downRay(-5, -7))
	assert.False(t, ok)
	assert.Nil(t, sel)

	hits := p.Intersect(downRay(-5, -7))
	require.Len(t, hits, 1)
	assert.Equal(t, "ground", hits[0].Prop)
}

func TestPickOnSharedEdge(t *testing.T) {
	t.Parallel()

	p, f := gridPicker(t)
	p.Props = []Prop{NewGroundProp(50)}

	// (0.5, 0.5) lies on the diagonal shared by faces 0 and 1; (1, 1) is a
	// vertex shared by six faces
	for _, at := range [][2]float64{{0.5, 0.5}, {1, 1}} {
		hits := p.Intersect(downRay(at[0], at[1]))
		meshHits := 0
		for _, h := range hits {
			if h.Mesh != nil {
				meshHits++
			}
		}
		assert.Equal(t, 1, meshHits, "ray at %v", at)

		a, ok := p.PickRay(downRay(at[0], at[1]))
		require.True(t, ok)
		b, ok := p.PickRay(downRay(at[0], at[1]))
		require.True(t, ok)
		assert.Equal(t, a.Face, b.Face)
		assert.Equal(t, a.Barycentric, b.Barycentric)
		assert.Equal(t, f.Meshes[0].Triangle(a.Face), a.Triangle)
	}

	// ground triangles share their diagonal too
	hits := p.Intersect(downRay(-5, -5))
	require.Len(t, hits, 1)
	assert.Equal(t, "ground", hits[0].Prop)
	assert.Equal(t, 0, hits[0].Face)
}

func TestPickRaySkipsNearerProp(t *testing.T) {
	t.Parallel()

	p, f := gridPicker(t)
	canopy := NewGroundProp(10)
	canopy.Name = "canopy"
	canopy.World = geom.Translate(r3.Vector{Y: 2})
	p.Props = []Prop{canopy}

	hits := p.Intersect(downRay(1.5, 1.5))
	require.GreaterOrEqual(t, len(hits), 2)
	assert.Equal(t, "canopy", hits[0].Prop)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}

	sel, ok := p.PickRay(downRay(1.5, 1.5))
	require.True(t, ok)
	assert.Same(t, f.Meshes[0], sel.Mesh)
	assert.InDelta(t, 5, sel.Distance, 1e-9)
}

func TestBarycentricInvariants(t *testing.T) {
	t.Parallel()

	p, f := gridPicker(t)
	m := f.Meshes[0]
	rng := rand.New(rand.NewSource(7))
	const eps = 1e-9
	for i := 0; i < 200; i++ {
		x, z := rng.Float64()*3, rng.Float64()*3
		sel, ok := p.PickRay(downRay(x, z))
		require.True(t, ok, "ray at %.3f,%.3f", x, z)

		b := sel.Barycentric
		assert.InDelta(t, 1, b[0]+b[1]+b[2], eps)
		for _, w := range b {
			assert.GreaterOrEqual(t, w, -eps)
		}

		// the weights rebuild the hit point from the posed vertices
		var got r3.Vector
		for k, vi := range sel.Triangle {
			v, err := m.Evaluate(vi)
			require.NoError(t, err)
			got = got.Add(v.Mul(b[k]))
		}
		assert.InDelta(t, x, got.X, 1e-9)
		assert.InDelta(t, z, got.Z, 1e-9)
	}
}

func TestBarycentricUsesBindFrame(t *testing.T) {
	t.Parallel()

	p, f := gridPicker(t)
	m := f.Meshes[0]
	// a non-trivial bind matrix and mesh placement must not change the
	// registration of a hit on the visible surface
	require.NoError(t, m.SetBindMatrix(geom.Compose(r3.Vector{X: 0.3}, geom.IdentityQuat, r3.Vector{X: 2, Y: 2, Z: 2})))
	f.Graph.Nodes[m.Node].Translation = r3.Vector{Z: -0.4}
	f.Pose()

	sel, ok := p.PickRay(downRay(1.2, 0.7))
	require.True(t, ok)
	var got r3.Vector
	for k, vi := range sel.Triangle {
		v, err := m.Evaluate(vi)
		require.NoError(t, err)
		got = got.Add(v.Mul(sel.Barycentric[k]))
	}
	assert.InDelta(t, sel.WorldPoint.X, got.X, 1e-9)
	assert.InDelta(t, sel.WorldPoint.Y, got.Y, 1e-9)
	assert.InDelta(t, sel.WorldPoint.Z, got.Z, 1e-9)
}

func TestPickIsIdempotent(t *testing.T) {
	t.Parallel()

	p, _ := gridPicker(t)
	a, ok := p.PickRay(downRay(2.2, 1.1))
	require.True(t, ok)
	b, ok := p.PickRay(downRay(2.2, 1.1))
	require.True(t, ok)
	assert.Equal(t, a.Triangle, b.Triangle)
	assert.Equal(t, a.Barycentric, b.Barycentric)
}

func TestCameraRayThroughViewportCentre(t *testing.T) {
	t.Parallel()

	cam := Camera{
		Position: r3.Vector{X: 1, Y: 5, Z: 1},
		Target:   r3.Vector{X: 1, Z: 1},
		Up:       r3.Vector{Z: -1},
		FovY:     50,
		Near:     0.1,
		Far:      50,
	}
	// a 200px side panel offsets the drawing area
	vp := Viewport{X: 200, Width: 600, Height: 400}
	ray := cam.RayThrough(vp, 500, 200)
	assert.InDelta(t, 0, ray.Direction.X, 1e-9)
	assert.InDelta(t, -1, ray.Direction.Y, 1e-9)
	assert.InDelta(t, 0, ray.Direction.Z, 1e-9)

	// ScreenPoint is the inverse mapping
	sx, sy, ok := cam.ScreenPoint(vp, r3.Vector{X: 1.5, Z: 0.5})
	require.True(t, ok)
	back := cam.RayThrough(vp, sx, sy)
	hit := back.At(5 / -back.Direction.Y)
	assert.InDelta(t, 1.5, hit.X, 1e-6)
	assert.InDelta(t, 0.5, hit.Z, 1e-6)
}

func TestPickOutsideViewport(t *testing.T) {
	t.Parallel()

	p, _ := gridPicker(t)
	p.Viewport = Viewport{X: 300, Width: 100, Height: 100}
	_, ok := p.Pick(10, 10)
	assert.False(t, ok)
}

func TestPickThroughCamera(t *testing.T) {
	t.Parallel()

	p, f := gridPicker(t)
	p.Camera = Camera{
		Position: r3.Vector{X: 1.25, Y: 4, Z: 1.5},
		Target:   r3.Vector{X: 1.25, Z: 1.5},
		Up:       r3.Vector{Z: -1},
		FovY:     60,
		Near:     0.1,
		Far:      20,
	}
	p.Viewport = Viewport{X: 100, Y: 20, Width: 640, Height: 480}
	sel, ok := p.Pick(100+320, 20+240)
	require.True(t, ok)
	assert.Same(t, f.Meshes[0], sel.Mesh)
	assert.InDelta(t, 1.25, sel.WorldPoint.X, 1e-6)
	assert.InDelta(t, 1.5, sel.WorldPoint.Z, 1e-6)
}

func TestBarycentricDegenerate(t *testing.T) {
	t.Parallel()

	b := Barycentric(r3.Vector{X: 1}, r3.Vector{}, r3.Vector{}, r3.Vector{})
	assert.InDelta(t, 1, b[0]+b[1]+b[2], 1e-12)
}
