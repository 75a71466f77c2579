package pick

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/rig"
)

const intersectEpsilon = 1e-12

// sameHitDistance is the distance below which two hits on one target are
// the same surface point reported by adjacent triangles.
const sameHitDistance = 1e-9

// Selection is the tracked point: one triangle of one skinned mesh and the
// barycentric weights of the point within it. A selection never changes
// after creation; a new click produces a new one.
type Selection struct {
	Mesh        *rig.SkinnedMesh
	Face        int
	Triangle    [3]int
	Barycentric [3]float64

	// Where the click landed, for the marker and for logging.
	WorldPoint r3.Vector
	LocalPoint r3.Vector
	Distance   float64
}

// Prop is static, non-trackable geometry (floor, marker) that still
// occludes picks.
type Prop struct {
	Name      string
	World     geom.Mat4
	Positions []r3.Vector
	Indices   []int
}

// NewGroundProp returns a square floor of the given half-size at y=0.
func NewGroundProp(half float64) Prop {
	return Prop{
		Name:  "ground",
		World: geom.Identity(),
		Positions: []r3.Vector{
			{X: -half, Z: -half}, {X: half, Z: -half},
			{X: half, Z: half}, {X: -half, Z: half},
		},
		Indices: []int{0, 2, 1, 0, 3, 2},
	}
}

// Hit is one ray/triangle intersection.
type Hit struct {
	Distance float64
	Point    r3.Vector
	Mesh     *rig.SkinnedMesh // nil for props
	Prop     string
	Face     int
	Vertices [3]r3.Vector // world-space, as intersected
}

// Picker intersects camera rays with the posed figure and any props.
type Picker struct {
	Camera   Camera
	Viewport Viewport
	Meshes   []*rig.SkinnedMesh
	Props    []Prop
}

// Pick returns the selection under a window coordinate. The figure must
// be posed for the current frame.
func (p *Picker) Pick(sx, sy float64) (*Selection, bool) {
	if !p.Viewport.Contains(sx, sy) {
		return nil, false
	}
	return p.PickRay(p.Camera.RayThrough(p.Viewport, sx, sy))
}

// PickRay returns the nearest hit on a skinned mesh along the ray, skipping
// nearer hits on props.
func (p *Picker) PickRay(ray Ray) (*Selection, bool) {
	for _, h := range p.Intersect(ray) {
		if h.Mesh == nil {
			continue
		}
		return newSelection(h), true
	}
	return nil, false
}

// Intersect returns every hit sorted nearest first. A ray through an edge
// or vertex shared by several triangles of one target yields a single hit
// on the lowest-numbered face.
func (p *Picker) Intersect(ray Ray) []Hit {
	var hits []Hit
	for _, m := range p.Meshes {
		verts := m.EvaluateAll()
		for f := 0; f < m.TriangleCount(); f++ {
			tri := m.Triangle(f)
			v := [3]r3.Vector{verts[tri[0]], verts[tri[1]], verts[tri[2]]}
			if t, ok := intersectTriangle(ray, v); ok {
				hits = append(hits, Hit{Distance: t, Point: ray.At(t), Mesh: m, Face: f, Vertices: v})
			}
		}
	}
	for _, pr := range p.Props {
		for f := 0; f+2 < len(pr.Indices); f += 3 {
			v := [3]r3.Vector{
				pr.World.MulPoint(pr.Positions[pr.Indices[f]]),
				pr.World.MulPoint(pr.Positions[pr.Indices[f+1]]),
				pr.World.MulPoint(pr.Positions[pr.Indices[f+2]]),
			}
			if t, ok := intersectTriangle(ray, v); ok {
				hits = append(hits, Hit{Distance: t, Point: ray.At(t), Prop: pr.Name, Face: f / 3, Vertices: v})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return dedupeHits(hits)
}

// dedupeHits drops hits that repeat an earlier hit on the same target at
// the same distance. hits must be sorted by distance.
func dedupeHits(hits []Hit) []Hit {
	out := hits[:0]
	for _, h := range hits {
		dup := false
		for i := len(out) - 1; i >= 0 && h.Distance-out[i].Distance < sameHitDistance; i-- {
			if out[i].Mesh == h.Mesh && out[i].Prop == h.Prop {
				if h.Face < out[i].Face {
					out[i] = h
				}
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, h)
		}
	}
	return out
}

// newSelection registers the hit in the mesh's local bind frame. The world
// hit and the triangle's world vertices both go through
// inverse(meshWorld × bindMatrix); using any other inverse shifts the
// registration against the visible surface.
func newSelection(h Hit) *Selection {
	m := h.Mesh
	toLocal, _ := geom.Mul(m.World(), m.BindMatrix).Inverse()
	local := toLocal.MulPoint(h.Point)
	a := toLocal.MulPoint(h.Vertices[0])
	b := toLocal.MulPoint(h.Vertices[1])
	c := toLocal.MulPoint(h.Vertices[2])

	return &Selection{
		Mesh:        m,
		Face:        h.Face,
		Triangle:    m.Triangle(h.Face),
		Barycentric: Barycentric(local, a, b, c),
		WorldPoint:  h.Point,
		LocalPoint:  local,
		Distance:    h.Distance,
	}
}

// Barycentric returns (u, v, w) with u+v+w = 1 such that p's projection on
// the triangle plane is u·a + v·b + w·c. A degenerate triangle returns the
// centroid weights.
func Barycentric(p, a, b, c r3.Vector) [3]float64 {
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)
	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d02 := v0.Dot(v2)
	d11 := v1.Dot(v1)
	d12 := v1.Dot(v2)
	denom := d00*d11 - d01*d01
	if math.Abs(denom) < intersectEpsilon {
		return [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	inv := 1 / denom
	wc := (d11*d02 - d01*d12) * inv
	wb := (d00*d12 - d01*d02) * inv
	bc := [3]float64{1 - wb - wc, wb, wc}
	sum := bc[0] + bc[1] + bc[2]
	return [3]float64{bc[0] / sum, bc[1] / sum, bc[2] / sum}
}

// intersectTriangle is Möller–Trumbore, double-sided.
func intersectTriangle(ray Ray, v [3]r3.Vector) (float64, bool) {
	e1 := v[1].Sub(v[0])
	e2 := v[2].Sub(v[0])
	pv := ray.Direction.Cross(e2)
	det := e1.Dot(pv)
	if math.Abs(det) < intersectEpsilon {
		return 0, false
	}
	inv := 1 / det
	tv := ray.Origin.Sub(v[0])
	u := tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qv := tv.Cross(e1)
	w := ray.Direction.Dot(qv) * inv
	if w < 0 || u+w > 1 {
		return 0, false
	}
	t := e2.Dot(qv) * inv
	if t <= intersectEpsilon {
		return 0, false
	}
	return t, true
}
