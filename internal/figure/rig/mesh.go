package rig

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/skintrack/internal/figure/geom"
)

// ErrVertexOutOfRange is returned when a vertex index is not in the mesh.
var ErrVertexOutOfRange = errors.New("rig: vertex index out of range")

// MaxInfluences is the number of (joint, weight) slots per vertex.
const MaxInfluences = 4

// SkinnedMesh is a deformable triangle surface driven by a skeleton.
// Positions are bind-pose, mesh-local.
type SkinnedMesh struct {
	Name string

	Positions []r3.Vector
	Joints    [][MaxInfluences]int
	Weights   [][MaxInfluences]float64
	Indices   []int // triangle list, three per face

	Node     int // graph node supplying the mesh world transform
	Skeleton *Skeleton

	// BindMatrix is the mesh world transform captured when the skeleton was
	// bound. Bone matrices are world-space, so the blended point is mapped
	// back through the current world inverse to get the mesh-local result.
	BindMatrix geom.Mat4

	graph    *Graph
	worldInv geom.Mat4
}

// NewSkinnedMesh validates attribute lengths and index ranges.
func NewSkinnedMesh(name string, g *Graph, node int, positions []r3.Vector, joints [][MaxInfluences]int, weights [][MaxInfluences]float64, indices []int, skel *Skeleton) (*SkinnedMesh, error) {
	if node < 0 || node >= len(g.Nodes) {
		return nil, fmt.Errorf("rig: mesh %q node %d out of range", name, node)
	}
	if len(joints) != len(positions) || len(weights) != len(positions) {
		return nil, fmt.Errorf("rig: mesh %q has %d positions, %d joint sets, %d weight sets",
			name, len(positions), len(joints), len(weights))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("rig: mesh %q index count %d is not a multiple of 3", name, len(indices))
	}
	for _, ix := range indices {
		if ix < 0 || ix >= len(positions) {
			return nil, fmt.Errorf("rig: mesh %q index %d outside %d vertices", name, ix, len(positions))
		}
	}
	if skel == nil {
		return nil, fmt.Errorf("rig: mesh %q has no skeleton", name)
	}
	m := &SkinnedMesh{
		Name:       name,
		Positions:  positions,
		Joints:     joints,
		Weights:    weights,
		Indices:    indices,
		Node:       node,
		Skeleton:   skel,
		BindMatrix: geom.Identity(),
		graph:      g,
		worldInv:   geom.Identity(),
	}
	m.Refresh()
	return m, nil
}

// SetBindMatrix sets the bind matrix. It must be invertible because
// picking maps hits back through it.
func (m *SkinnedMesh) SetBindMatrix(b geom.Mat4) error {
	if _, ok := b.Inverse(); !ok {
		return fmt.Errorf("rig: mesh %q bind matrix is singular", m.Name)
	}
	m.BindMatrix = b
	return nil
}

// Refresh caches the inverse of the mesh world transform. Call once per
// frame after the graph and skeleton are updated.
func (m *SkinnedMesh) Refresh() {
	if inv, ok := m.World().Inverse(); ok {
		m.worldInv = inv
	}
}

// World returns the mesh node's current world transform.
func (m *SkinnedMesh) World() geom.Mat4 {
	return m.graph.Nodes[m.Node].World
}

// TriangleCount returns the number of faces.
func (m *SkinnedMesh) TriangleCount() int { return len(m.Indices) / 3 }

// Triangle returns the vertex indices of face f.
func (m *SkinnedMesh) Triangle(f int) [3]int {
	return [3]int{m.Indices[3*f], m.Indices[3*f+1], m.Indices[3*f+2]}
}

// Evaluate returns the world-space position of vertex i under the current
// skeleton pose. The skeleton must have been updated for this frame; stale
// bone matrices give a stale (not invalid) answer.
func (m *SkinnedMesh) Evaluate(i int) (r3.Vector, error) {
	if i < 0 || i >= len(m.Positions) {
		return r3.Vector{}, fmt.Errorf("%w: %d of %d in %q", ErrVertexOutOfRange, i, len(m.Positions), m.Name)
	}
	return m.World().MulPoint(m.skinLocal(i)), nil
}

// skinLocal blends bone transforms and returns the result in the mesh's
// own frame.
func (m *SkinnedMesh) skinLocal(i int) r3.Vector {
	skinVertex := m.BindMatrix.MulPoint(m.Positions[i])
	var acc r3.Vector
	bones := m.Skeleton.BoneMatrices
	for k := 0; k < MaxInfluences; k++ {
		w := m.Weights[i][k]
		if w == 0 {
			continue
		}
		j := m.Joints[i][k]
		if j < 0 || j >= len(bones) {
			continue
		}
		acc = acc.Add(bones[j].MulPoint(skinVertex).Mul(w))
	}
	return m.worldInv.MulPoint(acc)
}

// EvaluateAll returns world positions for every vertex. Used by ray
// picking, which needs the whole posed surface once per click.
func (m *SkinnedMesh) EvaluateAll() []r3.Vector {
	world := m.World()
	out := make([]r3.Vector, len(m.Positions))
	for i := range m.Positions {
		out[i] = world.MulPoint(m.skinLocal(i))
	}
	return out
}
