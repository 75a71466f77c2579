package rig

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// NewGridFigure builds a flat rows×cols vertex grid in the XZ plane bound
// to a two-joint chain (root at the origin, child offset along +Y). Vertex
// (r, c) sits at (c, 0, r) and is weighted fully to joint 0, except that
// vertices in the last column are split 50/50 between both joints.
// Triangles are emitted two per grid cell.
//
// It exists so tests across the figure packages share one well-understood
// figure instead of hand-building graphs.
func NewGridFigure(rows, cols int) (*Figure, error) {
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("rig: grid needs at least 2×2 vertices, got %d×%d", rows, cols)
	}
	g, err := NewGraph([]Node{
		{Name: "Armature", Parent: -1},
		{Name: "Hips", Parent: 0},
		{Name: "Spine", Parent: 1, Translation: r3.Vector{Y: 1}},
		{Name: "Body", Parent: -1},
	})
	if err != nil {
		return nil, err
	}
	// Joints: Hips and Spine. Spine's inverse bind undoes its rest offset.
	skel, err := NewSkeleton(g, []int{1, 2}, nil)
	if err != nil {
		return nil, err
	}
	spineInv, _ := g.Nodes[2].World.Inverse()
	skel.InverseBinds[1] = spineInv
	skel.Update()

	n := rows * cols
	pos := make([]r3.Vector, n)
	joints := make([][MaxInfluences]int, n)
	weights := make([][MaxInfluences]float64, n)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			pos[i] = r3.Vector{X: float64(c), Z: float64(r)}
			if c == cols-1 {
				joints[i] = [MaxInfluences]int{0, 1, 0, 0}
				weights[i] = [MaxInfluences]float64{0.5, 0.5, 0, 0}
			} else {
				weights[i] = [MaxInfluences]float64{1, 0, 0, 0}
			}
		}
	}
	var idx []int
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			a := r*cols + c
			b := a + 1
			d := a + cols
			e := d + 1
			idx = append(idx, a, d, b, b, d, e)
		}
	}
	mesh, err := NewSkinnedMesh("Body", g, 3, pos, joints, weights, idx, skel)
	if err != nil {
		return nil, err
	}
	f := &Figure{Graph: g, Skeletons: []*Skeleton{skel}, Meshes: []*SkinnedMesh{mesh}}
	f.Pose()
	return f, nil
}
