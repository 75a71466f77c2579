// Package rig owns the skinned character: scene graph, skeletons and
// skinned meshes, and the per-vertex skin evaluation every other figure
// package builds on.
//
// Key types: Graph, Skeleton, SkinnedMesh, Figure.
//
// Ordering rule: animation writes local TRS, then Figure.Pose refreshes
// world transforms, bone matrices and mesh inverses in that order. Any
// Evaluate call made before Pose in a frame sees the previous frame's pose.
package rig

// Figure groups everything loaded from one base asset.
type Figure struct {
	Graph     *Graph
	Skeletons []*Skeleton
	Meshes    []*SkinnedMesh
}

// Pose brings world transforms and bone matrices up to date with the
// graph's local TRS.
func (f *Figure) Pose() {
	f.Graph.UpdateWorld()
	for _, s := range f.Skeletons {
		s.Update()
	}
	for _, m := range f.Meshes {
		m.Refresh()
	}
}

// Mesh returns the mesh with the given name, or nil.
func (f *Figure) Mesh(name string) *SkinnedMesh {
	for _, m := range f.Meshes {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// VertexCount totals vertices across all meshes.
func (f *Figure) VertexCount() int {
	n := 0
	for _, m := range f.Meshes {
		n += len(m.Positions)
	}
	return n
}
