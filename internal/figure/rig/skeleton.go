package rig

import (
	"fmt"

	"github.com/banshee-data/skintrack/internal/figure/geom"
)

// Skeleton binds a list of graph nodes (joints) to their inverse bind
// matrices. BoneMatrices is refreshed by Update and must be current before
// any skinned vertex is evaluated.
type Skeleton struct {
	graph        *Graph
	Joints       []int
	InverseBinds []geom.Mat4
	BoneMatrices []geom.Mat4
}

// NewSkeleton checks that every joint exists in the graph. A nil
// inverseBinds means identity for every joint.
func NewSkeleton(g *Graph, joints []int, inverseBinds []geom.Mat4) (*Skeleton, error) {
	if inverseBinds == nil {
		inverseBinds = make([]geom.Mat4, len(joints))
		for i := range inverseBinds {
			inverseBinds[i] = geom.Identity()
		}
	}
	if len(inverseBinds) != len(joints) {
		return nil, fmt.Errorf("rig: %d joints but %d inverse bind matrices", len(joints), len(inverseBinds))
	}
	for i, j := range joints {
		if j < 0 || j >= len(g.Nodes) {
			return nil, fmt.Errorf("rig: joint %d references node %d of %d", i, j, len(g.Nodes))
		}
	}
	s := &Skeleton{
		graph:        g,
		Joints:       joints,
		InverseBinds: inverseBinds,
		BoneMatrices: make([]geom.Mat4, len(joints)),
	}
	s.Update()
	return s, nil
}

// Update recomputes bone matrices from the graph's current world
// transforms. Call after Graph.UpdateWorld.
func (s *Skeleton) Update() {
	for i, j := range s.Joints {
		s.BoneMatrices[i] = geom.Mul(s.graph.Nodes[j].World, s.InverseBinds[i])
	}
}

// Len returns the joint count.
func (s *Skeleton) Len() int { return len(s.Joints) }
