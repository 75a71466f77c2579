package rig

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/skintrack/internal/figure/geom"
)

// Node is one transform in the scene graph. Local TRS is what animation
// writes; World is derived by Graph.UpdateWorld.
type Node struct {
	Name   string
	Parent int // -1 for roots

	Translation r3.Vector
	Rotation    quat.Number
	Scale       r3.Vector

	// Rest holds the TRS the asset declared, used for channels no clip drives.
	RestTranslation r3.Vector
	RestRotation    quat.Number
	RestScale       r3.Vector

	World geom.Mat4
}

// Local returns translation × rotation × scale.
func (n *Node) Local() geom.Mat4 {
	return geom.Compose(n.Translation, n.Rotation, n.Scale)
}

// ResetToRest restores the declared TRS.
func (n *Node) ResetToRest() {
	n.Translation = n.RestTranslation
	n.Rotation = n.RestRotation
	n.Scale = n.RestScale
}

// Graph is a flat node list in parent-before-child order.
type Graph struct {
	Nodes []Node
	// Root is applied above every root node (display scale, placement).
	Root geom.Mat4

	byName map[string]int
}

// NewGraph validates ordering and builds the name index. Parents must
// precede their children.
func NewGraph(nodes []Node) (*Graph, error) {
	g := &Graph{Nodes: nodes, Root: geom.Identity(), byName: make(map[string]int, len(nodes))}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Parent >= i {
			return nil, fmt.Errorf("rig: node %d (%q) has parent %d that does not precede it", i, n.Name, n.Parent)
		}
		if n.Scale == (r3.Vector{}) {
			n.Scale = r3.Vector{X: 1, Y: 1, Z: 1}
		}
		if n.Rotation == (quat.Number{}) {
			n.Rotation = geom.IdentityQuat
		}
		n.RestTranslation, n.RestRotation, n.RestScale = n.Translation, n.Rotation, n.Scale
		if n.Name != "" {
			if _, dup := g.byName[n.Name]; !dup {
				g.byName[n.Name] = i
			}
		}
	}
	g.UpdateWorld()
	return g, nil
}

// Lookup returns the index of the first node with the given name.
func (g *Graph) Lookup(name string) (int, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// UpdateWorld recomputes every node's world matrix from local TRS.
func (g *Graph) UpdateWorld() {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Parent >= 0 {
			n.World = geom.Mul(g.Nodes[n.Parent].World, n.Local())
		} else {
			n.World = geom.Mul(g.Root, n.Local())
		}
	}
}

// ResetToRest restores every node's declared TRS.
func (g *Graph) ResetToRest() {
	for i := range g.Nodes {
		g.Nodes[i].ResetToRest()
	}
}
