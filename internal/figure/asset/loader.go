// Package asset builds a rig.Figure and its animation clips from glTF/GLB
// files. The base model is read first; each auxiliary file then contributes
// one clip, retargeted onto the base skeleton by node name.
package asset

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/banshee-data/skintrack/internal/figure/anim"
	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/pick"
	"github.com/banshee-data/skintrack/internal/figure/rig"
	"github.com/banshee-data/skintrack/internal/monitoring"
)

// Source names one auxiliary animation file.
type Source struct {
	Name string
	Path string
}

// Options control post-load clip handling.
type Options struct {
	// Idle names the clip whose root translation is stripped so it plays
	// in place. Empty means no clip is stripped.
	Idle string
}

// Model is everything the viewer needs from the loaded assets.
type Model struct {
	Figure *rig.Figure
	// Props are the unskinned meshes: pickable occluders, never tracked.
	Props []pick.Prop
	Clips []*anim.Clip
	// Root is the graph index of the skeleton's root joint, or -1.
	Root int
}

// Load reads the base model and then every auxiliary source in order. The
// first failure aborts the load; nothing is retried.
func Load(base string, aux []Source, opts Options) (*Model, error) {
	doc, err := gltf.Open(base)
	if err != nil {
		return nil, fmt.Errorf("asset: open model %s: %w", base, err)
	}
	m, err := LoadFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("asset: model %s: %w", base, err)
	}
	monitoring.Logf("[asset] loaded %s: %d nodes, %d meshes, %d vertices, %d clips",
		base, len(m.Figure.Graph.Nodes), len(m.Figure.Meshes), m.Figure.VertexCount(), len(m.Clips))

	for _, src := range aux {
		d, err := gltf.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("asset: open clip %s (%s): %w", src.Name, src.Path, err)
		}
		if err := m.AddClip(src.Name, d); err != nil {
			return nil, fmt.Errorf("asset: clip %s (%s): %w", src.Name, src.Path, err)
		}
		monitoring.Logf("[asset] loaded clip %q from %s", src.Name, src.Path)
	}
	// a model without the idle clip still loads; playback starts on its first clip
	if err := m.StripIdle(opts.Idle); err != nil {
		monitoring.Logf("[asset] %v; no clip plays in place", err)
	}
	return m, nil
}

// LoadFromDocument builds the figure, props and embedded clips from an
// already decoded document.
func LoadFromDocument(doc *gltf.Document) (*Model, error) {
	g, nodeMap, err := buildGraph(doc)
	if err != nil {
		return nil, err
	}
	fig := &rig.Figure{Graph: g}
	m := &Model{Figure: fig, Root: -1}

	skeletons := make(map[int]*rig.Skeleton)
	for _, pair := range orderedNodes(nodeMap) {
		src, dst := pair[0], pair[1]
		n := doc.Nodes[src]
		if n.Mesh == nil {
			continue
		}
		if *n.Mesh < 0 || *n.Mesh >= len(doc.Meshes) {
			return nil, fmt.Errorf("node %q: mesh %d out of range", n.Name, *n.Mesh)
		}
		mesh := doc.Meshes[*n.Mesh]
		if n.Skin == nil {
			m.Props = append(m.Props, readProps(doc, mesh, n.Name, g.Nodes[dst].World)...)
			continue
		}
		skel, ok := skeletons[*n.Skin]
		if !ok {
			skel, err = readSkin(doc, *n.Skin, g, nodeMap)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", n.Name, err)
			}
			skeletons[*n.Skin] = skel
			fig.Skeletons = append(fig.Skeletons, skel)
		}
		meshes, err := readSkinnedMeshes(doc, mesh, n.Name, g, dst, skel)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", n.Name, err)
		}
		fig.Meshes = append(fig.Meshes, meshes...)
	}
	if len(fig.Meshes) == 0 {
		return nil, fmt.Errorf("no skinned triangle mesh in document")
	}
	m.Root = rootJoint(g, fig.Skeletons[0])

	for i, a := range doc.Animations {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("clip%d", i)
		}
		c, err := readClip(doc, a, name, nodeMap)
		if err != nil {
			return nil, err
		}
		m.Clips = append(m.Clips, c)
	}
	fig.Pose()
	return m, nil
}

// AddClip takes the first animation of doc, retargets it onto the base
// graph by node name and appends it under name.
func (m *Model) AddClip(name string, doc *gltf.Document) error {
	if len(doc.Animations) == 0 {
		return fmt.Errorf("no animation in document")
	}
	own := make(map[int]int, len(doc.Nodes))
	byName := make(map[int]int)
	for i, n := range doc.Nodes {
		own[i] = i
		if dst, ok := m.Figure.Graph.Lookup(n.Name); ok && n.Name != "" {
			byName[i] = dst
		}
	}
	src, err := readClip(doc, doc.Animations[0], name, own)
	if err != nil {
		return err
	}
	c := anim.Retarget(src, byName)
	if len(c.Tracks) == 0 {
		return fmt.Errorf("animation %q shares no node names with the model", doc.Animations[0].Name)
	}
	m.Clips = append(m.Clips, c)
	return nil
}

// StripIdle replaces the named clip with a copy that has no root
// translation. An empty name is a no-op.
func (m *Model) StripIdle(name string) error {
	if name == "" {
		return nil
	}
	for i, c := range m.Clips {
		if c.Name == name {
			if m.Root >= 0 {
				m.Clips[i] = anim.StripRootTranslation(c, m.Root)
			}
			return nil
		}
	}
	return fmt.Errorf("asset: idle clip %q not loaded", name)
}

// buildGraph flattens the node tree into parent-before-child order. Only
// nodes reachable from the default scene (or from every parentless node
// when there is none) are kept. The returned map is glTF index → graph
// index.
func buildGraph(doc *gltf.Document) (*rig.Graph, map[int]int, error) {
	parent := make([]int, len(doc.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(doc.Nodes) {
				return nil, nil, fmt.Errorf("node %d: child %d out of range", i, c)
			}
			if parent[c] >= 0 {
				return nil, nil, fmt.Errorf("node %d has two parents", c)
			}
			parent[c] = i
		}
	}

	var roots []int
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		roots = doc.Scenes[*doc.Scene].Nodes
	} else {
		for i, p := range parent {
			if p < 0 {
				roots = append(roots, i)
			}
		}
	}

	nodeMap := make(map[int]int, len(doc.Nodes))
	var nodes []rig.Node
	var visit func(src, dstParent int) error
	visit = func(src, dstParent int) error {
		if src < 0 || src >= len(doc.Nodes) {
			return fmt.Errorf("scene node %d out of range", src)
		}
		if _, seen := nodeMap[src]; seen {
			return fmt.Errorf("node %d reached twice", src)
		}
		n := doc.Nodes[src]
		nodeMap[src] = len(nodes)
		nodes = append(nodes, localTRS(n, dstParent))
		self := nodeMap[src]
		for _, c := range n.Children {
			if err := visit(c, self); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := visit(r, -1); err != nil {
			return nil, nil, err
		}
	}
	g, err := rig.NewGraph(nodes)
	if err != nil {
		return nil, nil, err
	}
	return g, nodeMap, nil
}

func localTRS(n *gltf.Node, parent int) rig.Node {
	out := rig.Node{Name: n.Name, Parent: parent}
	if mtx := n.MatrixOrDefault(); mtx != gltf.DefaultMatrix {
		var a [16]float64
		copy(a[:], mtx[:])
		out.Translation, out.Rotation, out.Scale = geom.Decompose(geom.FromColumnMajor(a))
		return out
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	out.Translation = r3.Vector{X: t[0], Y: t[1], Z: t[2]}
	out.Rotation = geom.NormalizeQuat(geom.QuatXYZW(r[0], r[1], r[2], r[3]))
	out.Scale = r3.Vector{X: s[0], Y: s[1], Z: s[2]}
	return out
}

// orderedNodes returns (glTF index, graph index) pairs in graph order so
// meshes come out in a stable order.
func orderedNodes(nodeMap map[int]int) [][2]int {
	out := make([][2]int, len(nodeMap))
	for src, dst := range nodeMap {
		out[dst] = [2]int{src, dst}
	}
	return out
}

func readSkin(doc *gltf.Document, skinIdx int, g *rig.Graph, nodeMap map[int]int) (*rig.Skeleton, error) {
	if skinIdx < 0 || skinIdx >= len(doc.Skins) {
		return nil, fmt.Errorf("skin %d out of range", skinIdx)
	}
	skin := doc.Skins[skinIdx]
	joints := make([]int, len(skin.Joints))
	for i, j := range skin.Joints {
		dst, ok := nodeMap[j]
		if !ok {
			return nil, fmt.Errorf("skin %d joint %d is not in the scene", skinIdx, j)
		}
		joints[i] = dst
	}
	var inverseBinds []geom.Mat4
	if skin.InverseBindMatrices != nil {
		acr, err := accessor(doc, *skin.InverseBindMatrices)
		if err != nil {
			return nil, err
		}
		data, err := modeler.ReadAccessor(doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("skin %d inverse binds: %w", skinIdx, err)
		}
		mats, ok := data.([][4][4]float32)
		if !ok {
			return nil, fmt.Errorf("skin %d inverse binds: unexpected %T", skinIdx, data)
		}
		for _, cm := range mats {
			var a [16]float64
			for c := 0; c < 4; c++ {
				for r := 0; r < 4; r++ {
					a[c*4+r] = float64(cm[c][r])
				}
			}
			inverseBinds = append(inverseBinds, geom.FromColumnMajor(a))
		}
	}
	return rig.NewSkeleton(g, joints, inverseBinds)
}

func accessor(doc *gltf.Document, i int) (*gltf.Accessor, error) {
	if i < 0 || i >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", i)
	}
	return doc.Accessors[i], nil
}

func readIndices(doc *gltf.Document, p *gltf.Primitive, count int) ([]int, error) {
	if p.Indices == nil {
		idx := make([]int, count)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	acr, err := accessor(doc, *p.Indices)
	if err != nil {
		return nil, err
	}
	raw, err := modeler.ReadIndices(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	idx := make([]int, len(raw))
	for i, v := range raw {
		idx[i] = int(v)
	}
	return idx, nil
}

func readPositions(doc *gltf.Document, p *gltf.Primitive) ([]r3.Vector, error) {
	pi, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION")
	}
	acr, err := accessor(doc, pi)
	if err != nil {
		return nil, err
	}
	raw, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	out := make([]r3.Vector, len(raw))
	for i, v := range raw {
		out[i] = r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
	}
	return out, nil
}

func readSkinnedMeshes(doc *gltf.Document, mesh *gltf.Mesh, name string, g *rig.Graph, node int, skel *rig.Skeleton) ([]*rig.SkinnedMesh, error) {
	var out []*rig.SkinnedMesh
	for k, p := range mesh.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			continue
		}
		ji, jok := p.Attributes[gltf.JOINTS_0]
		wi, wok := p.Attributes[gltf.WEIGHTS_0]
		if !jok || !wok {
			continue
		}
		pos, err := readPositions(doc, p)
		if err != nil {
			return nil, err
		}
		jacr, err := accessor(doc, ji)
		if err != nil {
			return nil, err
		}
		rawJ, err := modeler.ReadJoints(doc, jacr, nil)
		if err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
		wacr, err := accessor(doc, wi)
		if err != nil {
			return nil, err
		}
		rawW, err := modeler.ReadWeights(doc, wacr, nil)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		joints := make([][rig.MaxInfluences]int, len(rawJ))
		for i, j := range rawJ {
			joints[i] = [rig.MaxInfluences]int{int(j[0]), int(j[1]), int(j[2]), int(j[3])}
		}
		weights := make([][rig.MaxInfluences]float64, len(rawW))
		for i, w := range rawW {
			weights[i] = [rig.MaxInfluences]float64{float64(w[0]), float64(w[1]), float64(w[2]), float64(w[3])}
		}
		idx, err := readIndices(doc, p, len(pos))
		if err != nil {
			return nil, err
		}

		meshName := name
		if len(mesh.Primitives) > 1 {
			meshName = fmt.Sprintf("%s#%d", name, k)
		}
		sm, err := rig.NewSkinnedMesh(meshName, g, node, pos, joints, weights, idx, skel)
		if err != nil {
			return nil, err
		}
		// bound where it stands at load time
		if err := sm.SetBindMatrix(g.Nodes[node].World); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, nil
}

func readProps(doc *gltf.Document, mesh *gltf.Mesh, name string, world geom.Mat4) []pick.Prop {
	var out []pick.Prop
	for _, p := range mesh.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			continue
		}
		pos, err := readPositions(doc, p)
		if err != nil {
			monitoring.Logf("[asset] skipping prop %q: %v", name, err)
			continue
		}
		idx, err := readIndices(doc, p, len(pos))
		if err != nil {
			monitoring.Logf("[asset] skipping prop %q: %v", name, err)
			continue
		}
		out = append(out, pick.Prop{Name: name, World: world, Positions: pos, Indices: idx})
	}
	return out
}

// rootJoint is the first joint whose parent is not itself a joint.
func rootJoint(g *rig.Graph, s *rig.Skeleton) int {
	isJoint := make(map[int]bool, len(s.Joints))
	for _, j := range s.Joints {
		isJoint[j] = true
	}
	for _, j := range s.Joints {
		if !isJoint[g.Nodes[j].Parent] {
			return j
		}
	}
	return -1
}
