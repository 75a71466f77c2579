// Package anim plays keyframe clips onto the figure's scene graph: clip
// sampling, the enumerated action list, play/pause/speed/seek and the
// one-second cross-fade between clips.
package anim

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/skintrack/internal/figure/geom"
)

// Path is the node property a track drives.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	}
	return fmt.Sprintf("path(%d)", int(p))
}

// Components returns the value width of the path (3 or 4).
func (p Path) Components() int {
	if p == PathRotation {
		return 4
	}
	return 3
}

// Interpolation between keyframes.
type Interpolation int

const (
	Linear Interpolation = iota
	Step
	// CubicSpline keys carry (in-tangent, value, out-tangent) triples.
	// Only the value is used; the curve is sampled linearly between keys.
	CubicSpline
)

// Track animates one property of one node. Values are flat: Components()
// numbers per key, three times that for CubicSpline. Rotations are x, y,
// z, w.
type Track struct {
	Node          int
	Path          Path
	Interpolation Interpolation
	Times         []float64
	Values        []float64
}

// Validate checks key counts and ordering.
func (t *Track) Validate() error {
	if len(t.Times) == 0 {
		return fmt.Errorf("anim: track node %d %s has no keys", t.Node, t.Path)
	}
	stride := t.Path.Components()
	if t.Interpolation == CubicSpline {
		stride *= 3
	}
	if len(t.Values) != len(t.Times)*stride {
		return fmt.Errorf("anim: track node %d %s has %d values for %d keys (want %d each)",
			t.Node, t.Path, len(t.Values), len(t.Times), stride)
	}
	if !sort.Float64sAreSorted(t.Times) {
		return fmt.Errorf("anim: track node %d %s times are not ascending", t.Node, t.Path)
	}
	return nil
}

// key returns the value slice of key k.
func (t *Track) key(k int) []float64 {
	n := t.Path.Components()
	if t.Interpolation == CubicSpline {
		base := k*3*n + n
		return t.Values[base : base+n]
	}
	return t.Values[k*n : k*n+n]
}

// Vector samples a translation or scale track.
func (t *Track) Vector(at float64) r3.Vector {
	a, b, f := t.span(at)
	va, vb := t.key(a), t.key(b)
	if t.Interpolation == Step {
		f = 0
	}
	return r3.Vector{
		X: va[0] + (vb[0]-va[0])*f,
		Y: va[1] + (vb[1]-va[1])*f,
		Z: va[2] + (vb[2]-va[2])*f,
	}
}

// Quat samples a rotation track.
func (t *Track) Quat(at float64) quat.Number {
	a, b, f := t.span(at)
	va, vb := t.key(a), t.key(b)
	qa := geom.NormalizeQuat(geom.QuatXYZW(va[0], va[1], va[2], va[3]))
	if t.Interpolation == Step || a == b {
		return qa
	}
	qb := geom.NormalizeQuat(geom.QuatXYZW(vb[0], vb[1], vb[2], vb[3]))
	return geom.Slerp(qa, qb, f)
}

// span finds the keys around time at and the fraction between them.
// Times outside the key range clamp to the end keys.
func (t *Track) span(at float64) (int, int, float64) {
	n := len(t.Times)
	if at <= t.Times[0] || n == 1 {
		return 0, 0, 0
	}
	if at >= t.Times[n-1] {
		return n - 1, n - 1, 0
	}
	b := sort.SearchFloat64s(t.Times, at)
	if t.Times[b] == at {
		return b, b, 0
	}
	a := b - 1
	d := t.Times[b] - t.Times[a]
	if d <= 0 {
		return b, b, 0
	}
	return a, b, (at - t.Times[a]) / d
}

// Clip is a named set of tracks.
type Clip struct {
	Name     string
	Duration float64
	Tracks   []Track
}

// NewClip validates the tracks and derives the duration from the last key.
func NewClip(name string, tracks []Track) (*Clip, error) {
	c := &Clip{Name: name, Tracks: tracks}
	for i := range tracks {
		if err := tracks[i].Validate(); err != nil {
			return nil, fmt.Errorf("clip %q: %w", name, err)
		}
		if last := tracks[i].Times[len(tracks[i].Times)-1]; last > c.Duration {
			c.Duration = last
		}
	}
	return c, nil
}

// StripRootTranslation returns a copy of c without translation tracks on
// the root node, so the clip animates in place.
func StripRootTranslation(c *Clip, root int) *Clip {
	out := &Clip{Name: c.Name, Duration: c.Duration}
	for _, t := range c.Tracks {
		if t.Node == root && t.Path == PathTranslation {
			continue
		}
		out.Tracks = append(out.Tracks, t)
	}
	return out
}

// Retarget remaps track nodes through m (source node → target node) and
// drops tracks whose node has no mapping.
func Retarget(c *Clip, m map[int]int) *Clip {
	out := &Clip{Name: c.Name, Duration: c.Duration}
	for _, t := range c.Tracks {
		dst, ok := m[t.Node]
		if !ok {
			continue
		}
		t.Node = dst
		out.Tracks = append(out.Tracks, t)
	}
	return out
}
