package anim

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/rig"
)

// DefaultCrossfade is the fade between clips, in seconds.
const DefaultCrossfade = 1.0

// ErrUnknownAction is returned for an action ID outside the action list.
var ErrUnknownAction = errors.New("anim: unknown action")

// ActionID is a stable index into the mixer's action list.
type ActionID int

// NoAction means nothing is playing.
const NoAction ActionID = -1

// ActionInfo describes one selectable action.
type ActionInfo struct {
	ID       ActionID `json:"id"`
	Name     string   `json:"name"`
	Duration float64  `json:"duration"`
}

type action struct {
	clip   *Clip
	time   float64
	weight float64

	fading    bool
	fadeFrom  float64
	fadeTo    float64
	fadeTime  float64
	fadeTotal float64
}

func (a *action) advanceFade(dt float64) {
	if !a.fading {
		return
	}
	a.fadeTime += dt
	if a.fadeTotal <= 0 || a.fadeTime >= a.fadeTotal {
		a.weight = a.fadeTo
		a.fading = false
		return
	}
	a.weight = a.fadeFrom + (a.fadeTo-a.fadeFrom)*a.fadeTime/a.fadeTotal
}

func (a *action) fade(to, over float64) {
	a.fading = true
	a.fadeFrom = a.weight
	a.fadeTo = to
	a.fadeTime = 0
	a.fadeTotal = over
}

// Mixer owns one action per clip and writes the blended pose into the
// graph on Update.
type Mixer struct {
	graph     *rig.Graph
	actions   []*action
	active    ActionID
	paused    bool
	speed     float64
	crossfade float64
}

// NewMixer creates one action per clip, in order. Action IDs are the clip
// indices.
func NewMixer(g *rig.Graph, clips []*Clip, crossfade float64) *Mixer {
	if crossfade < 0 {
		crossfade = DefaultCrossfade
	}
	m := &Mixer{graph: g, active: NoAction, speed: 1, crossfade: crossfade}
	for _, c := range clips {
		m.actions = append(m.actions, &action{clip: c})
	}
	return m
}

// Actions lists every selectable action.
func (m *Mixer) Actions() []ActionInfo {
	out := make([]ActionInfo, len(m.actions))
	for i, a := range m.actions {
		out[i] = ActionInfo{ID: ActionID(i), Name: a.clip.Name, Duration: a.clip.Duration}
	}
	return out
}

// Lookup returns the ID of the named action. For configuration only; the
// runtime control path uses IDs.
func (m *Mixer) Lookup(name string) (ActionID, bool) {
	for i, a := range m.actions {
		if a.clip.Name == name {
			return ActionID(i), true
		}
	}
	return NoAction, false
}

// Active returns the action currently fading in or playing.
func (m *Mixer) Active() ActionID { return m.active }

// Play makes id the active action. The previous action fades out while id
// fades in over the cross-fade duration; with nothing playing id starts at
// full weight.
func (m *Mixer) Play(id ActionID) error {
	if id < 0 || int(id) >= len(m.actions) {
		return fmt.Errorf("%w: %d", ErrUnknownAction, id)
	}
	if id == m.active {
		return nil
	}
	next := m.actions[id]
	next.time = 0
	if m.active == NoAction {
		next.weight = 1
		next.fading = false
	} else {
		m.actions[m.active].fade(0, m.crossfade)
		next.fade(1, m.crossfade)
	}
	m.active = id
	return nil
}

// SetPaused freezes or resumes clip time and fades.
func (m *Mixer) SetPaused(p bool) { m.paused = p }

// Paused reports whether playback is frozen.
func (m *Mixer) Paused() bool { return m.paused }

// SetSpeed sets the playback rate. Negative rates are clamped to zero.
func (m *Mixer) SetSpeed(s float64) {
	if s < 0 || math.IsNaN(s) {
		s = 0
	}
	m.speed = s
}

// Speed returns the playback rate.
func (m *Mixer) Speed() float64 { return m.speed }

// Progress is the active clip's time over its duration, in [0, 1].
func (m *Mixer) Progress() float64 {
	if m.active == NoAction {
		return 0
	}
	a := m.actions[m.active]
	if a.clip.Duration <= 0 {
		return 0
	}
	return a.time / a.clip.Duration
}

// Seek moves the active clip to progress × duration.
func (m *Mixer) Seek(progress float64) error {
	if m.active == NoAction {
		return fmt.Errorf("%w: nothing playing", ErrUnknownAction)
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	a := m.actions[m.active]
	a.time = progress * a.clip.Duration
	return nil
}

// Update advances time by dt × speed (unless paused) and writes the pose.
func (m *Mixer) Update(dt float64) {
	step := dt * m.speed
	if m.paused || step < 0 {
		step = 0
	}
	for _, a := range m.actions {
		if a.weight == 0 && !a.fading {
			continue
		}
		a.advanceFade(step)
		if d := a.clip.Duration; d > 0 {
			a.time = math.Mod(a.time+step, d)
		}
	}
	m.apply()
}

type binding struct {
	node int
	path Path
}

type accum struct {
	weight float64
	vec    r3.Vector
	rot    quat.Number
}

// apply blends every weighted action and mixes the remainder with the
// rest pose.
func (m *Mixer) apply() {
	acc := make(map[binding]*accum)
	for _, a := range m.actions {
		if a.weight <= 0 {
			continue
		}
		for i := range a.clip.Tracks {
			t := &a.clip.Tracks[i]
			if t.Node < 0 || t.Node >= len(m.graph.Nodes) {
				continue
			}
			k := binding{t.Node, t.Path}
			s, ok := acc[k]
			if !ok {
				s = &accum{rot: geom.IdentityQuat}
				acc[k] = s
			}
			total := s.weight + a.weight
			if t.Path == PathRotation {
				q := t.Quat(a.time)
				if s.weight == 0 {
					s.rot = q
				} else {
					s.rot = geom.Slerp(s.rot, q, a.weight/total)
				}
			} else {
				s.vec = s.vec.Add(t.Vector(a.time).Mul(a.weight))
			}
			s.weight = total
		}
	}

	m.graph.ResetToRest()
	for k, s := range acc {
		n := &m.graph.Nodes[k.node]
		w := math.Min(s.weight, 1)
		switch k.path {
		case PathRotation:
			n.Rotation = geom.Slerp(n.RestRotation, s.rot, w)
		case PathTranslation:
			n.Translation = blendRest(n.RestTranslation, s.vec, s.weight)
		case PathScale:
			n.Scale = blendRest(n.RestScale, s.vec, s.weight)
		}
	}
}

// blendRest mixes a weighted sum with the rest value for any weight below 1.
func blendRest(rest, sum r3.Vector, weight float64) r3.Vector {
	if weight >= 1 {
		return sum.Mul(1 / weight)
	}
	return sum.Add(rest.Mul(1 - weight))
}
