// Package viewer owns the single tracking session: the loaded figure, the
// animation mixer, the current pick and the per-frame pipeline that turns
// the pick into telemetry.
//
// Every frame runs mixer → pose → sample → kinematics → series → sinks, in
// that order, under the session lock. HTTP and gRPC handlers go through the
// same lock, so frame work is never interleaved with a pick or a playback
// change.
package viewer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/skintrack/internal/config"
	"github.com/banshee-data/skintrack/internal/figure/anim"
	"github.com/banshee-data/skintrack/internal/figure/asset"
	"github.com/banshee-data/skintrack/internal/figure/geom"
	"github.com/banshee-data/skintrack/internal/figure/pick"
	"github.com/banshee-data/skintrack/internal/figure/series"
	"github.com/banshee-data/skintrack/internal/figure/tracking"
	"github.com/banshee-data/skintrack/internal/monitoring"
	"github.com/banshee-data/skintrack/internal/timeutil"
)

// ErrNotReady is returned by every operation before a model is set.
var ErrNotReady = errors.New("viewer: model not ready")

// SampleSink receives every sample the session produces, after the session
// lock is released. Implementations must not block for long.
type SampleSink interface {
	Publish(tracking.Sample)
}

// Options configure a session.
type Options struct {
	Camera         pick.Camera
	Viewport       pick.Viewport
	DisplayScale   float64
	MinDelta       float64
	UnwrapAngles   bool
	SeriesCapacity int
	// Crossfade is the clip fade in seconds. nil means anim.DefaultCrossfade;
	// zero switches clips instantly.
	Crossfade      *float64
	IdleClip       string
	GroundHalfSize float64
	Clock          timeutil.Clock
}

// OptionsFromConfig maps the viewer configuration onto session options.
func OptionsFromConfig(cfg *config.ViewerConfig) Options {
	p, t := cfg.GetCameraPosition(), cfg.GetCameraTarget()
	cam := pick.DefaultCamera()
	cam.Position = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
	cam.Target = r3.Vector{X: t[0], Y: t[1], Z: t[2]}
	cam.FovY = cfg.GetCameraFovY()
	fade := cfg.GetCrossfadeSeconds()
	return Options{
		Camera: cam,
		Viewport: pick.Viewport{
			X:      cfg.GetViewportX(),
			Width:  cfg.GetViewportWidth(),
			Height: cfg.GetViewportHeight(),
		},
		DisplayScale:   cfg.GetDisplayScale(),
		MinDelta:       cfg.GetMinDeltaSeconds(),
		UnwrapAngles:   cfg.GetUnwrapAngles(),
		SeriesCapacity: cfg.GetSeriesCapacity(),
		Crossfade:      &fade,
		IdleClip:       cfg.GetIdleClip(),
		GroundHalfSize: cfg.GetGroundHalfSize(),
	}
}

// Session is the scene context: model, mixer, picker and the optional
// selection.
type Session struct {
	mu sync.Mutex

	opts       Options
	crossfade  float64
	clock      timeutil.Clock
	modelReady bool
	model      *asset.Model
	mixer      *anim.Mixer
	picker     *pick.Picker
	sampler    *tracking.Sampler
	estimator  tracking.Estimator
	series     *series.Buffer
	sinks      []SampleSink

	// selection is nil until the first hit and replaced by every later hit.
	selection *pick.Selection
	frame     int64
	last      *tracking.Sample
}

// NewSession returns a session waiting for its model.
func NewSession(opts Options) *Session {
	if opts.DisplayScale <= 0 {
		opts.DisplayScale = 1
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fade := anim.DefaultCrossfade
	if opts.Crossfade != nil {
		fade = *opts.Crossfade
	}
	return &Session{
		opts:      opts,
		crossfade: fade,
		clock:     clock,
		sampler:   tracking.NewSampler(),
		estimator: tracking.Estimator{MinDelta: opts.MinDelta, UnwrapAngles: opts.UnwrapAngles},
		series:    series.NewBuffer(opts.SeriesCapacity),
	}
}

// AddSink registers a sample consumer.
func (s *Session) AddSink(sink SampleSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// SetModel installs the loaded model and opens the ready gate. The display
// scale goes on the graph root so the mesh, picks and the tracked point all
// share it. The idle clip, if present, starts playing.
func (s *Session) SetModel(m *asset.Model) error {
	if m == nil || m.Figure == nil || len(m.Figure.Meshes) == 0 {
		return fmt.Errorf("viewer: model has no skinned mesh")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Figure.Graph.Root = geom.UniformScale(s.opts.DisplayScale)
	m.Figure.Pose()

	props := append([]pick.Prop(nil), m.Props...)
	if s.opts.GroundHalfSize > 0 {
		props = append(props, pick.NewGroundProp(s.opts.GroundHalfSize))
	}
	s.model = m
	s.mixer = anim.NewMixer(m.Figure.Graph, m.Clips, s.crossfade)
	s.picker = &pick.Picker{
		Camera:   s.opts.Camera,
		Viewport: s.opts.Viewport,
		Meshes:   m.Figure.Meshes,
		Props:    props,
	}
	if id, ok := s.mixer.Lookup(s.opts.IdleClip); ok {
		_ = s.mixer.Play(id)
	} else if len(m.Clips) > 0 {
		_ = s.mixer.Play(0)
	}
	s.modelReady = true
	monitoring.Logf("[viewer] model ready: %d meshes, %d actions", len(m.Figure.Meshes), len(m.Clips))
	return nil
}

// Ready reports whether a model is installed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelReady
}

// Tick advances one frame of dt seconds. It returns the frame's sample, or
// nil when nothing is selected.
func (s *Session) Tick(dt float64) (*tracking.Sample, error) {
	s.mu.Lock()
	if !s.modelReady {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	s.mixer.Update(dt)
	s.model.Figure.Pose()
	s.frame++

	if s.selection == nil {
		s.mu.Unlock()
		return nil, nil
	}
	pose, err := s.sampler.Sample(s.selection)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("viewer: frame %d: %w", s.frame, err)
	}
	d := s.estimator.Advance(pose.Position, pose.Orientation, dt)
	sample := tracking.NewSample(s.frame, s.clock.Now().UnixNano(), dt, pose, d)
	s.series.Append(sample.Frame, sample.Values())
	s.last = &sample
	sinks := append([]SampleSink(nil), s.sinks...)
	s.mu.Unlock()

	if pose.Degenerate {
		monitoring.Debugf("[viewer] frame %d: degenerate triangle, orientation held", sample.Frame)
	}
	for _, sink := range sinks {
		sink.Publish(sample)
	}
	return &sample, nil
}

// Pick selects the surface point under a window coordinate. A miss leaves
// the current selection and tracking untouched. A hit replaces the
// selection and restarts the derivative estimates.
func (s *Session) Pick(x, y float64) (*pick.Selection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modelReady {
		return nil, false, ErrNotReady
	}
	sel, ok := s.picker.Pick(x, y)
	if !ok {
		monitoring.Debugf("[viewer] pick at (%.1f, %.1f) missed", x, y)
		return nil, false, nil
	}
	s.track(sel)
	monitoring.Logf("[viewer] tracking %s face %d %v bary %.3f", sel.Mesh.Name, sel.Face, sel.Triangle, sel.Barycentric)
	return sel, true, nil
}

// track replaces the selection and restarts the estimates. s.mu must be
// held.
func (s *Session) track(sel *pick.Selection) {
	s.selection = sel
	s.estimator.Reset()
	s.sampler.Reset()
	s.last = nil
}

// Actions lists the selectable animation actions.
func (s *Session) Actions() ([]anim.ActionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modelReady {
		return nil, ErrNotReady
	}
	return s.mixer.Actions(), nil
}

// PlayAction cross-fades to the given action.
func (s *Session) PlayAction(id anim.ActionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modelReady {
		return ErrNotReady
	}
	return s.mixer.Play(id)
}

// SetPaused freezes or resumes playback.
func (s *Session) SetPaused(p bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modelReady {
		return ErrNotReady
	}
	s.mixer.SetPaused(p)
	return nil
}

// SetSpeed sets the playback rate.
func (s *Session) SetSpeed(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modelReady {
		return ErrNotReady
	}
	s.mixer.SetSpeed(v)
	return nil
}

// Seek scrubs the active clip to a normalized progress.
func (s *Session) Seek(progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.modelReady {
		return ErrNotReady
	}
	return s.mixer.Seek(progress)
}

// Series returns a consistent copy of the rolling telemetry.
func (s *Session) Series() series.Snapshot {
	return s.series.Snapshot()
}

// ClearSeries empties the rolling telemetry. Tracking continues and the
// next sample starts a fresh window.
func (s *Session) ClearSeries() {
	s.series.Reset()
}

// Selection describes the current pick.
type Selection struct {
	Mesh        string     `json:"mesh"`
	Face        int        `json:"face"`
	Triangle    [3]int     `json:"triangle"`
	Barycentric [3]float64 `json:"barycentric"`
	WorldPoint  r3.Vector  `json:"world_point"`
}

// Playback is the mixer state.
type Playback struct {
	Active   anim.ActionID `json:"active"`
	Name     string        `json:"name,omitempty"`
	Paused   bool          `json:"paused"`
	Speed    float64       `json:"speed"`
	Progress float64       `json:"progress"`
}

// State is a point-in-time view of the session for the dashboard.
type State struct {
	Ready     bool             `json:"ready"`
	Frame     int64            `json:"frame"`
	Selection *Selection       `json:"selection,omitempty"`
	Last      *tracking.Sample `json:"last,omitempty"`
	// Marker is the tracked point projected into window coordinates.
	Marker   *[2]float64 `json:"marker,omitempty"`
	Playback Playback    `json:"playback"`
}

// State snapshots the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Ready: s.modelReady, Frame: s.frame}
	if !s.modelReady {
		return st
	}
	active := s.mixer.Active()
	st.Playback = Playback{
		Active:   active,
		Paused:   s.mixer.Paused(),
		Speed:    s.mixer.Speed(),
		Progress: s.mixer.Progress(),
	}
	if active != anim.NoAction {
		st.Playback.Name = s.mixer.Actions()[active].Name
	}
	if sel := s.selection; sel != nil {
		st.Selection = &Selection{
			Mesh:        sel.Mesh.Name,
			Face:        sel.Face,
			Triangle:    sel.Triangle,
			Barycentric: sel.Barycentric,
			WorldPoint:  sel.WorldPoint,
		}
	}
	if s.last != nil {
		last := *s.last
		st.Last = &last
		if x, y, ok := s.picker.Camera.ScreenPoint(s.picker.Viewport, last.Position); ok {
			st.Marker = &[2]float64{x, y}
		}
	}
	return st
}
