package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/skintrack/internal/figure/anim"
	"github.com/banshee-data/skintrack/internal/figure/asset"
	"github.com/banshee-data/skintrack/internal/figure/pick"
	"github.com/banshee-data/skintrack/internal/figure/rig"
	"github.com/banshee-data/skintrack/internal/figure/tracking"
	"github.com/banshee-data/skintrack/internal/timeutil"
)

const frameDT = 1.0 / 60

type collectSink struct {
	mu      sync.Mutex
	samples []tracking.Sample
}

func (c *collectSink) Publish(s tracking.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, s)
}

func (c *collectSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// selectPoint installs a selection without going through the camera.
func selectPoint(s *Session, sel *pick.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(sel)
}

func topDownOptions() Options {
	return Options{
		Camera: pick.Camera{
			Position: r3.Vector{X: 1.25, Y: 4, Z: 1.5},
			Target:   r3.Vector{X: 1.25, Z: 1.5},
			Up:       r3.Vector{Z: -1},
			FovY:     60,
			Near:     0.1,
			Far:      20,
		},
		Viewport:       pick.Viewport{X: 100, Y: 20, Width: 640, Height: 480},
		SeriesCapacity: 100,
		IdleClip:       "idle",
		Clock:          timeutil.NewMockClock(time.Unix(1700000000, 0)),
	}
}

func gridModel(t *testing.T, rows, cols int, clips ...*anim.Clip) *asset.Model {
	t.Helper()
	f, err := rig.NewGridFigure(rows, cols)
	require.NoError(t, err)
	return &asset.Model{Figure: f, Clips: clips, Root: 1}
}

func hipsClip(t *testing.T, name string, from, to float64) *anim.Clip {
	t.Helper()
	c, err := anim.NewClip(name, []anim.Track{{
		Node:   1,
		Path:   anim.PathTranslation,
		Times:  []float64{0, 1},
		Values: []float64{from, 0, 0, to, 0, 0},
	}})
	require.NoError(t, err)
	return c
}

func TestSessionNotReady(t *testing.T) {
	t.Parallel()

	s := NewSession(topDownOptions())
	assert.False(t, s.Ready())

	_, err := s.Tick(frameDT)
	assert.True(t, errors.Is(err, ErrNotReady))
	_, _, err = s.Pick(1, 1)
	assert.True(t, errors.Is(err, ErrNotReady))
	_, err = s.Actions()
	assert.True(t, errors.Is(err, ErrNotReady))
	assert.True(t, errors.Is(s.PlayAction(0), ErrNotReady))
	assert.True(t, errors.Is(s.SetPaused(true), ErrNotReady))
	assert.True(t, errors.Is(s.SetSpeed(2), ErrNotReady))
	assert.True(t, errors.Is(s.Seek(0.5), ErrNotReady))
	assert.Equal(t, State{}, s.State())

	assert.Error(t, s.SetModel(&asset.Model{}))
}

func TestSessionStaticScenario(t *testing.T) {
	t.Parallel()

	s := NewSession(topDownOptions())
	sink := &collectSink{}
	s.AddSink(sink)
	m := gridModel(t, 5, 3)
	require.NoError(t, s.SetModel(m))

	// ticking without a selection advances frames but produces nothing
	sample, err := s.Tick(frameDT)
	require.NoError(t, err)
	assert.Nil(t, sample)
	assert.Empty(t, s.Series().Frames)

	mesh := m.Figure.Meshes[0]
	selectPoint(s, &pick.Selection{Mesh: mesh, Triangle: [3]int{10, 11, 12}, Barycentric: [3]float64{0.5, 0.3, 0.2}})
	var want r3.Vector
	for k, vi := range [3]int{10, 11, 12} {
		p, err := mesh.Evaluate(vi)
		require.NoError(t, err)
		want = want.Add(p.Mul([]float64{0.5, 0.3, 0.2}[k]))
	}

	for i := 0; i < 5; i++ {
		sample, err := s.Tick(frameDT)
		require.NoError(t, err)
		require.NotNil(t, sample)
		assert.InDelta(t, want.X, sample.Position.X, 1e-12)
		assert.InDelta(t, want.Z, sample.Position.Z, 1e-12)
		assert.InDelta(t, 0, sample.Velocity.Norm(), 1e-9)
		assert.InDelta(t, 0, sample.Acceleration.Norm(), 1e-9)
	}

	snap := s.Series()
	assert.Equal(t, []int64{2, 3, 4, 5, 6}, snap.Frames)
	assert.Equal(t, 5, sink.len())

	st := s.State()
	assert.True(t, st.Ready)
	assert.Equal(t, int64(6), st.Frame)
	require.NotNil(t, st.Selection)
	assert.Equal(t, [3]int{10, 11, 12}, st.Selection.Triangle)
	require.NotNil(t, st.Last)
	assert.Equal(t, int64(6), st.Last.Frame)
}

func TestSessionPickThroughCamera(t *testing.T) {
	t.Parallel()

	s := NewSession(topDownOptions())
	require.NoError(t, s.SetModel(gridModel(t, 4, 4)))

	sel, ok, err := s.Pick(100+320, 20+240)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1.25, sel.WorldPoint.X, 1e-6)
	assert.InDelta(t, 1, sel.Barycentric[0]+sel.Barycentric[1]+sel.Barycentric[2], 1e-9)

	// the viewport corner looks past the grid: a miss keeps the selection
	_, ok, err = s.Pick(105, 25)
	require.NoError(t, err)
	assert.False(t, ok)
	st := s.State()
	require.NotNil(t, st.Selection)
	assert.Equal(t, sel.Face, st.Selection.Face)

	sample, err := s.Tick(frameDT)
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.InDelta(t, sel.WorldPoint.X, sample.Position.X, 1e-9)
	assert.InDelta(t, sel.WorldPoint.Z, sample.Position.Z, 1e-9)

	// the marker projects back onto the click
	st = s.State()
	require.NotNil(t, st.Marker)
	assert.InDelta(t, 420, st.Marker[0], 1e-6)
	assert.InDelta(t, 260, st.Marker[1], 1e-6)
}

func TestSessionDisplayScale(t *testing.T) {
	t.Parallel()

	opts := topDownOptions()
	opts.DisplayScale = 2
	s := NewSession(opts)
	m := gridModel(t, 3, 3)
	require.NoError(t, s.SetModel(m))
	// vertex 8 is (2,0,2), split between both joints
	selectPoint(s, &pick.Selection{Mesh: m.Figure.Meshes[0], Triangle: [3]int{8, 8, 8}, Barycentric: [3]float64{1, 0, 0}})

	sample, err := s.Tick(frameDT)
	require.NoError(t, err)
	assert.InDelta(t, 4, sample.Position.X, 1e-12)
	assert.InDelta(t, 4, sample.Position.Z, 1e-12)
}

func TestSessionKinematicsFollowAnimation(t *testing.T) {
	t.Parallel()

	s := NewSession(topDownOptions())
	m := gridModel(t, 3, 3, hipsClip(t, "walk", 0, 1))
	require.NoError(t, s.SetModel(m))
	selectPoint(s, &pick.Selection{Mesh: m.Figure.Meshes[0], Triangle: [3]int{0, 1, 3}, Barycentric: [3]float64{1, 0, 0}})

	var samples []*tracking.Sample
	for i := 0; i < 4; i++ {
		sample, err := s.Tick(0.1)
		require.NoError(t, err)
		samples = append(samples, sample)
	}
	assert.Equal(t, r3.Vector{}, samples[0].Velocity)
	assert.InDelta(t, 1, samples[1].Velocity.X, 1e-9)
	assert.InDelta(t, 1, samples[3].Velocity.X, 1e-9)
	assert.InDelta(t, 0, samples[3].Acceleration.X, 1e-6)

	// a new selection restarts the estimator
	selectPoint(s, &pick.Selection{Mesh: m.Figure.Meshes[0], Triangle: [3]int{0, 1, 3}, Barycentric: [3]float64{0, 1, 0}})
	sample, err := s.Tick(0.1)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{}, sample.Velocity)
}

func TestSessionPlayback(t *testing.T) {
	t.Parallel()

	s := NewSession(topDownOptions())
	require.NoError(t, s.SetModel(gridModel(t, 2, 2, hipsClip(t, "wave", 0, 1), hipsClip(t, "idle", 0, 0))))

	st := s.State()
	assert.Equal(t, anim.ActionID(1), st.Playback.Active, "idle starts playing")
	assert.Equal(t, "idle", st.Playback.Name)

	acts, err := s.Actions()
	require.NoError(t, err)
	require.Len(t, acts, 2)

	require.NoError(t, s.PlayAction(0))
	require.NoError(t, s.SetSpeed(0.5))
	require.NoError(t, s.SetPaused(true))
	require.NoError(t, s.Seek(0.4))
	_, err = s.Tick(frameDT)
	require.NoError(t, err)

	st = s.State()
	assert.Equal(t, Playback{Active: 0, Name: "wave", Paused: true, Speed: 0.5, Progress: 0.4}, st.Playback)
	assert.True(t, errors.Is(s.PlayAction(9), anim.ErrUnknownAction))
}

func TestSessionCrossfadeDefaultsToOneSecond(t *testing.T) {
	t.Parallel()

	hipsX := func(fade *float64) float64 {
		opts := topDownOptions()
		opts.Crossfade = fade
		s := NewSession(opts)
		m := gridModel(t, 2, 2, hipsClip(t, "shift", 2, 2), hipsClip(t, "idle", 0, 0))
		require.NoError(t, s.SetModel(m))
		_, err := s.Tick(frameDT)
		require.NoError(t, err)

		require.NoError(t, s.PlayAction(0))
		_, err = s.Tick(0.5)
		require.NoError(t, err)
		return m.Figure.Graph.Nodes[1].Translation.X
	}

	// half way through the default fade both clips weigh in equally
	assert.InDelta(t, 1, hipsX(nil), 1e-9)

	instant := 0.0
	assert.InDelta(t, 2, hipsX(&instant), 1e-9)
}

func TestDriverTicksSession(t *testing.T) {
	t.Parallel()

	opts := topDownOptions()
	clock := opts.Clock.(*timeutil.MockClock)
	s := NewSession(opts)
	sink := &collectSink{}
	s.AddSink(sink)
	m := gridModel(t, 3, 3)
	require.NoError(t, s.SetModel(m))
	selectPoint(s, &pick.Selection{Mesh: m.Figure.Meshes[0], Triangle: [3]int{0, 1, 3}, Barycentric: [3]float64{1, 0, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewDriver(s, clock, 16*time.Millisecond).Run(ctx) }()

	select {
	case <-clock.Started():
	case <-time.After(time.Second):
		t.Fatal("loop did not start")
	}
	for i := 1; i <= 3; i++ {
		clock.Advance(16 * time.Millisecond)
		require.Eventually(t, func() bool { return sink.len() == i }, time.Second, time.Millisecond)
	}

	cancel()
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, smp := range sink.samples {
		assert.InDelta(t, 0.016, smp.DeltaSeconds, 1e-9)
	}
}
