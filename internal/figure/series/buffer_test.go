package series

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valuesFor(frame int64) [NumChannels]float64 {
	var v [NumChannels]float64
	for i := range v {
		v[i] = float64(frame)*100 + float64(i)
	}
	return v
}

func TestBufferKeepsLastCapacityFrames(t *testing.T) {
	t.Parallel()

	for _, n := range []int{100, 101, 150, 1000} {
		b := NewBuffer(0)
		for f := 1; f <= n; f++ {
			b.Append(int64(f), valuesFor(int64(f)))
		}

		require.Equal(t, 100, b.Len())
		frames := b.Frames()
		require.Len(t, frames, 100)
		// oldest entry is the one appended at step n-99
		assert.Equal(t, int64(n-99), frames[0])
		assert.Equal(t, int64(n), frames[99])

		for c := ChannelID(0); c < NumChannels; c++ {
			ch := b.Channel(c)
			require.Len(t, ch, 100, c.String())
			assert.Equal(t, valuesFor(int64(n - 99))[c], ch[0], c.String())
			assert.Equal(t, valuesFor(int64(n))[c], ch[99], c.String())
		}
	}
}

func TestBufferUnderCapacity(t *testing.T) {
	t.Parallel()

	b := NewBuffer(5)
	for f := int64(0); f < 3; f++ {
		b.Append(f, valuesFor(f))
	}
	assert.Equal(t, 3, b.Len())
	if diff := cmp.Diff([]int64{0, 1, 2}, b.Frames()); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestBufferSeriesStayAligned(t *testing.T) {
	t.Parallel()

	b := NewBuffer(7)
	for f := int64(0); f < 40; f++ {
		b.Append(f, valuesFor(f))
		snap := b.Snapshot()
		for name, ch := range snap.Channels {
			require.Len(t, ch, len(snap.Frames), name)
			id, ok := ParseChannel(name)
			require.True(t, ok)
			for k, frame := range snap.Frames {
				assert.Equal(t, valuesFor(frame)[id], ch[k])
			}
		}
	}
}

func TestBufferCopiesAreIndependent(t *testing.T) {
	t.Parallel()

	b := NewBuffer(2)
	b.Append(1, valuesFor(1))
	b.Append(2, valuesFor(2))
	held := b.Channel(PosX)
	heldFrames := b.Frames()

	// trimming must not rewrite what a reader already holds
	b.Append(3, valuesFor(3))
	assert.Equal(t, []float64{100, 200}, held)
	assert.Equal(t, []int64{1, 2}, heldFrames)
	assert.Equal(t, []float64{200, 300}, b.Channel(PosX))
}

func TestBufferReset(t *testing.T) {
	t.Parallel()

	b := NewBuffer(3)
	b.Append(1, valuesFor(1))
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Channel(AccZ))
	assert.Nil(t, b.Channel(ChannelID(99)))
}

func TestChannelAndGroupNames(t *testing.T) {
	t.Parallel()

	for c := ChannelID(0); c < NumChannels; c++ {
		got, ok := ParseChannel(c.String())
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseChannel("nope")
	assert.False(t, ok)

	assert.Equal(t, [3]ChannelID{AngVelX, AngVelY, AngVelZ}, GroupAngularVelocity.Channels())
	g, ok := ParseGroup("acceleration")
	require.True(t, ok)
	assert.Equal(t, GroupAcceleration, g)
	assert.Equal(t, "group(9)", Group(9).String())
}

func TestSnapshotGroup(t *testing.T) {
	t.Parallel()

	b := NewBuffer(4)
	b.Append(7, valuesFor(7))
	grp := b.Snapshot().Group(GroupOrientation)
	assert.Equal(t, []float64{703}, grp[0])
	assert.Equal(t, []float64{704}, grp[1])
	assert.Equal(t, []float64{705}, grp[2])
}
