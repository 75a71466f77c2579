// Package series keeps the rolling per-channel telemetry history that the
// dashboard plots.
package series

import (
	"fmt"
	"sync"
)

// DefaultCapacity is the number of frames kept per channel.
const DefaultCapacity = 100

// ChannelID identifies one plotted scalar.
type ChannelID int

const (
	PosX ChannelID = iota
	PosY
	PosZ
	RotX
	RotY
	RotZ
	AngVelX
	AngVelY
	AngVelZ
	AccX
	AccY
	AccZ

	NumChannels = 12
)

var channelNames = [NumChannels]string{
	"pos_x", "pos_y", "pos_z",
	"rot_x", "rot_y", "rot_z",
	"ang_vel_x", "ang_vel_y", "ang_vel_z",
	"acc_x", "acc_y", "acc_z",
}

// String returns the stable channel name used in JSON and chart legends.
func (c ChannelID) String() string {
	if c < 0 || int(c) >= NumChannels {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel is the inverse of String.
func ParseChannel(name string) (ChannelID, bool) {
	for i, n := range channelNames {
		if n == name {
			return ChannelID(i), true
		}
	}
	return 0, false
}

// Group is a 3-axis quantity plotted on one chart.
type Group int

const (
	GroupPosition Group = iota
	GroupOrientation
	GroupAngularVelocity
	GroupAcceleration
)

// Groups lists every group in chart order.
var Groups = []Group{GroupPosition, GroupOrientation, GroupAngularVelocity, GroupAcceleration}

var groupNames = []string{"position", "orientation", "angular_velocity", "acceleration"}

func (g Group) String() string {
	if g < 0 || int(g) >= len(groupNames) {
		return fmt.Sprintf("group(%d)", int(g))
	}
	return groupNames[g]
}

// ParseGroup is the inverse of Group.String.
func ParseGroup(name string) (Group, bool) {
	for i, n := range groupNames {
		if n == name {
			return Group(i), true
		}
	}
	return 0, false
}

// Channels returns the X, Y and Z channels of the group.
func (g Group) Channels() [3]ChannelID {
	base := ChannelID(int(g) * 3)
	return [3]ChannelID{base, base + 1, base + 2}
}

// Buffer holds up to capacity frames for every channel plus the shared
// frame index. All series always have the same length and position k of
// every series belongs to the same frame.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	frames   []int64
	channels [NumChannels][]float64
}

// NewBuffer returns an empty buffer. capacity <= 0 selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Buffer{capacity: capacity, frames: make([]int64, 0, capacity+1)}
	for i := range b.channels {
		b.channels[i] = make([]float64, 0, capacity+1)
	}
	return b
}

// Append adds one frame. When the buffer is over capacity the oldest frame
// is dropped from every series in the same call.
func (b *Buffer) Append(frame int64, values [NumChannels]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, frame)
	for i := range b.channels {
		b.channels[i] = append(b.channels[i], values[i])
	}
	if len(b.frames) > b.capacity {
		drop := len(b.frames) - b.capacity
		b.frames = shift(b.frames, drop)
		for i := range b.channels {
			b.channels[i] = shift(b.channels[i], drop)
		}
	}
}

// shift drops the first n entries in place, keeping the backing array so
// steady-state appends do not allocate.
func shift[T any](s []T, n int) []T {
	copy(s, s[n:])
	return s[:len(s)-n]
}

// Len returns the number of frames held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}

// Capacity returns the configured capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// Frames returns a copy of the frame index series.
func (b *Buffer) Frames() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]int64(nil), b.frames...)
}

// Channel returns a copy of one channel's values.
func (b *Buffer) Channel(id ChannelID) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if id < 0 || int(id) >= NumChannels {
		return nil
	}
	return append([]float64(nil), b.channels[id]...)
}

// Reset empties every series.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
	for i := range b.channels {
		b.channels[i] = b.channels[i][:0]
	}
}

// Snapshot is a consistent copy of every series taken under one lock.
type Snapshot struct {
	Frames   []int64              `json:"frames"`
	Channels map[string][]float64 `json:"channels"`
}

// Snapshot copies all series at once so a reader never mixes frames from
// before and after a trim.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		Frames:   append([]int64(nil), b.frames...),
		Channels: make(map[string][]float64, NumChannels),
	}
	for i := range b.channels {
		s.Channels[ChannelID(i).String()] = append([]float64(nil), b.channels[i]...)
	}
	return s
}

// Group returns the three series of g from the snapshot.
func (s Snapshot) Group(g Group) [3][]float64 {
	var out [3][]float64
	for i, c := range g.Channels() {
		out[i] = s.Channels[c.String()]
	}
	return out
}
