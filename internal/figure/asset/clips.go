package asset

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/banshee-data/skintrack/internal/figure/anim"
)

// readClip converts one glTF animation. Channels targeting nodes missing
// from nodeMap, and morph-weight channels, are dropped.
func readClip(doc *gltf.Document, a *gltf.Animation, name string, nodeMap map[int]int) (*anim.Clip, error) {
	var tracks []anim.Track
	for ci, ch := range a.Channels {
		if ch.Target.Node == nil {
			continue
		}
		node, ok := nodeMap[*ch.Target.Node]
		if !ok {
			continue
		}
		path, ok := trackPath(ch.Target.Path)
		if !ok {
			continue
		}
		if ch.Sampler < 0 || ch.Sampler >= len(a.Samplers) {
			return nil, fmt.Errorf("clip %q channel %d: sampler %d out of range", name, ci, ch.Sampler)
		}
		s := a.Samplers[ch.Sampler]
		times, err := readFloats(doc, s.Input)
		if err != nil {
			return nil, fmt.Errorf("clip %q channel %d input: %w", name, ci, err)
		}
		values, err := readFloats(doc, s.Output)
		if err != nil {
			return nil, fmt.Errorf("clip %q channel %d output: %w", name, ci, err)
		}
		tracks = append(tracks, anim.Track{
			Node:          node,
			Path:          path,
			Interpolation: interpolation(s.Interpolation),
			Times:         times,
			Values:        values,
		})
	}
	return anim.NewClip(name, tracks)
}

func trackPath(p gltf.TRSProperty) (anim.Path, bool) {
	switch p {
	case gltf.TRSTranslation:
		return anim.PathTranslation, true
	case gltf.TRSRotation:
		return anim.PathRotation, true
	case gltf.TRSScale:
		return anim.PathScale, true
	}
	return 0, false
}

func interpolation(i gltf.Interpolation) anim.Interpolation {
	switch i {
	case gltf.InterpolationStep:
		return anim.Step
	case gltf.InterpolationCubicSpline:
		return anim.CubicSpline
	}
	return anim.Linear
}

// readFloats flattens a keyframe accessor. Normalized integer rotations
// are mapped back to [-1, 1].
func readFloats(doc *gltf.Document, idx int) ([]float64, error) {
	acr, err := accessor(doc, idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return nil, err
	}
	var out []float64
	switch v := data.(type) {
	case []float32:
		out = make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
	case [][3]float32:
		for _, e := range v {
			out = append(out, float64(e[0]), float64(e[1]), float64(e[2]))
		}
	case [][4]float32:
		for _, e := range v {
			out = append(out, float64(e[0]), float64(e[1]), float64(e[2]), float64(e[3]))
		}
	case [][4]int8:
		for _, e := range v {
			for _, c := range e {
				out = append(out, max(float64(c)/127, -1))
			}
		}
	case [][4]uint8:
		for _, e := range v {
			for _, c := range e {
				out = append(out, float64(c)/255)
			}
		}
	case [][4]int16:
		for _, e := range v {
			for _, c := range e {
				out = append(out, max(float64(c)/32767, -1))
			}
		}
	case [][4]uint16:
		for _, e := range v {
			for _, c := range e {
				out = append(out, float64(c)/65535)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported keyframe data %T", data)
	}
	return out, nil
}
