// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package spaces

import (
	"fmt"
	"math"

	"github.com/emer/etable/etensor"
)

// ToTensor flattens a point into a 1-D float32 tensor laid out in
// space order, the form inference bindings consume. The point is
// validated against the space first.
func ToTensor(s Space, p Point) (*etensor.Float32, error) {
	if err := s.Validate(p); err != nil {
		return nil, err
	}
	buf := make([]float32, 0, s.FlatSize())
	buf = appendFlat(buf, p)
	t := etensor.NewFloat32([]int{len(buf)}, nil, nil)
	copy(t.Values, buf)
	return t, nil
}

func appendFlat(buf []float32, p Point) []float32 {
	switch p.Kind {
	case KindBox:
		return append(buf, p.Box...)
	case KindDiscrete:
		return append(buf, float32(p.Discrete))
	case KindMultiDiscrete:
		for _, v := range p.MultiDiscrete {
			buf = append(buf, float32(v))
		}
		return buf
	case KindMultiBinary:
		for _, v := range p.MultiBinary {
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
		return buf
	case KindDict:
		for _, sub := range p.Dict {
			buf = appendFlat(buf, sub)
		}
		return buf
	default:
		return buf
	}
}

// FromTensor reads a point of the given space back out of a flat
// tensor. Discrete values are rounded to the nearest index and
// clamped into range; binary values threshold at 0.5.
func FromTensor(s Space, t *etensor.Float32) (Point, error) {
	if t.Len() != s.FlatSize() {
		return Point{}, fmt.Errorf("spaces: tensor has %d values, space flattens to %d", t.Len(), s.FlatSize())
	}
	p, _ := readFlat(s, t.Values, 0)
	return p, nil
}

func readFlat(s Space, vals []float32, off int) (Point, int) {
	switch s.Kind {
	case KindBox:
		n := len(s.Box.Dimensions)
		out := make([]float32, n)
		copy(out, vals[off:off+n])
		return BoxPoint(out...), off + n
	case KindDiscrete:
		return DiscretePoint(clampIndex(vals[off], s.Discrete.N)), off + 1
	case KindMultiDiscrete:
		out := make([]int, len(s.MultiDiscrete.Highs))
		for i, high := range s.MultiDiscrete.Highs {
			out[i] = clampIndex(vals[off+i], high)
		}
		return MultiDiscretePoint(out...), off + len(out)
	case KindMultiBinary:
		out := make([]bool, s.MultiBinary.N)
		for i := range out {
			out[i] = vals[off+i] >= 0.5
		}
		return MultiBinaryPoint(out...), off + len(out)
	case KindDict:
		pts := make([]Point, len(s.Dict.Spaces))
		for i, sub := range s.Dict.Spaces {
			pts[i], off = readFlat(sub, vals, off)
		}
		return Point{Kind: KindDict, Dict: pts}, off
	default:
		return Point{}, off
	}
}

func clampIndex(v float32, n int) int {
	idx := int(math.Round(float64(v)))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
