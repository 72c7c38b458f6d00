// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package spaces describes observation and action shapes as tagged
// unions: box, discrete, multi-discrete, multi-binary, and dict
// composites of those. A Space describes a shape; a Point is one value
// drawn from it. Both are plain serializable data and carry no engine
// state.
package spaces

import "fmt"

// Kind discriminates the union variants.
type Kind string

const (
	KindBox           Kind = "box"
	KindDiscrete      Kind = "discrete"
	KindMultiDiscrete Kind = "multi_discrete"
	KindMultiBinary   Kind = "multi_binary"
	KindDict          Kind = "dict"
)

// BoxDimension bounds one continuous dimension.
type BoxDimension struct {
	Low  float32 `json:"low"`
	High float32 `json:"high"`
}

// Box is a bounded continuous shape, one BoxDimension per element.
type Box struct {
	Dimensions []BoxDimension `json:"dimensions"`
}

// Discrete is a single choice in [0, N).
type Discrete struct {
	N int `json:"n"`
}

// MultiDiscrete is a vector of choices, element i in [0, Highs[i]).
type MultiDiscrete struct {
	Highs []int `json:"highs"`
}

// MultiBinary is a vector of N booleans.
type MultiBinary struct {
	N int `json:"n"`
}

// Dict is an ordered label → space composite. Labels and Spaces are
// parallel; order is part of the contract because flattened layouts
// depend on it.
type Dict struct {
	Labels []string `json:"labels"`
	Spaces []Space  `json:"spaces"`
}

// Space is the tagged union. Exactly the variant named by Kind is set.
type Space struct {
	Kind          Kind           `json:"kind"`
	Box           *Box           `json:"box,omitempty"`
	Discrete      *Discrete      `json:"discrete,omitempty"`
	MultiDiscrete *MultiDiscrete `json:"multi_discrete,omitempty"`
	MultiBinary   *MultiBinary   `json:"multi_binary,omitempty"`
	Dict          *Dict          `json:"dict,omitempty"`
}

// BoxSpace builds a box space with uniform bounds over size elements.
func BoxSpace(low, high float32, size int) Space {
	dims := make([]BoxDimension, size)
	for i := range dims {
		dims[i] = BoxDimension{Low: low, High: high}
	}
	return Space{Kind: KindBox, Box: &Box{Dimensions: dims}}
}

// BoxSpaceDims builds a box space from explicit per-dimension bounds.
func BoxSpaceDims(dims ...BoxDimension) Space {
	return Space{Kind: KindBox, Box: &Box{Dimensions: dims}}
}

func DiscreteSpace(n int) Space {
	return Space{Kind: KindDiscrete, Discrete: &Discrete{N: n}}
}

func MultiDiscreteSpace(highs ...int) Space {
	return Space{Kind: KindMultiDiscrete, MultiDiscrete: &MultiDiscrete{Highs: highs}}
}

func MultiBinarySpace(n int) Space {
	return Space{Kind: KindMultiBinary, MultiBinary: &MultiBinary{N: n}}
}

func DictSpace() Space {
	return Space{Kind: KindDict, Dict: &Dict{}}
}

// Add appends a labelled sub-space to a dict space and returns the
// space for chaining.
func (s Space) Add(label string, sub Space) Space {
	s.Dict.Labels = append(s.Dict.Labels, label)
	s.Dict.Spaces = append(s.Dict.Spaces, sub)
	return s
}

// FlatSize is the number of scalar elements a point in this space
// flattens to.
func (s Space) FlatSize() int {
	switch s.Kind {
	case KindBox:
		return len(s.Box.Dimensions)
	case KindDiscrete:
		return 1
	case KindMultiDiscrete:
		return len(s.MultiDiscrete.Highs)
	case KindMultiBinary:
		return s.MultiBinary.N
	case KindDict:
		total := 0
		for _, sub := range s.Dict.Spaces {
			total += sub.FlatSize()
		}
		return total
	default:
		return 0
	}
}

// IsEmpty reports whether the space describes no elements at all.
func (s Space) IsEmpty() bool { return s.FlatSize() == 0 }

// Validate checks that p is a well-formed point of this space.
func (s Space) Validate(p Point) error {
	if p.Kind != s.Kind {
		return fmt.Errorf("spaces: point kind %q does not match space kind %q", p.Kind, s.Kind)
	}
	switch s.Kind {
	case KindBox:
		if len(p.Box) != len(s.Box.Dimensions) {
			return fmt.Errorf("spaces: box point has %d values, space has %d dimensions", len(p.Box), len(s.Box.Dimensions))
		}
		for i, v := range p.Box {
			d := s.Box.Dimensions[i]
			if v < d.Low || v > d.High {
				return fmt.Errorf("spaces: box value %g at %d outside [%g, %g]", v, i, d.Low, d.High)
			}
		}
	case KindDiscrete:
		if p.Discrete < 0 || p.Discrete >= s.Discrete.N {
			return fmt.Errorf("spaces: discrete value %d outside [0, %d)", p.Discrete, s.Discrete.N)
		}
	case KindMultiDiscrete:
		if len(p.MultiDiscrete) != len(s.MultiDiscrete.Highs) {
			return fmt.Errorf("spaces: multi-discrete point has %d values, space has %d", len(p.MultiDiscrete), len(s.MultiDiscrete.Highs))
		}
		for i, v := range p.MultiDiscrete {
			if v < 0 || v >= s.MultiDiscrete.Highs[i] {
				return fmt.Errorf("spaces: multi-discrete value %d at %d outside [0, %d)", v, i, s.MultiDiscrete.Highs[i])
			}
		}
	case KindMultiBinary:
		if len(p.MultiBinary) != s.MultiBinary.N {
			return fmt.Errorf("spaces: multi-binary point has %d values, space has %d", len(p.MultiBinary), s.MultiBinary.N)
		}
	case KindDict:
		if len(p.Dict) != len(s.Dict.Spaces) {
			return fmt.Errorf("spaces: dict point has %d entries, space has %d", len(p.Dict), len(s.Dict.Spaces))
		}
		for i, sub := range s.Dict.Spaces {
			if err := sub.Validate(p.Dict[i]); err != nil {
				return fmt.Errorf("%s: %w", s.Dict.Labels[i], err)
			}
		}
	default:
		return fmt.Errorf("spaces: unknown kind %q", s.Kind)
	}
	return nil
}

// DefaultPoint returns the zero-valued point of this space.
func (s Space) DefaultPoint() Point {
	switch s.Kind {
	case KindBox:
		vals := make([]float32, len(s.Box.Dimensions))
		for i, d := range s.Box.Dimensions {
			// Zero when in range, else clamp to the lower bound.
			if d.Low > 0 || d.High < 0 {
				vals[i] = d.Low
			}
		}
		return BoxPoint(vals...)
	case KindDiscrete:
		return DiscretePoint(0)
	case KindMultiDiscrete:
		return MultiDiscretePoint(make([]int, len(s.MultiDiscrete.Highs))...)
	case KindMultiBinary:
		return MultiBinaryPoint(make([]bool, s.MultiBinary.N)...)
	case KindDict:
		pts := make([]Point, len(s.Dict.Spaces))
		for i, sub := range s.Dict.Spaces {
			pts[i] = sub.DefaultPoint()
		}
		return Point{Kind: KindDict, Dict: pts}
	default:
		return Point{}
	}
}

// Point is one value drawn from a space, same tagged-union layout.
type Point struct {
	Kind          Kind      `json:"kind"`
	Box           []float32 `json:"box,omitempty"`
	Discrete      int       `json:"discrete,omitempty"`
	MultiDiscrete []int     `json:"multi_discrete,omitempty"`
	MultiBinary   []bool    `json:"multi_binary,omitempty"`
	Dict          []Point   `json:"dict,omitempty"`
}

func BoxPoint(vals ...float32) Point {
	return Point{Kind: KindBox, Box: vals}
}

func DiscretePoint(v int) Point {
	return Point{Kind: KindDiscrete, Discrete: v}
}

func MultiDiscretePoint(vals ...int) Point {
	return Point{Kind: KindMultiDiscrete, MultiDiscrete: vals}
}

func MultiBinaryPoint(vals ...bool) Point {
	return Point{Kind: KindMultiBinary, MultiBinary: vals}
}

func DictPoint(pts ...Point) Point {
	return Point{Kind: KindDict, Dict: pts}
}
