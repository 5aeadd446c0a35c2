// Package structure composes layers into a one-dimensional stack.
//
// A Structure is an arena of nodes addressed by Handle. A node is either a
// layer or a group holding an ordered list of (child, repetitions) pairs.
// Node 0 is the root group. Flattening expands repetitions depth-first into
// the surface-to-bottom layer sequence used by the simulation.
package structure

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownHandle  = errors.New("structure: unknown handle")
	ErrCycle          = errors.New("structure: appending would create a cycle")
	ErrRepetitions    = errors.New("structure: repetitions must be positive")
	ErrNotGroup       = errors.New("structure: parent is not a group")
	ErrSubSystems     = errors.New("structure: inconsistent number of subsystems")
	ErrDuplicateLayer = errors.New("structure: different layers share an id")
	ErrEmpty          = errors.New("structure: no layers")
)

type Handle int

type child struct {
	node Handle
	reps int
}

type node struct {
	layer    *Layer
	children []child
}

type Structure struct {
	Name string

	nodes      []node
	layerNodes map[string]Handle
	subSystems int
}

func New(name string) *Structure {
	return &Structure{
		Name:       name,
		nodes:      []node{{}},
		layerNodes: make(map[string]Handle),
	}
}

func (s *Structure) Root() Handle { return 0 }

func (s *Structure) Label() string { return s.Name }

// AddLayer registers a layer and returns its handle. Adding the same layer
// again returns the existing handle; a different layer reusing an ID is an
// error.
func (s *Structure) AddLayer(l *Layer) (Handle, error) {
	if l == nil {
		return 0, fmt.Errorf("structure: nil layer")
	}
	if err := l.Validate(); err != nil {
		return 0, fmt.Errorf("structure: %w", err)
	}
	if h, ok := s.layerNodes[l.ID]; ok {
		if s.nodes[h].layer != l {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateLayer, l.ID)
		}
		return h, nil
	}
	if s.subSystems > 0 && len(l.LinThermExp) != s.subSystems {
		return 0, fmt.Errorf("%w: layer %s has %d, structure has %d", ErrSubSystems, l.ID, len(l.LinThermExp), s.subSystems)
	}
	s.subSystems = len(l.LinThermExp)

	h := Handle(len(s.nodes))
	s.nodes = append(s.nodes, node{layer: l})
	s.layerNodes[l.ID] = h
	return h, nil
}

// AddGroup creates an empty group node.
func (s *Structure) AddGroup() Handle {
	s.nodes = append(s.nodes, node{})
	return Handle(len(s.nodes) - 1)
}

// Append adds child to the end of group parent, repeated reps times.
func (s *Structure) Append(parent, c Handle, reps int) error {
	if !s.valid(parent) || !s.valid(c) {
		return fmt.Errorf("%w: parent %d, child %d", ErrUnknownHandle, parent, c)
	}
	if s.nodes[parent].layer != nil {
		return fmt.Errorf("%w: %d", ErrNotGroup, parent)
	}
	if reps <= 0 {
		return fmt.Errorf("%w: got %d", ErrRepetitions, reps)
	}
	if s.reaches(c, parent) {
		return fmt.Errorf("%w: %d -> %d", ErrCycle, parent, c)
	}
	s.nodes[parent].children = append(s.nodes[parent].children, child{node: c, reps: reps})
	return nil
}

// AddSubStructure appends c to the root group.
func (s *Structure) AddSubStructure(c Handle, reps int) error {
	return s.Append(s.Root(), c, reps)
}

// AddLayers is a shorthand for AddLayer followed by AddSubStructure.
func (s *Structure) AddLayers(l *Layer, reps int) error {
	h, err := s.AddLayer(l)
	if err != nil {
		return err
	}
	return s.AddSubStructure(h, reps)
}

func (s *Structure) valid(h Handle) bool {
	return h >= 0 && int(h) < len(s.nodes)
}

// reaches reports whether target is reachable from start.
func (s *Structure) reaches(start, target Handle) bool {
	seen := make([]bool, len(s.nodes))
	stack := []Handle{start}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == target {
			return true
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		for _, c := range s.nodes[h].children {
			stack = append(stack, c.node)
		}
	}
	return false
}

type frame struct {
	node Handle
	idx  int // next child
	rep  int // repetitions of that child already emitted
}

// Layers returns the flattened surface-to-bottom layer sequence.
func (s *Structure) Layers() []*Layer {
	var out []*Layer
	stack := []frame{{node: s.Root()}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := s.nodes[top.node].children
		if top.idx >= len(children) {
			stack = stack[:len(stack)-1]
			continue
		}
		c := children[top.idx]
		top.rep++
		if top.rep >= c.reps {
			top.idx++
			top.rep = 0
		}
		if l := s.nodes[c.node].layer; l != nil {
			out = append(out, l)
		} else {
			stack = append(stack, frame{node: c.node})
		}
	}
	return out
}

func (s *Structure) NumLayers() int {
	counts := make(map[Handle]int)
	var count func(h Handle) int
	count = func(h Handle) int {
		if n, ok := counts[h]; ok {
			return n
		}
		nd := s.nodes[h]
		if nd.layer != nil {
			return 1
		}
		n := 0
		for _, c := range nd.children {
			n += c.reps * count(c.node)
		}
		counts[h] = n
		return n
	}
	return count(s.Root())
}

func (s *Structure) NumSubSystems() int { return s.subSystems }

// UniqueLayers returns every distinct layer in order of first appearance.
func (s *Structure) UniqueLayers() []*Layer {
	seen := make(map[string]bool)
	var out []*Layer
	for _, l := range s.Layers() {
		if !seen[l.ID] {
			seen[l.ID] = true
			out = append(out, l)
		}
	}
	return out
}

func (s *Structure) LayerIDs() []string {
	layers := s.Layers()
	ids := make([]string, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return ids
}

// Validate checks the structure holds at least one layer.
func (s *Structure) Validate() error {
	if s.NumLayers() == 0 {
		return ErrEmpty
	}
	return nil
}

// PropertyVector returns one scalar per flattened layer. Supported names are
// thickness, mass_per_area, damping and sound_velocity.
func (s *Structure) PropertyVector(name string) ([]float64, error) {
	var get func(*Layer) float64
	switch name {
	case "thickness":
		get = func(l *Layer) float64 { return l.Thickness }
	case "mass_per_area":
		get = func(l *Layer) float64 { return l.MassPerArea }
	case "damping":
		get = func(l *Layer) float64 { return l.Damping }
	case "sound_velocity":
		get = func(l *Layer) float64 { return l.SoundVelocity }
	default:
		return nil, fmt.Errorf("structure: unknown layer property %q", name)
	}

	layers := s.Layers()
	out := make([]float64, len(layers))
	for i, l := range layers {
		out[i] = get(l)
	}
	return out, nil
}

// SpringConstants returns the [L, M] spring-constant matrix, M being the
// highest order of any layer. Lower-order layers are zero padded.
func (s *Structure) SpringConstants() *mat.Dense {
	layers := s.Layers()
	if len(layers) == 0 {
		return &mat.Dense{}
	}
	order := 0
	for _, l := range layers {
		order = max(order, len(l.SpringConsts))
	}
	k := mat.NewDense(len(layers), order, nil)
	for i, l := range layers {
		copy(k.RawRowView(i), l.SpringConsts)
	}
	return k
}

// LinThermExp returns the [L, K] matrix of linear thermal expansion
// coefficients, one column per subsystem.
func (s *Structure) LinThermExp() *mat.Dense {
	layers := s.Layers()
	if len(layers) == 0 || s.subSystems == 0 {
		return &mat.Dense{}
	}
	alpha := mat.NewDense(len(layers), s.subSystems, nil)
	for i, l := range layers {
		alpha.SetRow(i, l.LinThermExp)
	}
	return alpha
}

// Thickness is the total stack thickness from surface to bottom.
func (s *Structure) Thickness() float64 {
	d, _ := s.PropertyVector("thickness")
	return floats.Sum(d)
}

// DistancesOfLayers returns, for each layer, the distance of its top, bottom
// and centre from the surface.
func (s *Structure) DistancesOfLayers() (start, end, mid []float64) {
	d, _ := s.PropertyVector("thickness")
	end = floats.CumSum(make([]float64, len(d)), d)
	start = make([]float64, len(d))
	mid = make([]float64, len(d))
	for i := range d {
		if i > 0 {
			start[i] = end[i-1]
		}
		mid[i] = start[i] + d[i]/2
	}
	return start, end, mid
}

// DistancesOfInterfaces returns the depth of every boundary between
// different layers, including the surface and the bottom.
func (s *Structure) DistancesOfInterfaces() []float64 {
	layers := s.Layers()
	if len(layers) == 0 {
		return nil
	}
	start, end, _ := s.DistancesOfLayers()
	out := []float64{0}
	for i := 1; i < len(layers); i++ {
		if layers[i].ID != layers[i-1].ID {
			out = append(out, start[i])
		}
	}
	return append(out, end[len(end)-1])
}

// Layer returns the i-th flattened layer.
func (s *Structure) Layer(i int) (*Layer, error) {
	layers := s.Layers()
	if i < 0 || i >= len(layers) {
		return nil, fmt.Errorf("structure: layer index %d out of range [0, %d)", i, len(layers))
	}
	return layers[i], nil
}

func (s *Structure) String() string {
	n := s.NumLayers()
	if n == 0 {
		return fmt.Sprintf("Structure %q (empty)", s.Name)
	}
	return fmt.Sprintf("Structure %q: %d layers (%d unique), %d subsystem(s), %.4g nm",
		s.Name, n, len(s.UniqueLayers()), s.subSystems, 1e9*s.Thickness())
}
