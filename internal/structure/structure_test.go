package structure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/latticesim/internal/atoms"
)

func testLayer(id string, d float64) *Layer {
	return &Layer{
		ID:           id,
		Name:         id + " layer",
		Thickness:    d,
		MassPerArea:  1e-6,
		SpringConsts: []float64{1e19},
		Damping:      0,
		LinThermExp:  []float64{1e-5},
	}
}

func TestFlattenNestedRepetitions(t *testing.T) {
	s := New("superlattice")
	a := testLayer("A", 1e-9)
	b := testLayer("B", 2e-9)
	sub := testLayer("S", 4e-9)

	ha, err := s.AddLayer(a)
	require.NoError(t, err)
	hb, err := s.AddLayer(b)
	require.NoError(t, err)
	hs, err := s.AddLayer(sub)
	require.NoError(t, err)

	period := s.AddGroup()
	require.NoError(t, s.Append(period, ha, 2))
	require.NoError(t, s.Append(period, hb, 1))

	require.NoError(t, s.AddSubStructure(period, 3))
	require.NoError(t, s.AddSubStructure(hs, 2))

	want := []string{"A", "A", "B", "A", "A", "B", "A", "A", "B", "S", "S"}
	assert.Equal(t, want, s.LayerIDs())
	assert.Equal(t, len(want), s.NumLayers())
	assert.Equal(t, 1, s.NumSubSystems())

	unique := s.UniqueLayers()
	require.Len(t, unique, 3)
	assert.Same(t, a, unique[0])
	assert.Same(t, b, unique[1])
	assert.Same(t, sub, unique[2])

	assert.InDelta(t, 3*(2*1e-9+2e-9)+2*4e-9, s.Thickness(), 1e-20)
}

func TestAppendRejectsCycles(t *testing.T) {
	s := New("cyclic")
	g1 := s.AddGroup()
	g2 := s.AddGroup()
	require.NoError(t, s.Append(g1, g2, 1))

	err := s.Append(g2, g1, 1)
	assert.True(t, errors.Is(err, ErrCycle), "got %v", err)

	err = s.Append(g1, g1, 1)
	assert.True(t, errors.Is(err, ErrCycle), "self loop: got %v", err)

	err = s.AddSubStructure(s.Root(), 1)
	assert.True(t, errors.Is(err, ErrCycle), "root into itself: got %v", err)
}

func TestAppendValidation(t *testing.T) {
	s := New("v")
	h, err := s.AddLayer(testLayer("A", 1e-9))
	require.NoError(t, err)

	assert.ErrorIs(t, s.AddSubStructure(h, 0), ErrRepetitions)
	assert.ErrorIs(t, s.AddSubStructure(h, -2), ErrRepetitions)
	assert.ErrorIs(t, s.Append(h, s.Root(), 1), ErrNotGroup)
	assert.ErrorIs(t, s.Append(s.Root(), Handle(99), 1), ErrUnknownHandle)
}

func TestAddLayerIdentity(t *testing.T) {
	s := New("ids")
	a := testLayer("A", 1e-9)

	h1, err := s.AddLayer(a)
	require.NoError(t, err)
	h2, err := s.AddLayer(a)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	_, err = s.AddLayer(testLayer("A", 3e-9))
	assert.ErrorIs(t, err, ErrDuplicateLayer)

	two := testLayer("T", 1e-9)
	two.LinThermExp = []float64{1e-5, 2e-5}
	_, err = s.AddLayer(two)
	assert.ErrorIs(t, err, ErrSubSystems)

	bad := testLayer("bad", 0)
	_, err = s.AddLayer(bad)
	assert.Error(t, err)
}

func TestPropertyVectors(t *testing.T) {
	s := New("props")
	a := testLayer("A", 1e-9)
	a.SpringConsts = []float64{2, 0.5}
	a.Damping = 1e9
	b := testLayer("B", 2e-9)
	b.SpringConsts = []float64{3}
	require.NoError(t, s.AddLayers(a, 2))
	require.NoError(t, s.AddLayers(b, 1))

	d, err := s.PropertyVector("thickness")
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-9, 1e-9, 2e-9}, d)

	g, err := s.PropertyVector("damping")
	require.NoError(t, err)
	assert.Equal(t, []float64{1e9, 1e9, 0}, g)

	_, err = s.PropertyVector("colour")
	assert.Error(t, err)

	k := s.SpringConstants()
	r, c := k.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{3, 0}, k.RawRowView(2))

	alpha := s.LinThermExp()
	r, c = alpha.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
}

func TestDistances(t *testing.T) {
	s := New("dist")
	require.NoError(t, s.AddLayers(testLayer("A", 1), 2))
	require.NoError(t, s.AddLayers(testLayer("B", 2), 1))

	start, end, mid := s.DistancesOfLayers()
	assert.True(t, floats.Equal([]float64{0, 1, 2}, start))
	assert.True(t, floats.Equal([]float64{1, 2, 4}, end))
	assert.True(t, floats.Equal([]float64{0.5, 1.5, 3}, mid))

	assert.Equal(t, []float64{0, 2, 4}, s.DistancesOfInterfaces())
}

func TestEmptyStructure(t *testing.T) {
	s := New("empty")
	assert.ErrorIs(t, s.Validate(), ErrEmpty)
	assert.Empty(t, s.Layers())
	assert.Zero(t, s.Thickness())
	assert.True(t, s.SpringConstants().IsEmpty())
}

func TestLayerHelpers(t *testing.T) {
	o := atoms.MustElement("O")
	ti := atoms.MustElement("Ti")
	sr := atoms.MustElement("Sr")
	cell := []atoms.Species{sr, ti, o, o, o}

	a := 3.905e-10
	m, err := MassPerAreaFromAtoms(cell, a*a)
	require.NoError(t, err)
	assert.InDelta(t, (sr.Mass()+ti.Mass()+3*o.Mass())/(a*a), m, 1e-12)

	_, err = MassPerAreaFromAtoms(cell, 0)
	assert.Error(t, err)

	k := HarmonicSpringConst(m, a, 7800)
	assert.InDelta(t, m*7800*7800/(a*a), k, k*1e-12)
}
