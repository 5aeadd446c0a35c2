// Package atoms provides the atomic building blocks of a layer: single
// elements from a built-in table and stoichiometric mixtures of them.
package atoms

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/unit/constant"
)

// Species is anything with atomic mass that can populate a layer's unit cell.
type Species interface {
	ID() string
	Symbol() string
	Name() string
	AtomicNumber() float64
	MassNumber() float64
	// Mass in kg.
	Mass() float64
	// FormFactor is the forward x-ray scattering factor at a photon energy in
	// eV, in electrons.
	FormFactor(energy float64) complex128
}

type Element struct {
	id       string
	symbol   string
	name     string
	z        int
	a        float64
	ionicity int
}

// NewElement looks up symbol in the element table. id defaults to the symbol.
func NewElement(symbol string, opts ...ElementOption) (*Element, error) {
	entry, ok := elementTable[normalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("atoms: unknown element symbol %q", symbol)
	}
	e := &Element{
		id:     entry.symbol,
		symbol: entry.symbol,
		name:   entry.name,
		z:      entry.z,
		a:      entry.a,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MustElement is NewElement for static tables; it panics on an unknown symbol.
func MustElement(symbol string, opts ...ElementOption) *Element {
	e, err := NewElement(symbol, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

type ElementOption func(*Element)

func WithID(id string) ElementOption { return func(e *Element) { e.id = id } }

func WithIonicity(q int) ElementOption { return func(e *Element) { e.ionicity = q } }

func (e *Element) ID() string            { return e.id }
func (e *Element) Symbol() string        { return e.symbol }
func (e *Element) Name() string          { return e.name }
func (e *Element) AtomicNumber() float64 { return float64(e.z) }
func (e *Element) MassNumber() float64   { return e.a }
func (e *Element) Ionicity() int         { return e.ionicity }
func (e *Element) Mass() float64         { return e.a * float64(constant.AtomicMass) }

// FormFactor returns the electron count Z - ionicity, the forward-scattering
// limit of the atomic form factor. Dispersion corrections near absorption
// edges need tabulated scattering factors and are not included, so the
// result does not depend on energy.
func (e *Element) FormFactor(energy float64) complex128 {
	return complex(float64(e.z-e.ionicity), 0)
}

func (e *Element) String() string {
	return fmt.Sprintf("%s (%s, Z=%d, A=%.4f)", e.id, e.name, e.z, e.a)
}

// Component is one constituent of a Mixture.
type Component struct {
	Species  Species
	Fraction float64
}

// Mixture is a site shared by several species, weighted by stoichiometric
// fraction. The fractions must add up to one before the mixture is used.
type Mixture struct {
	id         string
	symbol     string
	name       string
	components []Component
}

func NewMixture(id, symbol, name string) *Mixture {
	if name == "" {
		name = symbol
	}
	return &Mixture{id: id, symbol: symbol, name: name}
}

func (m *Mixture) Add(s Species, fraction float64) error {
	if s == nil {
		return fmt.Errorf("atoms: mixture %s: nil species", m.id)
	}
	if !(fraction > 0) || fraction > 1 {
		return fmt.Errorf("atoms: mixture %s: fraction %g of %s outside (0, 1]", m.id, fraction, s.ID())
	}
	m.components = append(m.components, Component{Species: s, Fraction: fraction})
	return nil
}

// Validate checks that the fractions sum to one within 1e-9.
func (m *Mixture) Validate() error {
	if len(m.components) == 0 {
		return fmt.Errorf("atoms: mixture %s has no components", m.id)
	}
	total := 0.0
	for _, c := range m.components {
		total += c.Fraction
	}
	if math.Abs(total-1) > 1e-9 {
		return fmt.Errorf("atoms: mixture %s fractions sum to %g, want 1", m.id, total)
	}
	return nil
}

func (m *Mixture) Components() []Component {
	return append([]Component(nil), m.components...)
}

func (m *Mixture) ID() string     { return m.id }
func (m *Mixture) Symbol() string { return m.symbol }
func (m *Mixture) Name() string   { return m.name }

func (m *Mixture) AtomicNumber() float64 {
	return m.weighted(Species.AtomicNumber)
}

func (m *Mixture) MassNumber() float64 {
	return m.weighted(Species.MassNumber)
}

func (m *Mixture) Mass() float64 {
	return m.weighted(Species.Mass)
}

func (m *Mixture) FormFactor(energy float64) complex128 {
	var f complex128
	for _, c := range m.components {
		f += complex(c.Fraction, 0) * c.Species.FormFactor(energy)
	}
	return f
}

func (m *Mixture) weighted(prop func(Species) float64) float64 {
	var sum float64
	for _, c := range m.components {
		sum += c.Fraction * prop(c.Species)
	}
	return sum
}

func (m *Mixture) String() string {
	parts := make([]string, len(m.components))
	for i, c := range m.components {
		parts[i] = fmt.Sprintf("%s %.1f%%", c.Species.ID(), 100*c.Fraction)
	}
	return fmt.Sprintf("%s [%s]", m.id, strings.Join(parts, ", "))
}

func normalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
