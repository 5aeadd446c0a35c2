// Package lattice models a stack of layers as a one-dimensional chain of
// masses coupled by (possibly anharmonic) springs.
//
// The chain is open: layer 0 is the surface and the last layer has no bond
// below it. Row i of a spring-constant matrix describes the bond between
// layer i and layer i+1; column j holds the coefficient of the (j+1)-th power
// of the bond elongation.
//
// A Chain is driven by a precomputed heat-force matrix that is sampled
// piecewise-constant in time. It implements dynamo.System and
// dynamo.Hamiltonian so it can be handed to dynamo.Simulator directly.
package lattice
