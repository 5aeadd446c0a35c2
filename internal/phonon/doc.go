// Package phonon computes strain maps of a layer stack driven by heat.
//
// A Simulation validates its inputs, derives a content key, and either
// returns the cached strain and velocity maps for that key or computes them:
// the expansion model converts temperature maps into sticks, and the sticks
// either become the strain directly (only-heat mode) or drive the lattice
// chain, whose layer shifts are differentiated into strain.
//
//	sim := phonon.New(sample, expansion.Linear{}, cache.New(dir), phonon.DefaultOptions(), nil)
//	res, err := sim.StrainMap(ctx, delays, tempMaps, nil)
package phonon
