// Package analysis extracts scalar and spectral features from strain maps.
//
//   - [PowerSpectrum] and [DominantFrequency]: Hann-windowed spectra of a
//     uniformly sampled trace, e.g. the breathing mode of a thin film
//   - [Summarize]: strain extrema and the layer-averaged response
//   - [ArrivalDelay]: first delay at which a trace crosses a threshold
//   - [HeatmapASCII]: terminal rendering of a delay-by-depth map
//
// A film of thickness D with sound velocity v rings at v/(2D):
//
//	f, err := analysis.DominantFrequency(analysis.LayerAverage(strain, 0, n), dt)
package analysis
