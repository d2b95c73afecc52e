// Package analysis turns recorded spikes and traces into summary curves.
//
//   - [PSTH]: peri-stimulus time histogram of a population in Hz
//   - [PowerSpectrum]: one-sided amplitude spectrum of a sampled signal
//   - [Frequencies]: frequency axis matching a spectrum
//   - [Raster]: per-neuron spike times
//
// A population rhythm shows up as a peak in the spectrum of its PSTH:
//
//	rate := analysis.PSTH(spikes, 1, 1000, 100)
//	ps := analysis.PowerSpectrum(rate)
//	hz := analysis.Frequencies(len(rate), 1)
package analysis
