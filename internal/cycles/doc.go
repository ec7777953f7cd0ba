// Package cycles segments a force (or joint-angle) stream into repetition
// cycles with a hysteresis band around a moving midpoint, and classifies
// fatigue from the most recent cycles.
//
// A Detector is a caller-owned recurrence: feed it samples in arrival order,
// one Detector per stream. Reordering or dropping samples corrupts the cycle
// boundaries.
package cycles
