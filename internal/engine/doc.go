// Package engine contains the pet simulation loop.
//
// ARCHITECTURAL RULE: The Engine never reads the wall clock directly. Decay
// ticks, autosaves and mood reclassification are all registered on an
// injected Scheduler so tests can drive time deterministically.
package engine
