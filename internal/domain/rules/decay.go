// Package rules contains the pure calculation logic for the pet simulation.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import "github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"

// Per-tick decay amounts.
const (
	HungerDecay      = 1.0
	HappinessDecay   = 0.5
	EnergyDecay      = 0.5 // awake only
	SleepEnergyRegen = 5.0 // asleep only
)

// Tick applies one decay step and returns the new stats.
// Hunger and happiness always drain; energy drains while awake and
// regenerates while sleeping.
func Tick(s pet.Stats, sleeping bool) pet.Stats {
	next := pet.Stats{
		Hunger:    s.Hunger - HungerDecay,
		Happiness: s.Happiness - HappinessDecay,
	}
	if sleeping {
		next.Energy = s.Energy + SleepEnergyRegen
	} else {
		next.Energy = s.Energy - EnergyDecay
	}
	return next.Clamp()
}
