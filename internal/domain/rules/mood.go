package rules

import "github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"

// Classification thresholds.
const (
	SadAverageBelow = 40.0
	HungryBelow     = 20.0
	BoredBelow      = 20.0
)

// Classify maps the current stats to a mood and its status line.
// Sleeping short-circuits every other rule. Otherwise the pet is sad when the
// average is low or either hunger or happiness is critical, with the status
// picked in priority order hunger, happiness, generic.
func Classify(s pet.Stats, sleeping bool) (pet.Mood, pet.Status) {
	if sleeping {
		return pet.MoodSleeping, pet.StatusSleeping
	}

	if s.Average() < SadAverageBelow || s.Hunger < HungryBelow || s.Happiness < BoredBelow {
		switch {
		case s.Hunger < HungryBelow:
			return pet.MoodSad, pet.StatusHungry
		case s.Happiness < BoredBelow:
			return pet.MoodSad, pet.StatusBored
		default:
			return pet.MoodSad, pet.StatusUnwell
		}
	}

	return pet.MoodHappy, pet.StatusFeelingGood
}
