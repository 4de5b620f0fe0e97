// Package pet defines the core domain entities for the virtual cat.
// This package is PURE and must NOT import any infrastructure packages.
package pet

// Stat bounds. Every stat lives in [MinStat, MaxStat].
const (
	MinStat = 0.0
	MaxStat = 100.0
)

// Starting values for a pet with no save data.
const (
	DefaultHunger    = 80.0
	DefaultHappiness = 80.0
	DefaultEnergy    = 80.0
	DefaultCoins     = 10
)

// Mood is the derived display/behavior category of the pet.
// It is never persisted; it is always recomputable from Stats and the sleep flag.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodEating   Mood = "eating"   // transient, set by Feed
	MoodPlaying  Mood = "playing"  // transient, set by Play
	MoodSleeping Mood = "sleeping" // while the sleep flag is set
)

// IsTransient reports whether the mood is an action override that expires.
func (m Mood) IsTransient() bool {
	return m == MoodEating || m == MoodPlaying
}

// Stats holds the three decaying resources of the pet.
type Stats struct {
	Hunger    float64 `json:"hunger"`    // 0 = starving, 100 = full
	Happiness float64 `json:"happiness"` // 0 = miserable
	Energy    float64 `json:"energy"`    // 0 = exhausted
}

// DefaultStats returns the stats of a freshly adopted pet.
func DefaultStats() Stats {
	return Stats{
		Hunger:    DefaultHunger,
		Happiness: DefaultHappiness,
		Energy:    DefaultEnergy,
	}
}

// Clamp returns a copy of s with every field forced into [MinStat, MaxStat].
func (s Stats) Clamp() Stats {
	return Stats{
		Hunger:    clamp(s.Hunger),
		Happiness: clamp(s.Happiness),
		Energy:    clamp(s.Energy),
	}
}

// Average is the mean of the three stats.
func (s Stats) Average() float64 {
	return (s.Hunger + s.Happiness + s.Energy) / 3
}

// InBounds reports whether every stat already satisfies the clamp invariant.
func (s Stats) InBounds() bool {
	return inBounds(s.Hunger) && inBounds(s.Happiness) && inBounds(s.Energy)
}

func clamp(v float64) float64 {
	if v < MinStat {
		return MinStat
	}
	if v > MaxStat {
		return MaxStat
	}
	return v
}

func inBounds(v float64) bool {
	return v >= MinStat && v <= MaxStat
}

// SaveData is the persisted record for one owner: stats and coins only.
type SaveData struct {
	Stats Stats `json:"stats"`
	Coins int   `json:"coins"`
}

// NewSaveData returns the defaults used when no save exists.
func NewSaveData() SaveData {
	return SaveData{Stats: DefaultStats(), Coins: DefaultCoins}
}

// Normalize clamps stats and floors coins at zero, so a hand-edited or
// corrupted record can never break the invariants once loaded.
func (d SaveData) Normalize() SaveData {
	if d.Coins < 0 {
		d.Coins = 0
	}
	d.Stats = d.Stats.Clamp()
	return d
}

// Snapshot is a read-only copy of the pet's state for publishing outside the lock.
type Snapshot struct {
	OwnerID  string `json:"owner_id"`
	Stats    Stats  `json:"stats"`
	Coins    int    `json:"coins"`
	Sleeping bool   `json:"sleeping"`
	Mood     Mood   `json:"mood"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Version  uint64 `json:"version"` // increases with every state change
}

// SaveData extracts the persisted subset of a snapshot.
func (s Snapshot) SaveData() SaveData {
	return SaveData{Stats: s.Stats, Coins: s.Coins}
}
