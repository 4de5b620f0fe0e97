package engine

import (
	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
)

// Action effects.
const (
	FeedCost          = 1
	FeedHunger        = 25.0
	FeedEnergy        = 5.0
	PlayHappiness     = 20.0
	PlayHunger        = 10.0
	PlayEnergy        = 15.0
	PlayMinimumEnergy = 20.0
)

// Action names a user-triggered action.
type Action string

const (
	ActionFeed  Action = "feed"
	ActionPlay  Action = "play"
	ActionSleep Action = "sleep"
	ActionWake  Action = "wake"
)

// ActionResult describes the outcome of an action. A failed precondition is
// a result, not an error: nothing is mutated except the status line.
type ActionResult struct {
	Action  Action       `json:"action"`
	Applied bool         `json:"applied"`
	Reason  pet.Status   `json:"reason,omitempty"`
	State   pet.Snapshot `json:"state"`
}

// Feed spends a coin to restore hunger and a little energy.
// No coins takes priority over the pet being asleep.
func (p *Pet) Feed() ActionResult {
	p.mu.Lock()
	var reason pet.Status
	switch {
	case p.coins < FeedCost:
		reason = pet.StatusNoCoins
	case p.sleeping:
		reason = pet.StatusAsleep
	}
	if reason != "" {
		return p.rejectLocked(ActionFeed, reason)
	}

	p.coins -= FeedCost
	p.stats.Hunger += FeedHunger
	p.stats.Energy += FeedEnergy
	p.stats = p.stats.Clamp()
	p.mood, p.status = pet.MoodEating, pet.StatusYum
	p.scheduleReclassifyLocked()
	return p.applyLocked(ActionFeed)
}

// Play trades hunger and energy for happiness. A tired pet refuses before
// a sleeping one does.
func (p *Pet) Play() ActionResult {
	p.mu.Lock()
	var reason pet.Status
	switch {
	case p.stats.Energy < PlayMinimumEnergy:
		reason = pet.StatusTooTired
	case p.sleeping:
		reason = pet.StatusAsleep
	}
	if reason != "" {
		return p.rejectLocked(ActionPlay, reason)
	}

	p.stats.Happiness += PlayHappiness
	p.stats.Hunger -= PlayHunger
	p.stats.Energy -= PlayEnergy
	p.stats = p.stats.Clamp()
	p.mood, p.status = pet.MoodPlaying, pet.StatusFun
	p.scheduleReclassifyLocked()
	return p.applyLocked(ActionPlay)
}

// ToggleSleep puts the pet to bed or wakes it up. Going to sleep cancels any
// pending reclassification; waking classifies immediately.
func (p *Pet) ToggleSleep() ActionResult {
	p.mu.Lock()
	p.sleeping = !p.sleeping
	p.cancelReclassifyLocked()
	p.reclassifyLocked()

	action := ActionWake
	if p.sleeping {
		action = ActionSleep
	}
	snap := p.changedLocked()
	p.mu.Unlock()

	p.metrics.RecordAction(true)
	p.record(events.EventTypeSleepToggled, map[string]any{"sleeping": snap.Sleeping})
	p.logger.Event("SLEEP_TOGGLED", p.ownerID, string(action))
	p.notify(snap)
	return ActionResult{Action: action, Applied: true, State: snap}
}

// applyLocked finishes a successful action. It releases the lock.
func (p *Pet) applyLocked(action Action) ActionResult {
	snap := p.changedLocked()
	p.mu.Unlock()

	p.metrics.RecordAction(true)
	p.record(events.EventTypeActionApplied, map[string]any{
		"action":    string(action),
		"coins":     snap.Coins,
		"hunger":    snap.Stats.Hunger,
		"happiness": snap.Stats.Happiness,
		"energy":    snap.Stats.Energy,
	})
	p.notify(snap)
	return ActionResult{Action: action, Applied: true, State: snap}
}

// rejectLocked reports a failed precondition. Only the status line changes.
// It releases the lock.
func (p *Pet) rejectLocked(action Action, reason pet.Status) ActionResult {
	p.status = reason
	snap := p.changedLocked()
	p.mu.Unlock()

	p.metrics.RecordAction(false)
	p.record(events.EventTypeActionRejected, map[string]any{
		"action": string(action),
		"reason": string(reason),
	})
	p.notify(snap)
	return ActionResult{Action: action, Applied: false, Reason: reason, State: snap}
}
