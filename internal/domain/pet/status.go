package pet

// Status identifies the short user-facing line shown under the pet.
// Classification statuses and action outcomes share the same namespace.
type Status string

const (
	StatusSleeping    Status = "sleeping"
	StatusHungry      Status = "hungry"
	StatusBored       Status = "bored"
	StatusUnwell      Status = "unwell"
	StatusFeelingGood Status = "feeling-good"

	// Action outcomes
	StatusYum      Status = "yum"
	StatusFun      Status = "fun"
	StatusNoCoins  Status = "no-coins"
	StatusAsleep   Status = "asleep"
	StatusTooTired Status = "too-tired"
)

var statusMessages = map[Status]string{
	StatusSleeping:    "Zzz... good night...",
	StatusHungry:      "I'm hungry...",
	StatusBored:       "I'm bored...",
	StatusUnwell:      "I don't feel well...",
	StatusFeelingGood: "I feel great!",
	StatusYum:         "Yum! (-1 coin)",
	StatusFun:         "This is fun!",
	StatusNoCoins:     "No more coins!",
	StatusAsleep:      "He's sleeping...",
	StatusTooTired:    "Too tired...",
}

// Message returns the display text for a status.
func (s Status) Message() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return string(s)
}
