package pet

import "testing"

func TestNewSaveDataDefaults(t *testing.T) {
	d := NewSaveData()
	if d.Stats != (Stats{Hunger: 80, Happiness: 80, Energy: 80}) {
		t.Errorf("unexpected default stats: %+v", d.Stats)
	}
	if d.Coins != 10 {
		t.Errorf("expected 10 coins, got %d", d.Coins)
	}
}

func TestNormalizeRepairsCorruptRecord(t *testing.T) {
	d := SaveData{Stats: Stats{Hunger: -4, Happiness: 250, Energy: 42}, Coins: -3}.Normalize()

	if d.Stats != (Stats{Hunger: 0, Happiness: 100, Energy: 42}) {
		t.Errorf("expected clamped stats, got %+v", d.Stats)
	}
	if d.Coins != 0 {
		t.Errorf("expected coins floored at 0, got %d", d.Coins)
	}
}

func TestStatusMessageFallsBackToCode(t *testing.T) {
	if StatusNoCoins.Message() == string(StatusNoCoins) {
		t.Error("expected a display message for no-coins")
	}
	if got := Status("custom").Message(); got != "custom" {
		t.Errorf("expected raw code for unknown status, got %q", got)
	}
}

func TestTransientMoods(t *testing.T) {
	for _, m := range []Mood{MoodEating, MoodPlaying} {
		if !m.IsTransient() {
			t.Errorf("expected %s to be transient", m)
		}
	}
	for _, m := range []Mood{MoodHappy, MoodSad, MoodSleeping} {
		if m.IsTransient() {
			t.Errorf("expected %s to be stable", m)
		}
	}
}
