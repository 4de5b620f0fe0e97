package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

func newTestPet(t *testing.T, data pet.SaveData) (*Pet, *ManualScheduler, *events.EventLog) {
	t.Helper()
	sched := NewManualScheduler(time.Unix(0, 0))
	log := events.NewEventLog(nil, nil)
	p := NewPet("owner-1", data, PetDeps{
		Scheduler: sched,
		EventLog:  log,
		Metrics:   metrics.New(),
	})
	return p, sched, log
}

func TestNewPetClassifiesOnLoad(t *testing.T) {
	p, _, _ := newTestPet(t, pet.NewSaveData())
	snap := p.Snapshot()
	if snap.Mood != pet.MoodHappy || snap.Status != pet.StatusFeelingGood {
		t.Fatalf("expected happy default pet, got %s/%s", snap.Mood, snap.Status)
	}
	if snap.Sleeping {
		t.Error("expected a restored pet to be awake")
	}
}

func TestFeedWithoutCoinsChangesNothing(t *testing.T) {
	p, _, log := newTestPet(t, pet.SaveData{Stats: pet.Stats{Hunger: 50, Happiness: 50, Energy: 50}, Coins: 0})
	before := p.Snapshot()

	res := p.Feed()
	if res.Applied || res.Reason != pet.StatusNoCoins {
		t.Fatalf("expected no-coins rejection, got %+v", res)
	}
	after := p.Snapshot()
	if after.Stats != before.Stats || after.Coins != before.Coins || after.Mood != before.Mood {
		t.Fatalf("expected state unchanged, before %+v after %+v", before, after)
	}
	if got := log.GetByType(events.EventTypeActionRejected); len(got) != 1 {
		t.Errorf("expected one rejection event, got %d", len(got))
	}
}

func TestFeedNoCoinsWinsOverAsleep(t *testing.T) {
	p, _, _ := newTestPet(t, pet.SaveData{Stats: pet.DefaultStats(), Coins: 0})
	p.ToggleSleep()

	if res := p.Feed(); res.Reason != pet.StatusNoCoins {
		t.Fatalf("expected no-coins, got %s", res.Reason)
	}
}

func TestFeedWhileAsleep(t *testing.T) {
	p, _, _ := newTestPet(t, pet.NewSaveData())
	p.ToggleSleep()

	res := p.Feed()
	if res.Applied || res.Reason != pet.StatusAsleep {
		t.Fatalf("expected asleep rejection, got %+v", res)
	}
	if p.Snapshot().Coins != pet.DefaultCoins {
		t.Error("expected coins untouched")
	}
}

func TestFeedApplies(t *testing.T) {
	p, _, _ := newTestPet(t, pet.SaveData{Stats: pet.Stats{Hunger: 90, Happiness: 50, Energy: 97}, Coins: 2})

	res := p.Feed()
	if !res.Applied {
		t.Fatalf("expected feed applied, got %+v", res)
	}
	snap := p.Snapshot()
	if snap.Coins != 1 {
		t.Errorf("expected one coin spent, got %d", snap.Coins)
	}
	if snap.Stats.Hunger != 100 || snap.Stats.Energy != 100 {
		t.Errorf("expected clamped hunger/energy at 100, got %+v", snap.Stats)
	}
	if snap.Mood != pet.MoodEating || snap.Status != pet.StatusYum {
		t.Errorf("expected eating/yum, got %s/%s", snap.Mood, snap.Status)
	}
}

func TestPlayTooTiredChangesNothing(t *testing.T) {
	p, _, _ := newTestPet(t, pet.SaveData{Stats: pet.Stats{Hunger: 60, Happiness: 60, Energy: 15}, Coins: 5})
	before := p.Snapshot()

	res := p.Play()
	if res.Applied || res.Reason != pet.StatusTooTired {
		t.Fatalf("expected too-tired rejection, got %+v", res)
	}
	if p.Snapshot().Stats != before.Stats {
		t.Fatal("expected stats unchanged")
	}
}

func TestPlayApplies(t *testing.T) {
	p, _, _ := newTestPet(t, pet.SaveData{Stats: pet.Stats{Hunger: 5, Happiness: 90, Energy: 20}, Coins: 1})

	res := p.Play()
	if !res.Applied {
		t.Fatalf("expected play applied, got %+v", res)
	}
	got := p.Snapshot().Stats
	want := pet.Stats{Hunger: 0, Happiness: 100, Energy: 5}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if p.Snapshot().Mood != pet.MoodPlaying {
		t.Errorf("expected playing mood, got %s", p.Snapshot().Mood)
	}
}

func TestTransientMoodExpiresAfterDelay(t *testing.T) {
	p, sched, _ := newTestPet(t, pet.NewSaveData())

	p.Feed()
	sched.Advance(1999 * time.Millisecond)
	if p.Snapshot().Mood != pet.MoodEating {
		t.Fatalf("expected eating before delay, got %s", p.Snapshot().Mood)
	}
	sched.Advance(time.Millisecond)
	if p.Snapshot().Mood != pet.MoodHappy {
		t.Fatalf("expected reclassified mood, got %s", p.Snapshot().Mood)
	}
}

func TestNewerActionSupersedesPendingReclassification(t *testing.T) {
	p, sched, _ := newTestPet(t, pet.NewSaveData())

	p.Feed()
	sched.Advance(1500 * time.Millisecond)
	p.Play()

	// The feed reclassification would have fired here.
	sched.Advance(600 * time.Millisecond)
	if p.Snapshot().Mood != pet.MoodPlaying {
		t.Fatalf("expected playing to survive the stale timer, got %s", p.Snapshot().Mood)
	}

	sched.Advance(1500 * time.Millisecond)
	if p.Snapshot().Mood.IsTransient() {
		t.Fatalf("expected play reclassification, got %s", p.Snapshot().Mood)
	}
}

func TestSleepCancelsPendingReclassification(t *testing.T) {
	p, sched, _ := newTestPet(t, pet.NewSaveData())

	p.Play()
	res := p.ToggleSleep()
	if res.Action != ActionSleep || !res.Applied {
		t.Fatalf("expected sleep applied, got %+v", res)
	}
	if p.Snapshot().Mood != pet.MoodSleeping {
		t.Fatalf("expected sleeping mood, got %s", p.Snapshot().Mood)
	}

	sched.Advance(5 * time.Second)
	snap := p.Snapshot()
	if snap.Mood != pet.MoodSleeping || snap.Status != pet.StatusSleeping {
		t.Fatalf("expected pet still sleeping, got %s/%s", snap.Mood, snap.Status)
	}

	res = p.ToggleSleep()
	if res.Action != ActionWake {
		t.Fatalf("expected wake, got %s", res.Action)
	}
	if p.Snapshot().Mood == pet.MoodSleeping {
		t.Fatal("expected waking to reclassify immediately")
	}
}

func TestTickKeepsTransientMood(t *testing.T) {
	p, _, _ := newTestPet(t, pet.NewSaveData())
	p.Feed()
	p.Tick()
	if p.Snapshot().Mood != pet.MoodEating {
		t.Fatalf("expected transient mood to survive a tick, got %s", p.Snapshot().Mood)
	}
}

func TestTickReclassifies(t *testing.T) {
	p, _, _ := newTestPet(t, pet.SaveData{Stats: pet.Stats{Hunger: 20.5, Happiness: 80, Energy: 80}, Coins: 0})
	p.Tick()
	snap := p.Snapshot()
	if snap.Mood != pet.MoodSad || snap.Status != pet.StatusHungry {
		t.Fatalf("expected hungry after tick, got %s/%s", snap.Mood, snap.Status)
	}
}

func TestObserversReceiveSnapshots(t *testing.T) {
	p, _, _ := newTestPet(t, pet.NewSaveData())
	var got []pet.Snapshot
	p.Observe(func(s pet.Snapshot) { got = append(got, s) })

	p.Feed()
	p.Tick()

	if len(got) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(got))
	}
	if got[0].Coins != pet.DefaultCoins-1 {
		t.Errorf("expected snapshot after feed, got %+v", got[0])
	}
}

func TestObserversNeverSeeOlderSnapshot(t *testing.T) {
	p, _, _ := newTestPet(t, pet.NewSaveData())
	var got []pet.Snapshot
	p.Observe(func(s pet.Snapshot) { got = append(got, s) })

	// A tick snapshot taken before the feed, delivered after it.
	p.mu.Lock()
	stale := p.changedLocked()
	p.mu.Unlock()
	fed := p.Feed()
	p.notify(stale)

	if len(got) != 1 {
		t.Fatalf("expected only the feed snapshot, got %d: %+v", len(got), got)
	}
	if got[0].Version != fed.State.Version || got[0].Version <= stale.Version {
		t.Errorf("expected version %d delivered, got %d (stale %d)", fed.State.Version, got[0].Version, stale.Version)
	}
	if p.Snapshot().Coins != got[0].Coins {
		t.Errorf("last delivered snapshot %+v does not match state", got[0])
	}
}

func TestSnapshotVersionGrowsWithChanges(t *testing.T) {
	p, _, _ := newTestPet(t, pet.NewSaveData())
	v0 := p.Snapshot().Version
	if p.Snapshot().Version != v0 {
		t.Fatal("reading a snapshot must not bump the version")
	}
	p.Tick()
	p.Play()
	if v := p.Snapshot().Version; v != v0+2 {
		t.Errorf("expected version %d, got %d", v0+2, v)
	}
}

func TestStatsStayInBoundsUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		start := pet.SaveData{
			Stats: pet.Stats{
				Hunger:    rng.Float64() * 100,
				Happiness: rng.Float64() * 100,
				Energy:    rng.Float64() * 100,
			},
			Coins: rng.Intn(20),
		}
		p, sched, _ := newTestPet(t, start)

		for step := 0; step < 400; step++ {
			switch rng.Intn(5) {
			case 0:
				p.Feed()
			case 1:
				p.Play()
			case 2:
				p.ToggleSleep()
			default:
				p.Tick()
			}
			sched.Advance(time.Duration(rng.Intn(3000)) * time.Millisecond)

			snap := p.Snapshot()
			if !snap.Stats.InBounds() {
				t.Fatalf("run %d step %d: stats out of bounds: %+v", run, step, snap.Stats)
			}
			if snap.Coins < 0 {
				t.Fatalf("run %d step %d: negative coins", run, step)
			}
		}
	}
}
