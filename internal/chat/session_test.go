package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/ai"
	"github.com/MRamiBalles/GatoVirtual/server/internal/limiter"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

type fixedStats struct {
	mu sync.Mutex
	s  pet.Stats
}

func (f *fixedStats) Stats() pet.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

type fakeProvider struct {
	calls   atomic.Int32
	reply   string
	err     error
	block   chan struct{}
	lastReq ai.CompletionRequest
}

func (f *fakeProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	f.calls.Add(1)
	f.lastReq = req
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &ai.ServiceError{Provider: "fake", Message: "timeout", Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ai.CompletionResponse{Content: f.reply}, nil
}

func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) IsAvailable() bool { return true }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSession(stats pet.Stats, gen ai.LLMProvider, opts Options) (*Session, *clock) {
	c := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts.Now = c.Now
	opts.Metrics = metrics.New()
	return NewSession("owner-1", &fixedStats{s: stats}, gen, opts), c
}

func TestEmptyInputIsIgnored(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	s, _ := newTestSession(pet.DefaultStats(), gen, Options{})

	if got := s.Submit(context.Background(), "src", "   \n\t"); got != ResultIgnored {
		t.Fatalf("expected ignored, got %s", got)
	}
	if len(s.Turns()) != 0 || gen.calls.Load() != 0 {
		t.Fatal("expected no turns and no generator call")
	}
}

func TestHungryPetRefusesWithoutCallingGenerator(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	s, _ := newTestSession(pet.Stats{Hunger: 0, Happiness: 50, Energy: 50}, gen, Options{})

	if got := s.Submit(context.Background(), "src", "hi"); got != ResultTooHungry {
		t.Fatalf("expected too-hungry, got %s", got)
	}

	turns := s.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected exactly two turns, got %d", len(turns))
	}
	if turns[0].Speaker != SpeakerUser || turns[0].Text != "hi" {
		t.Errorf("unexpected user turn %+v", turns[0])
	}
	if turns[1].Speaker != SpeakerPet || turns[1].Text != TooHungryReply {
		t.Errorf("unexpected refusal turn %+v", turns[1])
	}
	if gen.calls.Load() != 0 {
		t.Fatalf("expected zero generator calls, got %d", gen.calls.Load())
	}
}

func TestWindowRejectsOverQuotaUntilItSlides(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	s, c := newTestSession(pet.DefaultStats(), gen, Options{
		Window: limiter.NewMessageWindow(60*time.Second, 3),
	})
	ctx := context.Background()

	s.Submit(ctx, "src", "one")
	c.Advance(5 * time.Millisecond)
	s.Submit(ctx, "src", "two")
	c.Advance(5 * time.Millisecond)
	if got := s.Submit(ctx, "src", "three"); got != ResultReplied {
		t.Fatalf("expected third message within quota, got %s", got)
	}

	if got := s.Submit(ctx, "src", "four"); got != ResultRateLimited {
		t.Fatalf("expected window rejection, got %s", got)
	}
	if gen.calls.Load() != 3 {
		t.Fatalf("expected rejected message not to reach generator, got %d calls", gen.calls.Load())
	}
	turns := s.Turns()
	last := turns[len(turns)-1]
	if last.Text != limiter.ReasonWaitBeforeMore.Message() {
		t.Errorf("expected window reason, got %q", last.Text)
	}
	if turns[len(turns)-2].Text != "four" {
		t.Errorf("expected user turn before refusal, got %q", turns[len(turns)-2].Text)
	}

	c.Advance(60 * time.Second)
	if got := s.Submit(ctx, "src", "five"); got != ResultReplied {
		t.Fatalf("expected acceptance after the window slid, got %s", got)
	}
}

func TestThirdQuickSubmitRejectedWhenWindowHoldsEarlierMessage(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	w := limiter.NewMessageWindow(60*time.Second, 3)
	s, c := newTestSession(pet.DefaultStats(), gen, Options{Window: w})
	ctx := context.Background()

	w.Check(c.Now())
	var results []Result
	for _, text := range []string{"a", "b", "c"} {
		results = append(results, s.Submit(ctx, "src", text))
		c.Advance(5 * time.Millisecond)
	}
	if results[0] != ResultReplied || results[1] != ResultReplied || results[2] != ResultRateLimited {
		t.Fatalf("unexpected results %v", results)
	}
	if gen.calls.Load() != 2 {
		t.Fatalf("expected 2 generator calls, got %d", gen.calls.Load())
	}
}

func TestSpacingGuardPerSource(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	s, c := newTestSession(pet.DefaultStats(), gen, Options{
		Spacing: limiter.NewSpacingGuard(3*time.Second, time.Minute),
		Window:  limiter.NewMessageWindow(time.Minute, 100),
	})
	ctx := context.Background()

	s.Submit(ctx, "10.0.0.1", "hi")
	c.Advance(time.Second)
	if got := s.Submit(ctx, "10.0.0.1", "again"); got != ResultRateLimited {
		t.Fatalf("expected spacing rejection, got %s", got)
	}
	turns := s.Turns()
	if turns[len(turns)-1].Text != limiter.ReasonSlowDown.Message() {
		t.Errorf("expected slow-down reason, got %q", turns[len(turns)-1].Text)
	}
	if got := s.Submit(ctx, "10.0.0.2", "other"); got != ResultReplied {
		t.Fatalf("expected other source accepted, got %s", got)
	}

	c.Advance(2 * time.Second)
	if got := s.Submit(ctx, "10.0.0.1", "later"); got != ResultReplied {
		t.Fatalf("expected acceptance after 3s, got %s", got)
	}
}

func TestGeneratorFailureAppendsFallback(t *testing.T) {
	gen := &fakeProvider{err: &ai.ServiceError{Provider: "fake", StatusCode: 500, Message: "boom"}}
	log := events.NewEventLog(nil, nil)
	s, _ := newTestSession(pet.DefaultStats(), gen, Options{EventLog: log})

	if got := s.Submit(context.Background(), "src", "hi"); got != ResultFallback {
		t.Fatalf("expected fallback, got %s", got)
	}
	turns := s.Turns()
	if len(turns) != 2 || turns[1].Text != FallbackReply {
		t.Fatalf("unexpected turns %+v", turns)
	}
	if s.Busy() {
		t.Error("expected session idle after failure")
	}
	if got := log.GetByType(events.EventTypeChatTurn); len(got) != 2 {
		t.Errorf("expected 2 logged turns, got %d", len(got))
	}
}

func TestEmptyReplyFallsBack(t *testing.T) {
	gen := &fakeProvider{reply: "   "}
	s, _ := newTestSession(pet.DefaultStats(), gen, Options{})

	if got := s.Submit(context.Background(), "src", "hi"); got != ResultFallback {
		t.Fatalf("expected fallback on empty reply, got %s", got)
	}
}

func TestGeneratorTimeoutFallsBack(t *testing.T) {
	gen := &fakeProvider{reply: "late", block: make(chan struct{})}
	s, _ := newTestSession(pet.DefaultStats(), gen, Options{Timeout: 10 * time.Millisecond})

	if got := s.Submit(context.Background(), "src", "hi"); got != ResultFallback {
		t.Fatalf("expected fallback on timeout, got %s", got)
	}
}

func TestBusySessionRejectsSecondSubmit(t *testing.T) {
	gen := &fakeProvider{reply: "meow", block: make(chan struct{})}
	s, _ := newTestSession(pet.DefaultStats(), gen, Options{})

	var seen []Turn
	var mu sync.Mutex
	userTurn := make(chan struct{}, 1)
	s.OnTurn(func(t Turn) {
		mu.Lock()
		seen = append(seen, t)
		mu.Unlock()
		if t.Speaker == SpeakerUser {
			userTurn <- struct{}{}
		}
	})

	done := make(chan Result)
	go func() { done <- s.Submit(context.Background(), "src", "first") }()
	<-userTurn

	if !s.Busy() {
		t.Fatal("expected session busy while generating")
	}
	if got := s.Submit(context.Background(), "src", "second"); got != ResultBusy {
		t.Fatalf("expected busy, got %s", got)
	}

	close(gen.block)
	if got := <-done; got != ResultReplied {
		t.Fatalf("expected first submit replied, got %s", got)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("expected a single generator call, got %d", gen.calls.Load())
	}
	if n := len(s.Turns()); n != 2 {
		t.Fatalf("expected user + reply turns only, got %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[1].Text != "meow" {
		t.Errorf("expected observer to see both turns, got %+v", seen)
	}
}

func TestBusySubmitsDoNotSpendQuota(t *testing.T) {
	gen := &fakeProvider{reply: "meow", block: make(chan struct{})}
	spacing := limiter.NewSpacingGuard(3*time.Second, time.Minute)
	window := limiter.NewMessageWindow(60*time.Second, 3)
	s, c := newTestSession(pet.DefaultStats(), gen, Options{Spacing: spacing, Window: window})

	userTurn := make(chan struct{}, 1)
	s.OnTurn(func(t Turn) {
		if t.Speaker == SpeakerUser {
			select {
			case userTurn <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan Result)
	go func() { done <- s.Submit(context.Background(), "src", "first") }()
	<-userTurn

	for i := 0; i < 2; i++ {
		c.Advance(4 * time.Second)
		if got := s.Submit(context.Background(), "src", "again"); got != ResultBusy {
			t.Fatalf("submit %d: expected busy, got %s", i+2, got)
		}
	}
	if window.Len() != 1 {
		t.Fatalf("expected busy submits to leave the window at 1, got %d", window.Len())
	}

	close(gen.block)
	if got := <-done; got != ResultReplied {
		t.Fatalf("expected first submit replied, got %s", got)
	}

	c.Advance(4 * time.Second)
	if got := s.Submit(context.Background(), "src", "later"); got != ResultReplied {
		t.Fatalf("expected quota to admit the next message, got %s", got)
	}
	if gen.calls.Load() != 2 {
		t.Errorf("expected 2 generator calls, got %d", gen.calls.Load())
	}
}

func TestWindowRefusalLeavesSpacingUnrecorded(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	spacing := limiter.NewSpacingGuard(3*time.Second, time.Minute)
	s, c := newTestSession(pet.DefaultStats(), gen, Options{
		Spacing: spacing,
		Window:  limiter.NewMessageWindow(60*time.Second, 1),
	})

	if got := s.Submit(context.Background(), "10.0.0.1", "one"); got != ResultReplied {
		t.Fatalf("expected first submit replied, got %s", got)
	}
	c.Advance(4 * time.Second)
	if got := s.Submit(context.Background(), "10.0.0.1", "two"); got != ResultRateLimited {
		t.Fatalf("expected window refusal, got %s", got)
	}
	last := s.Turns()[len(s.Turns())-1]
	if last.Text != limiter.ReasonWaitBeforeMore.Message() {
		t.Fatalf("expected window reason, got %q", last.Text)
	}

	// The same source hitting the boundary a second later is not slowed down.
	c.Advance(time.Second)
	if d := spacing.Check("10.0.0.1", c.Now()); !d.Allowed {
		t.Errorf("expected spacing to ignore the refused message, got %+v", d)
	}
}

func TestPromptUsesTemplateAndStats(t *testing.T) {
	gen := &fakeProvider{reply: "meow"}
	s, _ := newTestSession(pet.Stats{Hunger: 42, Happiness: 50, Energy: 60}, gen, Options{Template: ai.Guided})

	s.Submit(context.Background(), "src", "how are you?")
	if gen.lastReq.MaxTokens != 150 {
		t.Errorf("expected guided token limit, got %d", gen.lastReq.MaxTokens)
	}
}

func TestGreetingTurn(t *testing.T) {
	s, _ := newTestSession(pet.DefaultStats(), &fakeProvider{}, Options{Greeting: true})
	turns := s.Turns()
	if len(turns) != 1 || turns[0].Speaker != SpeakerPet || turns[0].Text != GreetingReply {
		t.Fatalf("expected greeting turn, got %+v", turns)
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	s, _ := newTestSession(pet.DefaultStats(), &fakeProvider{reply: "meow"}, Options{})
	s.Submit(context.Background(), "src", "hi")

	turns := s.Turns()
	turns[0].Text = "tampered"
	if s.Turns()[0].Text != "hi" {
		t.Error("expected Turns to return a copy")
	}
}

func TestNilGeneratorFallsBack(t *testing.T) {
	s, _ := newTestSession(pet.DefaultStats(), nil, Options{})
	if got := s.Submit(context.Background(), "src", "hi"); got != ResultFallback {
		t.Fatalf("expected fallback without generator, got %s", got)
	}
}
