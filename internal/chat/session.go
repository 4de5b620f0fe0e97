// Package chat implements the pet's conversation: an ordered turn log guarded
// by a hunger check and the interaction limiter, with one generation in
// flight at a time.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
	"github.com/MRamiBalles/GatoVirtual/server/internal/events"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/ai"
	"github.com/MRamiBalles/GatoVirtual/server/internal/limiter"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/logger"
	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/metrics"
)

// Fixed pet replies.
const (
	GreetingReply  = "Hi! I'm your cat. Ask me anything!"
	TooHungryReply = "The cat is too hungry to talk..."
	FallbackReply  = "Error, try again!"
)

// DefaultTimeout bounds one generator call.
const DefaultTimeout = 15 * time.Second

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerPet  Speaker = "pet"
)

// Turn is one entry of the conversation. Turns are append-only.
type Turn struct {
	ID      string    `json:"id"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Result is the terminal state of one Submit call.
type Result string

const (
	ResultIgnored     Result = "ignored"      // empty input, nothing recorded
	ResultTooHungry   Result = "too-hungry"   // hunger gate refused
	ResultRateLimited Result = "rate-limited" // spacing or window guard refused
	ResultBusy        Result = "busy"         // a reply is already being generated
	ResultReplied     Result = "replied"
	ResultFallback    Result = "fallback" // generator failed, fixed reply appended
)

// StatsSource exposes the pet's current stats to the hunger gate and prompt.
type StatsSource interface {
	Stats() pet.Stats
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	Template ai.Template
	Timeout  time.Duration

	// Spacing is shared by every session of the process and keyed by source
	// identity. Nil disables the spacing guard.
	Spacing *limiter.SpacingGuard
	// Window belongs to this session. Nil creates the default 3 per minute.
	Window *limiter.MessageWindow

	Greeting bool
	Now      func() time.Time

	EventLog *events.EventLog
	Logger   *logger.Logger
	Metrics  *metrics.Collector
}

// Session is one owner's conversation with the pet.
type Session struct {
	ownerID string
	stats   StatsSource
	gen     ai.LLMProvider
	opts    Options

	mu        sync.Mutex
	turns     []Turn
	busy      bool
	observers []func(Turn)
}

// NewSession creates a session for ownerID, optionally opened by a greeting.
func NewSession(ownerID string, stats StatsSource, gen ai.LLMProvider, opts Options) *Session {
	if opts.Template.Name == "" {
		opts.Template = ai.Freeform
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Window == nil {
		opts.Window = limiter.NewMessageWindow(time.Minute, 3)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Get()
	}

	s := &Session{ownerID: ownerID, stats: stats, gen: gen, opts: opts}
	if opts.Greeting {
		s.turns = append(s.turns, s.newTurn(SpeakerPet, GreetingReply))
	}
	return s
}

// OnTurn registers fn to receive every appended turn, outside the lock.
func (s *Session) OnTurn(fn func(Turn)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Turns returns a copy of the conversation.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Busy reports whether a reply is being generated.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Submit processes one user message from source. It never fails: every
// refusal and generator error becomes a turn and a Result.
func (s *Session) Submit(ctx context.Context, source, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return ResultIgnored
	}
	now := s.opts.Now()
	stats := s.stats.Stats()

	s.mu.Lock()

	if stats.Hunger <= 0 {
		added := s.appendLocked(s.newTurn(SpeakerUser, text), s.newTurn(SpeakerPet, TooHungryReply))
		s.mu.Unlock()
		s.finish(added, metrics.ChatTooHungry, "too-hungry")
		return ResultTooHungry
	}

	// Guards record the request only once every gate has passed.
	if s.opts.Spacing != nil {
		if d := s.opts.Spacing.Allow(source, now); !d.Allowed {
			return s.refuseLocked(text, d, metrics.ChatSpacing)
		}
	}
	if d := s.opts.Window.Allow(now); !d.Allowed {
		return s.refuseLocked(text, d, metrics.ChatWindow)
	}

	if s.busy {
		s.mu.Unlock()
		s.opts.Metrics.RecordChat(metrics.ChatBusy)
		return ResultBusy
	}

	if s.opts.Spacing != nil {
		// Another session of the same source may have been admitted meanwhile.
		if d := s.opts.Spacing.Check(source, now); !d.Allowed {
			return s.refuseLocked(text, d, metrics.ChatSpacing)
		}
	}
	s.opts.Window.Record(now)

	added := s.appendLocked(s.newTurn(SpeakerUser, text))
	s.busy = true
	s.mu.Unlock()
	s.publish(added)

	reply, err := s.generate(ctx, text, stats)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		added = s.appendLocked(s.newTurn(SpeakerPet, FallbackReply))
		s.mu.Unlock()
		s.opts.Logger.Warn("Chat generator failed for " + s.ownerID + ": " + err.Error())
		s.opts.Metrics.RecordChat(metrics.ChatFallback)
		s.publish(added)
		return ResultFallback
	}
	added = s.appendLocked(s.newTurn(SpeakerPet, reply))
	s.mu.Unlock()
	s.opts.Metrics.RecordChat(metrics.ChatReplied)
	s.publish(added)
	return ResultReplied
}

func (s *Session) generate(ctx context.Context, text string, stats pet.Stats) (string, error) {
	if s.gen == nil {
		return "", &ai.ServiceError{Provider: "none", Message: "no generator configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.gen.Complete(ctx, s.opts.Template.Request(text, stats))
	s.opts.Metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &ai.ServiceError{Provider: s.gen.Name(), Message: "empty reply"}
	}
	return strings.TrimSpace(resp.Content), nil
}

func (s *Session) appendLocked(turns ...Turn) []Turn {
	s.turns = append(s.turns, turns...)
	return turns
}

func (s *Session) newTurn(speaker Speaker, text string) Turn {
	return Turn{
		ID:      ulid.Make().String(),
		Speaker: speaker,
		Text:    text,
		At:      s.opts.Now(),
	}
}

// refuseLocked appends the user turn and the guard's refusal. It releases
// the lock.
func (s *Session) refuseLocked(text string, d limiter.Decision, outcome metrics.ChatOutcome) Result {
	added := s.appendLocked(s.newTurn(SpeakerUser, text), s.newTurn(SpeakerPet, d.Reason.Message()))
	s.mu.Unlock()
	s.finish(added, outcome, string(d.Reason))
	return ResultRateLimited
}

// finish publishes the turns of a refused submission.
func (s *Session) finish(added []Turn, outcome metrics.ChatOutcome, reason string) {
	s.opts.Metrics.RecordChat(outcome)
	if s.opts.EventLog != nil {
		s.opts.EventLog.Append(events.NewEvent(events.EventTypeChatRefused, s.ownerID, map[string]any{"reason": reason}))
	}
	s.publish(added)
}

func (s *Session) publish(added []Turn) {
	s.mu.Lock()
	observers := make([]func(Turn), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, t := range added {
		if s.opts.EventLog != nil {
			s.opts.EventLog.Append(events.NewEvent(events.EventTypeChatTurn, s.ownerID, map[string]any{
				"turn_id": t.ID,
				"speaker": string(t.Speaker),
				"text":    t.Text,
			}))
		}
		for _, fn := range observers {
			fn(t)
		}
	}
}
