// Package ai - prompts.go
// Prompt templates turning a user message and the pet's stats into a
// completion request.
package ai

import (
	"fmt"
	"strings"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
)

// Template is a named prompt recipe with its generation settings.
type Template struct {
	Name        string
	MaxTokens   int
	Temperature float64
	build       func(message string, stats pet.Stats) string
}

// Guided keeps the reply in character as the cat and short, with the
// current stats embedded. Used by the request boundary.
var Guided = Template{
	Name:        "guided",
	MaxTokens:   150,
	Temperature: 0.7,
	build:       buildGuidedPrompt,
}

// Freeform is the open chat prompt used by the in-game session.
var Freeform = Template{
	Name:        "freeform",
	MaxTokens:   300,
	Temperature: 0.7,
	build:       buildFreeformPrompt,
}

// TemplateByName resolves a configured template name.
func TemplateByName(name string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Guided.Name:
		return Guided, nil
	case Freeform.Name, "":
		return Freeform, nil
	default:
		return Template{}, fmt.Errorf("unknown chat template %q", name)
	}
}

// Request renders the prompt into a single-turn completion request.
func (t Template) Request(message string, stats pet.Stats) CompletionRequest {
	return CompletionRequest{
		Messages:    []Message{{Role: "user", Content: t.build(message, stats)}},
		MaxTokens:   t.MaxTokens,
		Temperature: t.Temperature,
	}
}

func buildGuidedPrompt(message string, stats pet.Stats) string {
	var sb strings.Builder
	sb.WriteString("You are a small virtual cat living inside a game. Stay in character.\n\n")
	sb.WriteString("Your current state:\n")
	fmt.Fprintf(&sb, "- Hunger: %.0f/100\n", stats.Hunger)
	fmt.Fprintf(&sb, "- Happiness: %.0f/100\n", stats.Happiness)
	fmt.Fprintf(&sb, "- Energy: %.0f/100\n\n", stats.Energy)
	sb.WriteString("Answer briefly (two sentences at most), be friendly and act like a cute cat.\n")
	fmt.Fprintf(&sb, "User: %q\n", message)
	sb.WriteString("Reply:")
	return sb.String()
}

func buildFreeformPrompt(message string, _ pet.Stats) string {
	return fmt.Sprintf("You are a friendly assistant inside a virtual cat game. Answer concisely.\n\nUser: %q\n\nReply:", message)
}
