// Package config loads server configuration from the environment and an
// optional TOML tuning file.
package config

import (
	"fmt"
	"time"
)

// Server holds everything the pet server needs to boot.
type Server struct {
	HTTPAddr   string `env:"GATO_HTTP_ADDR"   envDefault:":8080"`
	DBPath     string `env:"GATO_DB_PATH"     envDefault:"gato.db"`
	ConfigFile string `env:"GATO_CONFIG_FILE"`

	// Generator
	Provider         string        `env:"GATO_PROVIDER"          envDefault:"gemini"`
	GeminiAPIKey     string        `env:"GATO_GEMINI_API_KEY"`
	GeminiBaseURL    string        `env:"GATO_GEMINI_BASE_URL"   envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel      string        `env:"GATO_GEMINI_MODEL"      envDefault:"gemini-2.0-flash"`
	OpenAIAPIKey     string        `env:"GATO_OPENAI_API_KEY"`
	AnthropicAPIKey  string        `env:"GATO_ANTHROPIC_API_KEY"`
	GeneratorTimeout time.Duration `env:"GATO_GENERATOR_TIMEOUT" envDefault:"15s"`
	ChatTemplate     string        `env:"GATO_CHAT_TEMPLATE"     envDefault:"freeform"`

	Tuning Tuning
}

// Tuning holds simulation and limiter timings.
type Tuning struct {
	TickInterval     time.Duration `env:"GATO_TICK_INTERVAL"      envDefault:"2s"`
	SaveInterval     time.Duration `env:"GATO_SAVE_INTERVAL"      envDefault:"30s"`
	ReclassifyDelay  time.Duration `env:"GATO_RECLASSIFY_DELAY"   envDefault:"2s"`
	SpacingInterval  time.Duration `env:"GATO_SPACING_INTERVAL"   envDefault:"3s"`
	SpacingRetention time.Duration `env:"GATO_SPACING_RETENTION"  envDefault:"60s"`
	MessageWindow    time.Duration `env:"GATO_MESSAGE_WINDOW"     envDefault:"60s"`
	MessageQuota     int           `env:"GATO_MESSAGE_QUOTA"      envDefault:"3"`
	ClientSendBuffer int           `env:"GATO_CLIENT_SEND_BUFFER" envDefault:"64"`
	Greeting         bool          `env:"GATO_GREETING"           envDefault:"true"`
}

// DefaultTuning returns the stock game timings.
func DefaultTuning() Tuning {
	return Tuning{
		TickInterval:     2 * time.Second,
		SaveInterval:     30 * time.Second,
		ReclassifyDelay:  2 * time.Second,
		SpacingInterval:  3 * time.Second,
		SpacingRetention: 60 * time.Second,
		MessageWindow:    60 * time.Second,
		MessageQuota:     3,
		ClientSendBuffer: 64,
		Greeting:         true,
	}
}

// Load parses the environment, then overlays the tuning file when one is set.
func Load() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.ConfigFile != "" {
		file, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return Server{}, err
		}
		if err := file.Apply(&cfg.Tuning); err != nil {
			return Server{}, err
		}
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects timings that would stall or spin the simulation.
func (t Tuning) Validate() error {
	durations := map[string]time.Duration{
		"tick interval":    t.TickInterval,
		"save interval":    t.SaveInterval,
		"reclassify delay": t.ReclassifyDelay,
		"message window":   t.MessageWindow,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if t.SpacingInterval < 0 || t.SpacingRetention < t.SpacingInterval {
		return fmt.Errorf("spacing retention %s must cover spacing interval %s", t.SpacingRetention, t.SpacingInterval)
	}
	if t.MessageQuota < 1 {
		return fmt.Errorf("message quota must be at least 1, got %d", t.MessageQuota)
	}
	if t.ClientSendBuffer < 1 {
		return fmt.Errorf("client send buffer must be at least 1, got %d", t.ClientSendBuffer)
	}
	return nil
}
