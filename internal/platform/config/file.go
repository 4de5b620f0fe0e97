package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML tuning file. Every field is optional and
// only overrides the environment when present.
type FileConfig struct {
	Simulation SimulationFile `toml:"simulation"`
	Chat       ChatFile       `toml:"chat"`
}

// SimulationFile maps the [simulation] table.
type SimulationFile struct {
	TickInterval    *string `toml:"tick-interval"`
	SaveInterval    *string `toml:"save-interval"`
	ReclassifyDelay *string `toml:"reclassify-delay"`
}

// ChatFile maps the [chat] table.
type ChatFile struct {
	SpacingInterval  *string `toml:"spacing-interval"`
	SpacingRetention *string `toml:"spacing-retention"`
	Window           *string `toml:"window"`
	Quota            *int    `toml:"quota"`
	Greeting         *bool   `toml:"greeting"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Apply overlays the file values onto t.
func (f FileConfig) Apply(t *Tuning) error {
	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"simulation.tick-interval", f.Simulation.TickInterval, &t.TickInterval},
		{"simulation.save-interval", f.Simulation.SaveInterval, &t.SaveInterval},
		{"simulation.reclassify-delay", f.Simulation.ReclassifyDelay, &t.ReclassifyDelay},
		{"chat.spacing-interval", f.Chat.SpacingInterval, &t.SpacingInterval},
		{"chat.spacing-retention", f.Chat.SpacingRetention, &t.SpacingRetention},
		{"chat.window", f.Chat.Window, &t.MessageWindow},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	if f.Chat.Quota != nil {
		t.MessageQuota = *f.Chat.Quota
	}
	if f.Chat.Greeting != nil {
		t.Greeting = *f.Chat.Greeting
	}
	return nil
}
