// Package cli implements the gato commands: the pet server and one-shot
// commands that act on a saved pet directly.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/GatoVirtual/server/internal/platform/config"
)

var (
	dbPath     string
	ownerFlag  string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "gato",
	Short: "A virtual cat that gets hungry, plays, sleeps and talks",
	Long:  "Virtual pet server and CLI. Stats decay on a tick, actions spend coins, and the cat chats through a rate-limited generator. SQLite-backed.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $GATO_DB_PATH or gato.db)")
	RootCmd.PersistentFlags().StringVarP(&ownerFlag, "owner", "o", "", "Owner ID (default: $GATO_OWNER or an ID generated once and kept in ~/.gato/owner)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
}

// loadConfig reads the environment and tuning file, then applies flags.
func loadConfig() (config.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Server{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// resolveOwner picks the owner the one-shot commands act on. Without a flag
// or environment value an anonymous ID is generated once and remembered.
func resolveOwner() (string, error) {
	if ownerFlag != "" {
		return ownerFlag, nil
	}
	if env := os.Getenv("GATO_OWNER"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return ownerFromFile(filepath.Join(home, ".gato", "owner"))
}

func ownerFromFile(path string) (string, error) {
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read owner file: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write owner file: %w", err)
	}
	return id, nil
}

// printJSON writes v indented.
func printJSON(w io.Writer, v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// exit is replaced in tests.
var exit = os.Exit

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	exit(1)
}
