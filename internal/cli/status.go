package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/GatoVirtual/server/internal/domain/pet"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cat's stats, coins and mood",
		Run:   runStatus,
	}

	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	l, err := openLocal(cmd.Context())
	if err != nil {
		exitErr("open pet", err)
	}
	defer l.Close()

	printSnapshot(cmd.OutOrStdout(), l.pet.Snapshot())
}

func printSnapshot(w io.Writer, snap pet.Snapshot) {
	if formatFlag == "json" {
		printJSON(w, snap)
		return
	}
	fmt.Fprintf(w, "owner:     %s\n", snap.OwnerID)
	fmt.Fprintf(w, "hunger:    %s %3.0f\n", bar(snap.Stats.Hunger), snap.Stats.Hunger)
	fmt.Fprintf(w, "happiness: %s %3.0f\n", bar(snap.Stats.Happiness), snap.Stats.Happiness)
	fmt.Fprintf(w, "energy:    %s %3.0f\n", bar(snap.Stats.Energy), snap.Stats.Energy)
	fmt.Fprintf(w, "coins:     %d\n", snap.Coins)
	fmt.Fprintf(w, "mood:      %s\n", snap.Mood)
	fmt.Fprintf(w, "%s\n", snap.Message)
}

// bar renders a stat as a ten-cell gauge.
func bar(v float64) string {
	filled := int(v/10 + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 10-filled) + "]"
}
