package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/GatoVirtual/server/internal/engine"
)

// Sleep is only offered by a running server: the sleeping flag is not saved,
// so a one-shot toggle would be lost on exit.
func init() {
	for _, a := range []struct {
		use   string
		short string
		apply func(*engine.Pet) engine.ActionResult
	}{
		{"feed", "Feed the cat (costs a coin)", (*engine.Pet).Feed},
		{"play", "Play with the cat", (*engine.Pet).Play},
	} {
		apply := a.apply
		RootCmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Run: func(cmd *cobra.Command, args []string) {
				runAction(cmd, apply)
			},
		})
	}
}

// runAction applies one action and saves, the way the save button would.
func runAction(cmd *cobra.Command, apply func(*engine.Pet) engine.ActionResult) {
	l, err := openLocal(cmd.Context())
	if err != nil {
		exitErr("open pet", err)
	}
	defer l.Close()

	result := apply(l.pet)
	if err := l.save(cmd.Context()); err != nil {
		l.fail("save", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		printJSON(out, result)
		return
	}
	if result.Applied {
		fmt.Fprintf(out, "%s: done\n", result.Action)
	} else {
		fmt.Fprintf(out, "%s: refused (%s)\n", result.Action, result.Reason)
	}
	printSnapshot(out, result.State)
}
