package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the cat's recent activity",
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 20, "Maximum number of events")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	l, err := openLocal(cmd.Context())
	if err != nil {
		exitErr("open pet", err)
	}
	defer l.Close()

	records, err := l.eventRepo.ListByOwner(cmd.Context(), l.ownerID, limit)
	if err != nil {
		l.fail("history", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		printJSON(out, records)
		return
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  %-16s %v\n", r.Timestamp.Local().Format(time.DateTime), r.EventType, r.Payload)
	}
}
