package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/GatoVirtual/server/internal/chat"
	"github.com/MRamiBalles/GatoVirtual/server/internal/infra/ai"
	"github.com/MRamiBalles/GatoVirtual/server/internal/limiter"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Say something to the cat",
		Args:  cobra.MinimumNArgs(1),
		Run:   runChat,
	}

	cmd.Flags().String("template", "", "Prompt template: guided or freeform (default: $GATO_CHAT_TEMPLATE)")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	l, err := openLocal(cmd.Context())
	if err != nil {
		exitErr("open pet", err)
	}
	defer l.Close()

	gen, err := newProvider(l.cfg)
	if err != nil {
		l.fail("provider", err)
	}
	name := l.cfg.ChatTemplate
	if flag, _ := cmd.Flags().GetString("template"); flag != "" {
		name = flag
	}
	tmpl, err := ai.TemplateByName(name)
	if err != nil {
		l.fail("template", err)
	}

	s := chat.NewSession(l.ownerID, l.pet, gen, chat.Options{
		Template: tmpl,
		Timeout:  l.cfg.GeneratorTimeout,
		Window:   limiter.NewMessageWindow(l.cfg.Tuning.MessageWindow, l.cfg.Tuning.MessageQuota),
		EventLog: l.eventLog,
		Logger:   l.logger,
	})

	result := s.Submit(cmd.Context(), "cli", strings.Join(args, " "))

	out := cmd.OutOrStdout()
	turns := s.Turns()
	if formatFlag == "json" {
		printJSON(out, map[string]interface{}{"result": result, "turns": turns})
		return
	}
	for _, t := range turns {
		if t.Speaker == chat.SpeakerPet {
			fmt.Fprintf(out, "cat: %s\n", t.Text)
		}
	}
}
