package cli

import (
	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/app/journal"
	"github.com/PabloGalante/farum-triage/internal/app/triage"
)

// App holds the services the CLI commands run against.
type App struct {
	Conversation *conversation.Service
	Journal      *journal.Service
	Classifier   *triage.Classifier
}

// NewRootCmd creates the top-level "farum" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "farum",
		Short:         "Supportive chat with crisis triage and PHQ-9 screening",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newChatCmd(app),
		newClassifyCmd(app),
		newScoreCmd(),
		newEscalatedCmd(app),
	)

	return root
}
