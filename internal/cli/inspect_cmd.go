package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-triage/internal/app/screening"
	"github.com/PabloGalante/farum-triage/internal/app/triage"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

func newClassifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message>",
		Short: "Show which triggers a message hits, in priority order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matches := app.Classifier.Matches(strings.Join(args, " "))
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), domain.IntentGeneralChat)
				return nil
			}
			for _, intent := range matches {
				fmt.Fprintln(cmd.OutOrStdout(), intent)
			}
			return nil
		},
	}
}

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <answer>...",
		Short: "Score nine PHQ-9 answers",
		Example: `  farum score "not at all" "several days" "several days" "not at all" \
    "more than half the days" "not at all" "not at all" "nearly every day" "not at all"`,
		Args: cobra.ExactArgs(domain.QuestionCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := make([]string, len(args))
			for i, a := range args {
				answers[i] = triage.NormalizeAnswer(a)
				if !screening.IsValidAnswer(answers[i]) {
					return fmt.Errorf("answer %d: %q is not a PHQ-9 option", i+1, a)
				}
			}

			res := screening.Score(answers)
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d %s\n", res.Score, screening.MaxScore, res.Severity)
			return nil
		},
	}
}

func newEscalatedCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "escalated",
		Short: "List escalated sessions with their latest screening",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Journal.Escalated(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no escalated sessions")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  updated %s  events %d",
					e.Session.ID, e.Session.UpdatedAt.Format("2006-01-02 15:04"), len(e.Events))
				if last, ok := e.LastScore(); ok {
					line += fmt.Sprintf("  last score %d (%s)", last.Score, last.Severity)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to list (default 20)")
	return cmd
}
