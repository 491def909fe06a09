package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

func newChatCmd(app *App) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat on stdin; one message per line, \"/quit\" to leave",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			return runChat(cmd, app, domain.SessionID(sessionID))
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (default: new session)")
	return cmd
}

func runChat(cmd *cobra.Command, app *App, id domain.SessionID) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintf(out, "session %s\n", id)
	fmt.Fprint(out, "> ")

	for in.Scan() {
		line := in.Text()
		if strings.TrimSpace(line) == "/quit" {
			return nil
		}

		resp, err := app.Conversation.Chat(ctx, conversation.ChatInput{SessionID: id, Message: line})
		if err != nil {
			return fmt.Errorf("chat turn: %w", err)
		}

		fmt.Fprintln(out, resp.Reply)
		if resp.Escalate {
			fmt.Fprintln(out, "[escalated]")
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return in.Err()
}
