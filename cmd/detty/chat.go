package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask one question and print the reply",
	Long: `Run a single conversation turn without the interactive TUI.

The turn uses the same per-visitor memory as interactive mode, so a
follow-up chat command with the same --user continues the conversation.

Examples:
  detty chat "is Lekki safe at night?"
  detty chat --user ada "find me luxury lodging on VI for 3 nights"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		user := rootUser
		if user == "" {
			user = "guest"
		}

		res, err := a.orch.HandleTurn(context.Background(), user, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("turn failed: %w", err)
		}
		fmt.Println(res.Response)
		return nil
	},
}
