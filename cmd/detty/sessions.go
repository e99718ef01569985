package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	sessionsClear    string
	sessionsClearAll bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List or clear stored visitor sessions",
	Long: `Manage the per-visitor profiles in the session store.

Without flags, lists every stored visitor ID. Clearing a session
removes that visitor's preferences, memory, and chat history.

Examples:
  detty sessions                 # list visitors
  detty sessions --clear ada     # forget one visitor
  detty sessions --clear-all     # forget everyone`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsClear, "clear", "", "Delete the session for the given visitor ID")
	sessionsCmd.Flags().BoolVar(&sessionsClearAll, "clear-all", false, "Delete all stored sessions")
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	switch {
	case sessionsClear != "":
		if err := store.Delete(ctx, sessionsClear); err != nil {
			return fmt.Errorf("clear session %s: %w", sessionsClear, err)
		}
		fmt.Printf("%s Cleared session for %s\n", color.GreenString("✓"), sessionsClear)
		return nil

	case sessionsClearAll:
		users, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for _, user := range users {
			if err := store.Delete(ctx, user); err != nil {
				return fmt.Errorf("clear session %s: %w", user, err)
			}
		}
		fmt.Printf("%s Cleared %d sessions\n", color.GreenString("✓"), len(users))
		return nil

	default:
		users, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No stored sessions.")
			return nil
		}
		for _, user := range users {
			fmt.Println(user)
		}
		return nil
	}
}
