package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootUser string

var rootCmd = &cobra.Command{
	Use:   "detty",
	Short: "Lagos Detty-December travel advisor",
	Long: `Detty is a conversational travel advisor for Lagos in December.

With no arguments, launches an interactive chat session. Behind each
turn a router decides whether to answer directly, pull live data, or
delegate to the advisory, safety, or booking specialist, then merges
the partial answers into one reply.

Core capabilities:
- Attraction, lodging, and local-tip recommendations by budget tier
- Area safety scores with alerts and emergency contacts
- Booking reminders for venues you have already picked
- Per-visitor memory: preferences, alerts, and bookings persist
  across sessions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(rootUser)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootUser, "user", "", "Visitor ID for session memory (default: guest)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
