package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "personad",
	Short: "personad - conversational agent personas with simulated daily schedules",
	Long: `personad operates conversational agent personas that live on simulated
day plans: each agent's schedule is generated through an LLM, monitored in
the background, and consulted on every message to decide whether the agent
is reachable or answers with an in-character busy reply.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
}
