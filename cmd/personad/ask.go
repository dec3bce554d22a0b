package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/persona-dev/personad/internal/app"
	"github.com/persona-dev/personad/internal/bus"
	"github.com/persona-dev/personad/internal/config"
	"github.com/persona-dev/personad/internal/logger"
	"github.com/persona-dev/personad/internal/schedule"
)

var (
	askConfigPath string
	askAgentID    string
	askChannel    string
	askForce      bool
)

// askCmd sends a single message to an agent and prints the reply. Useful
// for trying out a persona without any channel configured.
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message to an agent and print the reply",
	Long: `Send a single message to an agent persona and print its reply.
The agent's schedule is generated first, so a busy agent answers with an
in-character busy reply unless --force is given.`,
	Args: cobra.ExactArgs(1),
	Run:  askHandler,
}

func askHandler(cmd *cobra.Command, args []string) {
	loadDotEnv("./.env")

	configPath := askConfigPath
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// Channels stay offline for a one-shot ask.
	cfg.Channels.Telegram.Enabled = false
	cfg.Metrics.Enabled = false

	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("❌ Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  "warn",
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		fmt.Printf("❌ Failed to build application: %v\n", err)
		os.Exit(1)
	}

	agentID := askAgentID
	if agentID == "" {
		ids := application.Directory.IDs()
		agentID = ids[0]
	}

	medium, err := schedule.ParseChannel(askChannel)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	if err := application.Scheduler.Initialize(ctx); err != nil {
		fmt.Printf("❌ Failed to initialize schedules: %v\n", err)
		os.Exit(1)
	}

	msg := bus.NewInboundMessage(bus.TransportAPI, agentID, "cli", "cli", args[0], medium)
	msg.ForceGenerate = askForce

	reply, err := application.Responder.Respond(ctx, *msg)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println(reply)
}

func init() {
	askCmd.Flags().StringVarP(&askConfigPath, "config", "c", "", "path to config file (default ./config.toml)")
	askCmd.Flags().StringVarP(&askAgentID, "agent", "a", "", "agent id (default: first configured agent)")
	askCmd.Flags().StringVar(&askChannel, "channel", "chat", "channel to ask on (chat, voice, video)")
	askCmd.Flags().BoolVar(&askForce, "force", false, "force a conversation even when the agent is busy")
}
