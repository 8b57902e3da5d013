package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/msto63/mBOT/internal/bot"
	"github.com/msto63/mBOT/internal/transport/console"
	"github.com/spf13/cobra"
)

var (
	consoleUser     string
	consolePlatform string
	consoleQuiet    bool
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Starts an interactive session",
	Long: `Reads messages from the terminal and prints the replies.

Every line is dispatched as one message of the given user. Type 'exit'
or 'quit' to leave.`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVarP(&consoleUser, "user", "u", "console", "user id the messages are sent as")
	consoleCmd.Flags().StringVar(&consolePlatform, "platform", "console", "platform name of the session")
	consoleCmd.Flags().BoolVarP(&consoleQuiet, "quiet", "q", false, "no welcome line and no hints")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	b, logger, err := buildBot(cmd.ErrOrStderr(), bot.Options{})
	if err != nil {
		printError("failed to start", err)
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go b.Run(ctx)

	cfg := console.DefaultConfig()
	cfg.Platform = consolePlatform
	cfg.UserID = consoleUser
	cfg.ChannelID = consoleUser
	cfg.Quiet = consoleQuiet

	c := console.New(cfg, b, b.Registry(), cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	return c.Run(ctx)
}
