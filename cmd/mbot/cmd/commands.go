package cmd

import (
	"io"

	"github.com/msto63/mBOT/internal/bot"
	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Lists the registered commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, _, err := buildBot(io.Discard, bot.Options{SkipStore: true})
		if err != nil {
			printError("failed to load", err)
			return err
		}
		defer b.Close()
		return b.WriteCommands(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}
