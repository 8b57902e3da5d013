package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/internal/bot"
	"github.com/msto63/mBOT/pkg/core/config"
	"github.com/msto63/mBOT/pkg/core/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mbot",
	Short: "meinBOT - chat command bot",
	Long: `meinBOT routes chat messages to commands, services and
multi-step conversations.

Transports:
  serve    - websocket gateway for platform adapters
  console  - interactive terminal session`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $MBOT_CONFIG or ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads --config, falling back to the environment and the
// default locations
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadFromEnv()
}

// buildBot loads the configuration and assembles a bot logging to logOut
func buildBot(logOut io.Writer, opts bot.Options) (*bot.Bot, *log.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.FromConfig(cfg.General, verbose, logOut)
	log.SetDefault(logger)

	b, err := bot.New(cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}
	return b, logger, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
