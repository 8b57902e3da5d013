package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/msto63/mBOT/internal/bot"
	"github.com/msto63/mBOT/pkg/core/health"
	"github.com/spf13/cobra"
)

var (
	healthJSON    bool
	healthTimeout time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Runs the health checks once",
	Long: `Assembles the bot, runs every health check and prints the report.

Checks the configured APIs and the invocation log. Exits with an error
when the overall status is unhealthy.`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the report as JSON")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 10*time.Second, "timeout for all checks")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	b, _, err := buildBot(io.Discard, bot.Options{})
	if err != nil {
		printError("failed to load", err)
		return err
	}
	defer b.Close()

	report := b.Health().CheckWithTimeout(healthTimeout)
	out := cmd.OutOrStdout()

	if healthJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s %s\n", report.Service, report.Version)
		fmt.Fprintln(out, "===================")
		fmt.Fprintln(out)
		for _, c := range report.Checks {
			icon := "[+]"
			switch c.Status {
			case health.StatusDegraded, health.StatusUnknown:
				icon = "[~]"
			case health.StatusUnhealthy:
				icon = "[-]"
			}
			fmt.Fprintf(out, "  %s %-20s %-10s %s\n", icon, c.Name, c.Status, c.Message)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Status: %s\n", report.Status)
	}

	if report.Status == health.StatusUnhealthy {
		return fmt.Errorf("status %s", report.Status)
	}
	return nil
}
