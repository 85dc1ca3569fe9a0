package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/attention/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "attention",
	Short: "Attention scheduler for knowledge-system agent teams",
	Long: `attention decides which knowledge-maintenance work gets done, by whom,
and for how long.

It scans health signals (open contradictions, weak records, governance
backlog, isolated and hot graph nodes), ranks the resulting work items by
weighted priority, binds the best items to small role-matched worker teams,
and meters every team against a per-cycle budget.

Configuration is read from ~/.config/attention/config.yaml, a project
.attention.yaml, a .env file and ATTENTION_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: user config merged with .attention.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log scheduler decisions to stderr when no log file is configured")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
