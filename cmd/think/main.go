package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "think",
	Short: "Check a message against True, Helpful, Important, Necessary and Kind",
	Long: `think keeps a local log of messages scored against the five T.H.I.N.K.
questions, tracks your daily streak and shows how often you chose to keep
it to yourself.

Run "think start" to launch the local server, then use the other commands.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}

	rootCmd.AddCommand(
		startCmd,
		stopCmd,
		statusCmd,
		evaluateCmd,
		scoreCmd,
		historyCmd,
		statsCmd,
		progressCmd,
		sessionCmd,
		dataCmd,
		configCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

