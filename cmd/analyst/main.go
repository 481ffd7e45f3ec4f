// Command analyst answers natural-language questions about a tabular dataset.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"analyst/internal/config"
	"analyst/internal/logging"
	"analyst/internal/transparency"
)

var (
	// Global flags
	configPath string
	dataPath   string
	verbose    bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "analyst",
	Short: "Ask questions about a dataset in plain language",
	Long: `analyst loads a CSV dataset and answers questions about it.

Each question is routed: conversational questions are answered directly,
data questions are turned into a Go script that runs in a sandbox against
the dataset. Failed scripts are repaired and retried, and the script output
is summarized into the final answer.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dataPath != "" {
			loaded.Dataset.Path = dataPath
		}
		cfg = loaded

		logCfg := cfg.Logging.ToLogging()
		if verbose {
			logCfg.Level = "debug"
		}
		// The TUI owns the terminal.
		if isInteractive(cmd) && logCfg.File == "" {
			logCfg.File = filepath.Join(filepath.Dir(cfg.Store.Path), "analyst.log")
		}
		if err := logging.Initialize(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.BootDebug("config loaded from %s (provider=%s, data=%s)", configPath, cfg.LLM.Provider, cfg.Dataset.Path)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runChat,
}

func isInteractive(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "chat"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "CSV dataset (overrides dataset.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&chatSession, "session", "", "Resume a stored session")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, transparency.ClassifyError(err).Format())
		os.Exit(1)
	}
}
