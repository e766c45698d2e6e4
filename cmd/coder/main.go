// Command coder classifies open-ended survey responses against a codebook
// using embeddings, clustering, and batched LLM calls.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opencodebook/coder/internal/config"
	"github.com/opencodebook/coder/internal/storage"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "coder",
	Short: "Codebook-based classification of open-ended survey responses",
	Long: `coder classifies free-text survey responses against a codebook.

Responses are deduplicated, embedded, and clustered so near-identical
answers share one LLM call; cluster representatives are classified in
token-budgeted batches and the results are spread back over every
response.

Typical workflow:
  coder project init nps-q3 --question "Why did you give that score?"
  coder codebook generate --project nps-q3 --file responses.csv
  coder classify --project nps-q3 --file responses.csv
  coder export --project nps-q3 --format csv > coded.csv`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig loads the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the project database from the effective configuration.
func openStore() (*storage.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
