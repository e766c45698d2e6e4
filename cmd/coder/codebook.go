package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opencodebook/coder/internal/classify"
	"github.com/opencodebook/coder/internal/config"
	"github.com/opencodebook/coder/internal/types"
)

var (
	codebookProject      string
	codebookFile         string
	codebookColumn       string
	codebookSampleSize   int
	codebookVersion      int
	codebookInstructions string
)

var codebookCmd = &cobra.Command{
	Use:   "codebook",
	Short: "Generate, inspect, and merge codebooks",
}

var codebookGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a codebook from a sample of responses",
	Long: `Generate a codebook by showing the LLM a sample of responses.

The generated codebook is saved as the next version for the project.
Review it with "coder codebook show" before classifying; regenerating
from a different sample and merging refines it:

  coder codebook generate --project nps-q3 --file responses.csv
  coder codebook show --project nps-q3
  coder codebook merge --project nps-q3 --base 1 --next 2`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cfg, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		p, err := store.GetProject(ctx, codebookProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		responses, err := readResponses(codebookFile, codebookColumn, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		sample := make([]string, 0, codebookSampleSize)
		for _, r := range responses {
			if len(sample) == codebookSampleSize {
				break
			}
			sample = append(sample, r.RawText)
		}

		provider, err := newClassifyProvider(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cb, err := provider.GenerateCodebook(ctx, p.Question, sample)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		version, err := store.SaveCodebook(ctx, p.ID, cb)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Generated codebook version %d (%d codes, from %d sampled responses)\n",
			color.GreenString("✓"), version, len(cb.Codes), len(sample))
		printCodebook(cb)
	},
}

var codebookShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a stored codebook version (latest by default)",
	Run: func(cmd *cobra.Command, args []string) {
		store, _, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		p, err := store.GetProject(ctx, codebookProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cb, err := store.LoadCodebook(ctx, p.ID, codebookVersion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Codebook version %d (%d codes)\n", cb.Version, len(cb.Codes))
		printCodebook(cb)
	},
}

var (
	mergeBase int
	mergeNext int
)

var codebookMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge two codebook versions into a new one",
	Run: func(cmd *cobra.Command, args []string) {
		store, cfg, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		p, err := store.GetProject(ctx, codebookProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		base, err := store.LoadCodebook(ctx, p.ID, mergeBase)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load base version %d: %v\n", mergeBase, err)
			os.Exit(1)
		}
		next, err := store.LoadCodebook(ctx, p.ID, mergeNext)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load version %d: %v\n", mergeNext, err)
			os.Exit(1)
		}

		provider, err := newClassifyProvider(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		merged, err := provider.MergeCodebooks(ctx, base, next, codebookInstructions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		version, err := store.SaveCodebook(ctx, p.ID, merged)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Merged versions %d and %d into version %d (%d codes)\n",
			color.GreenString("✓"), base.Version, next.Version, version, len(merged.Codes))
		printCodebook(merged)
	},
}

func printCodebook(cb *types.Codebook) {
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, code := range cb.Codes {
		fmt.Printf("  %s: %s\n", cyan(code.Label), code.Description)
	}
}

// newClassifyProvider builds the Anthropic classification provider from the
// effective configuration.
func newClassifyProvider(cfg *config.Config) (*classify.AnthropicProvider, error) {
	return classify.NewAnthropicProvider(cfg.Provider.APIKey, cfg.Provider.Model, classify.Options{
		MultiLabel:         cfg.Provider.MultiLabel,
		IncludeExplanation: cfg.Provider.IncludeExplanation,
	})
}

func init() {
	rootCmd.AddCommand(codebookCmd)
	codebookCmd.AddCommand(codebookGenerateCmd, codebookShowCmd, codebookMergeCmd)

	codebookCmd.PersistentFlags().StringVar(&codebookProject, "project", "", "Project name (required)")
	codebookCmd.MarkPersistentFlagRequired("project")

	codebookGenerateCmd.Flags().StringVar(&codebookFile, "file", "", "CSV file of responses (required)")
	codebookGenerateCmd.Flags().StringVar(&codebookColumn, "column", "response", "CSV column holding the response text")
	codebookGenerateCmd.Flags().IntVar(&codebookSampleSize, "sample", 100, "Number of responses sampled for generation")
	codebookGenerateCmd.MarkFlagRequired("file")

	codebookShowCmd.Flags().IntVar(&codebookVersion, "version", 0, "Codebook version (0 = latest)")

	codebookMergeCmd.Flags().IntVar(&mergeBase, "base", 0, "Base version to merge into")
	codebookMergeCmd.Flags().IntVar(&mergeNext, "next", 0, "Version to merge in")
	codebookMergeCmd.Flags().StringVar(&codebookInstructions, "instructions", "", "Extra instructions for the merge")
	codebookMergeCmd.MarkFlagRequired("base")
	codebookMergeCmd.MarkFlagRequired("next")
}
