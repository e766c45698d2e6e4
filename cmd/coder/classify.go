package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opencodebook/coder/internal/classifier"
	"github.com/opencodebook/coder/internal/config"
	"github.com/opencodebook/coder/internal/embed"
	"github.com/opencodebook/coder/internal/tokens"
	"github.com/opencodebook/coder/internal/types"
)

var (
	classifyProject  string
	classifyFile     string
	classifyColumn   string
	classifyIDColumn string
	classifyCbVer    int
	classifyWorkers  int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a file of responses against the project codebook",
	Long: `Classify every response in a CSV file against the project's codebook.

Near-identical responses are deduplicated and clustered so they share
one LLM call; results are written to the project database and shown
with "coder export".`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cfg, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		p, err := store.GetProject(ctx, classifyProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		codebook, err := store.LoadCodebook(ctx, p.ID, classifyCbVer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v (generate one with: coder codebook generate)\n", err)
			os.Exit(1)
		}
		responses, err := readResponses(classifyFile, classifyColumn, classifyIDColumn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		c, err := newClassifier(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Classifying %d responses against codebook version %d...\n",
			len(responses), codebook.Version)

		outputs, err := c.ClassifyResponses(ctx, responses, codebook, classifier.Options{
			Question:    p.Question,
			Concurrency: classifyWorkers,
		})
		if err != nil && !errors.Is(err, types.ErrTotalFailure) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(outputs) > 0 {
			if saveErr := store.SaveResults(ctx, p.ID, codebook.Version, outputs); saveErr != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to save results: %v\n", saveErr)
				os.Exit(1)
			}
		}

		printSummary(outputs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// newClassifier wires the embedding backend, LLM provider, and estimator
// from the effective configuration.
func newClassifier(cfg *config.Config) (*classifier.Classifier, error) {
	var embedder embed.Provider
	var err error
	switch cfg.Embedding.Backend {
	case "ollama":
		embedder, err = embed.NewOllamaProvider(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	default:
		embedder, err = embed.NewOpenAIProvider(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding backend: %w", err)
	}

	provider, err := newClassifyProvider(cfg)
	if err != nil {
		return nil, err
	}

	return classifier.New(classifier.Config{
		EmbedProvider:  embedder,
		EmbedBatchSize: cfg.Embedding.BatchSize,
		Provider:       provider,
		Estimator:      tokens.NewEstimator(cfg.Provider.Model),
		Clustering:     cfg.Clustering.ToCluster(),
		Scheduling:     cfg.Scheduler.ToScheduler(),
		Logger:         log.Logger,
	})
}

func printSummary(outputs []types.ClassificationOutput) {
	classified, failed := 0, 0
	perCode := make(map[string]int)
	for _, out := range outputs {
		if out.Outcome == types.OutcomeClassified {
			classified++
			for _, code := range out.AssignedCodes {
				perCode[code]++
			}
		} else {
			failed++
		}
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	fmt.Printf("\n%s %d classified", green("✓"), classified)
	if failed > 0 {
		fmt.Printf(", %s %d failed", red("✗"), failed)
	}
	fmt.Println()
	codes := make([]string, 0, len(perCode))
	for code := range perCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Printf("  %-20s %d\n", code, perCode[code])
	}
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&classifyProject, "project", "", "Project name (required)")
	classifyCmd.Flags().StringVar(&classifyFile, "file", "", "CSV file of responses (required)")
	classifyCmd.Flags().StringVar(&classifyColumn, "column", "response", "CSV column holding the response text")
	classifyCmd.Flags().StringVar(&classifyIDColumn, "id-column", "", "CSV column holding stable response IDs (default: generated)")
	classifyCmd.Flags().IntVar(&classifyCbVer, "codebook-version", 0, "Codebook version to classify against (0 = latest)")
	classifyCmd.Flags().IntVar(&classifyWorkers, "workers", 0, "Concurrent LLM calls (0 = config default)")
	classifyCmd.MarkFlagRequired("project")
	classifyCmd.MarkFlagRequired("file")
}
