package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	exportProject string
	exportFormat  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export classification results as JSON or CSV",
	Run: func(cmd *cobra.Command, args []string) {
		store, _, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		p, err := store.GetProject(ctx, exportProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		outputs, err := store.GetResults(ctx, p.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(outputs) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no results for project %q; run classify first\n", exportProject)
			os.Exit(1)
		}

		switch exportFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(outputs); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		case "csv":
			w := csv.NewWriter(os.Stdout)
			w.Write([]string{"response_id", "codes", "evidence", "pertinence", "outcome", "failure_reason"})
			for _, out := range outputs {
				w.Write([]string{
					out.ResponseID,
					strings.Join(out.AssignedCodes, ";"),
					out.EvidenceText,
					strconv.FormatFloat(out.PertinenceScore, 'f', 2, 64),
					string(out.Outcome),
					out.FailureReason,
				})
			}
			w.Flush()
			if err := w.Error(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown format %q (want json or csv)\n", exportFormat)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportProject, "project", "", "Project name (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or csv")
	exportCmd.MarkFlagRequired("project")
}
