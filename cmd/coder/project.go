package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var projectQuestion string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage classification projects",
}

var projectInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, _, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		p, err := store.CreateProject(context.Background(), args[0], projectQuestion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s Created project %s\n", green("✓"), cyan(p.Name))
		if p.Question != "" {
			fmt.Printf("  Question: %s\n", p.Question)
		}
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, _, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		projects, err := store.ListProjects(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(projects) == 0 {
			fmt.Println("No projects yet. Create one with: coder project init <name>")
			return
		}
		for _, p := range projects {
			fmt.Printf("%s  %s  %s\n", p.CreatedAt.Format("2006-01-02"), p.Name, p.Question)
		}
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a project and its classification progress",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, _, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx := context.Background()
		p, err := store.GetProject(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("Project:  %s\n", cyan(p.Name))
		fmt.Printf("Question: %s\n", p.Question)
		fmt.Printf("Created:  %s\n", p.CreatedAt.Format("2006-01-02 15:04"))

		versions, err := store.ListCodebookVersions(ctx, p.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Codebook versions: %d\n", len(versions))

		classified, failed, err := store.CountResults(ctx, p.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Results: %d classified, %d failed\n", classified, failed)
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project, its codebooks, and its results",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, _, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := store.DeleteProject(context.Background(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Deleted project %s\n", color.GreenString("✓"), args[0])
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectInitCmd, projectListCmd, projectShowCmd, projectDeleteCmd)
	projectInitCmd.Flags().StringVar(&projectQuestion, "question", "", "Survey question the responses answer")
}
