package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "contentpipe",
	Short: "Keyword-driven article pipeline: research, draft, link, illustrate, publish",
	Long: `contentpipe turns keyword opportunities into reviewed articles.

It scores keywords from search analytics, researches the competition,
drafts a post with an LLM, inserts internal links, sources images, and
holds the result for review before publishing.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// A .env next to the binary is a convenience for local runs; its
	// absence is not an error.
	_ = godotenv.Load()

	// Default honors https://no-color.org; the flag can still force it on.
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(opportunitiesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
