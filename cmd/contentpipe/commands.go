package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// jobView mirrors the fields the CLI renders from job responses.
type jobView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Keyword   string `json:"keyword"`
	Category  string `json:"category"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	FinalPost *struct {
		Title       string `json:"title"`
		Slug        string `json:"slug"`
		ReadingTime int    `json:"readingTime"`
	} `json:"finalPost,omitempty"`
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage content jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List content jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/jobs")
		if err != nil {
			return err
		}

		var jobs []jobView
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No content jobs found.")
			return nil
		}

		for _, j := range jobs {
			title := j.Keyword
			if j.FinalPost != nil && j.FinalPost.Title != "" {
				title = j.FinalPost.Title
			}
			fmt.Printf("%s  %s %s\n",
				colorize(colorCyan, j.ID[:8]),
				statusColor(fmt.Sprintf("%-11s", j.Status)),
				title,
			)
			if j.Error != "" {
				fmt.Printf("          %s\n", colorize(colorRed, j.Error))
			}
		}
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a content job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/jobs/"+args[0])
		if err != nil {
			return err
		}

		var job any
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create <keyword>",
	Short: "Create a content job for a keyword",
	Long: `Create a content job for a keyword.

Examples:
  contentpipe jobs create "metal roofing cost"
  contentpipe jobs create "roof repair near me" --category local --advance`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword := strings.Join(args, " ")
		category, _ := cmd.Flags().GetString("category")
		advance, _ := cmd.Flags().GetBool("advance")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if advance {
			printStep("Running pipeline for %q...", keyword)
		}

		req := map[string]any{"keyword": keyword, "advance": advance}
		if category != "" {
			req["category"] = category
		}
		resp, err := client.post(cmd.Context(), "/jobs", req)
		if err != nil {
			return err
		}

		var job jobView
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printSuccess("Job %s created (%s)", job.ID[:8], job.Status)
		return nil
	},
}

var jobsAdvanceCmd = &cobra.Command{
	Use:   "advance <id>",
	Short: "Run a pending job through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Running pipeline...")
		resp, err := client.post(cmd.Context(), "/jobs/"+args[0]+"/advance", map[string]any{})
		if err != nil {
			return err
		}

		var job jobView
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		if job.Status == "failed" {
			printError("Job %s failed: %s", job.ID[:8], job.Error)
			return nil
		}
		printSuccess("Job %s is now %s", job.ID[:8], job.Status)
		return nil
	},
}

var jobsPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish a reviewed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/jobs/"+args[0], map[string]any{"action": "publish"})
		if err != nil {
			return err
		}

		var job jobView
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printSuccess("Published %q", jobTitle(job))
		return nil
	},
}

var jobsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a job's post while it is in review",
	Long: `Edit a job's post while it is in review.

Examples:
  contentpipe jobs update 1a2b3c4d --title "New title"
  contentpipe jobs update 1a2b3c4d --body-file ./edited.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates := map[string]any{}
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			updates["title"] = title
		}
		if cmd.Flags().Changed("excerpt") {
			excerpt, _ := cmd.Flags().GetString("excerpt")
			updates["excerpt"] = excerpt
		}
		if cmd.Flags().Changed("body-file") {
			path, _ := cmd.Flags().GetString("body-file")
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading body file: %w", err)
			}
			updates["body"] = string(data)
		}
		if len(updates) == 0 {
			return fmt.Errorf("one of --title, --excerpt, or --body-file is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"action": "update", "updates": updates}
		resp, err := client.patch(cmd.Context(), "/jobs/"+args[0], req)
		if err != nil {
			return err
		}

		var job jobView
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printSuccess("Updated %q", jobTitle(job))
		return nil
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a content job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/jobs/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Job deleted")
		return nil
	},
}

func init() {
	jobsCreateCmd.Flags().String("category", "", "article category (guides, cost, comparison, maintenance, local)")
	jobsCreateCmd.Flags().Bool("advance", false, "run the pipeline immediately after creation")
	jobsUpdateCmd.Flags().String("title", "", "new post title")
	jobsUpdateCmd.Flags().String("excerpt", "", "new post excerpt")
	jobsUpdateCmd.Flags().String("body-file", "", "file containing the new post body")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsAdvanceCmd)
	jobsCmd.AddCommand(jobsPublishCmd)
	jobsCmd.AddCommand(jobsUpdateCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
}

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate draft articles from the top keyword opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Generating %d article(s)...", count)
		resp, err := client.post(cmd.Context(), "/jobs/auto-generate", map[string]any{"count": count})
		if err != nil {
			return err
		}

		var jobs []jobView
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		if len(jobs) == 0 {
			printWarning("No eligible keyword opportunities found")
			return nil
		}

		for _, j := range jobs {
			if j.Status == "failed" {
				printError("%s: %s", j.Keyword, j.Error)
				continue
			}
			printSuccess("%s → %s (%s)", j.Keyword, jobTitle(j), j.Status)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().Int("count", 1, "number of articles to generate")
}

// --- opportunities ---

var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "List scored keyword opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/opportunities")
		if err != nil {
			return err
		}

		var opps []struct {
			Keyword     string  `json:"keyword"`
			Kind        string  `json:"kind"`
			Impressions int     `json:"impressions"`
			Clicks      int     `json:"clicks"`
			CTR         float64 `json:"ctr"`
			Position    float64 `json:"position"`
		}
		if err := decodeJSON(resp, &opps); err != nil {
			return err
		}

		if len(opps) == 0 {
			fmt.Println("No keyword opportunities found.")
			return nil
		}

		fmt.Printf("%-40s %-18s %12s %8s %8s\n", "KEYWORD", "KIND", "IMPRESSIONS", "CTR", "POS")
		for _, o := range opps {
			fmt.Printf("%-40s %-18s %12d %8.3f %8.1f\n",
				o.Keyword, o.Kind, o.Impressions, o.CTR, o.Position)
		}
		return nil
	},
}

func jobTitle(j jobView) string {
	if j.FinalPost != nil && j.FinalPost.Title != "" {
		return j.FinalPost.Title
	}
	return j.Keyword
}
