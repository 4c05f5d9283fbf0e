package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/madigan/contentpipe/internal/content"
	"github.com/madigan/contentpipe/internal/pipeline"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Orchestrator *pipeline.Orchestrator
}

// NewMCPServer creates an MCP server exposing the content pipeline as
// operator tools over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"contentpipe",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("contentpipe is a keyword-driven article pipeline: discover opportunities, generate drafts, review and publish."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_jobs",
			mcp.WithDescription("List all content jobs, newest first, with their pipeline status."),
		),
		mcpListJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("create_job",
			mcp.WithDescription("Create a content job for a keyword and optionally run it through the pipeline immediately."),
			mcp.WithString("keyword", mcp.Description("Target keyword for the article"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Article category: guides, cost, comparison, maintenance or local (default guides)")),
			mcp.WithBoolean("advance", mcp.Description("Run the pipeline right after creation (default false)")),
		),
		mcpCreateJob(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_articles",
			mcp.WithDescription("Score keyword opportunities and generate draft articles for the top ones."),
			mcp.WithNumber("count", mcp.Description("Number of articles to generate (default 1)")),
		),
		mcpGenerateArticles(deps),
	)

	s.AddTool(
		mcp.NewTool("list_opportunities",
			mcp.WithDescription("List scored keyword opportunities from search analytics."),
		),
		mcpListOpportunities(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"pipeline://status",
			"Pipeline Status",
			mcp.WithResourceDescription("Configured integrations and job counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	return s
}

func mcpListJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobs, err := deps.Orchestrator.List(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list jobs: %v", err)), nil
		}
		if len(jobs) == 0 {
			return mcpText("no content jobs yet"), nil
		}

		b, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal jobs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		category := req.GetString("category", "")
		advance := req.GetBool("advance", false)

		job, err := deps.Orchestrator.Create(ctx, keyword, content.Category(category))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create job: %v", err)), nil
		}
		if advance {
			job, err = deps.Orchestrator.Advance(ctx, job.ID)
			if err != nil {
				return mcpError(fmt.Sprintf("job %s created but pipeline failed: %v", job.ID, err)), nil
			}
		}

		b, err := json.MarshalIndent(job, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal job: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateArticles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		count := req.GetInt("count", 1)
		if count < 1 {
			count = 1
		}

		jobs, err := deps.Orchestrator.AutoGenerate(ctx, count)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to generate articles: %v", err)), nil
		}
		if len(jobs) == 0 {
			return mcpText("no eligible keyword opportunities found"), nil
		}

		type jobSummary struct {
			ID      string `json:"id"`
			Keyword string `json:"keyword"`
			Status  string `json:"status"`
			Error   string `json:"error,omitempty"`
		}
		summaries := make([]jobSummary, len(jobs))
		for i, j := range jobs {
			summaries[i] = jobSummary{ID: j.ID, Keyword: j.Keyword, Status: string(j.Status), Error: j.Error}
		}

		b, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListOpportunities(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opps, err := deps.Orchestrator.Opportunities(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list opportunities: %v", err)), nil
		}
		if len(opps) == 0 {
			return mcpText("no keyword opportunities found"), nil
		}

		b, err := json.MarshalIndent(opps, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal opportunities: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		status, err := deps.Orchestrator.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get status: %w", err)
		}

		b, err := json.Marshal(status)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
