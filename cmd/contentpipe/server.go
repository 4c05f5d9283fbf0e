package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/madigan/contentpipe/internal/api"
	"github.com/madigan/contentpipe/internal/config"
	"github.com/madigan/contentpipe/internal/generate"
	"github.com/madigan/contentpipe/internal/images"
	"github.com/madigan/contentpipe/internal/linker"
	"github.com/madigan/contentpipe/internal/opportunity"
	"github.com/madigan/contentpipe/internal/pipeline"
	"github.com/madigan/contentpipe/internal/research"
	"github.com/madigan/contentpipe/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the contentpipe server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running contentpipe server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show contentpipe system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "contentpipe.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "contentpipe version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Ensure the API bearer token exists in the data dir.
	apiToken, err := config.EnsureToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("contentpipe is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("contentpipe is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the pipeline adapters. Each falls back to a deterministic
	// mock when its credentials are absent.
	var perfSource opportunity.Source = opportunity.MockSource{}
	if cfg.Search.Configured() {
		perfSource = opportunity.NewSearchConsoleSource(cfg.Search.APIKey, cfg.Search.SiteURL)
	} else {
		slog.Info("search analytics not configured, using mock performance data")
	}
	scorer := opportunity.NewScorer(perfSource, cfg.Site.Vocabulary)

	var serpClient *research.SerpClient
	if cfg.Serp.Configured() {
		serpClient = research.NewSerpClient(cfg.Serp.APIKey, cfg.Serp.BaseURL)
	} else {
		slog.Info("SERP provider not configured, using mock competitor analysis")
	}
	researcher := research.New(serpClient)

	linkCandidates := internalLinkCandidates(cfg)

	var chat generate.ChatClient
	if cfg.LLM.Configured() {
		chat = generate.NewClientWithBaseURL(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	} else {
		slog.Info("LLM not configured, using templated drafts")
	}
	generator := generate.New(chat, cfg.LLM.BodyModel, cfg.LLM.MetaModel, generate.Options{
		TargetWordCount: cfg.Pipeline.TargetWordCount,
		Tone:            cfg.Pipeline.Tone,
		ReadingLevel:    cfg.Pipeline.ReadingLevel,
		LinkKeywords:    linkPhrases(linkCandidates),
	})

	var providers []images.Provider
	if cfg.Images.OpenAIKey != "" {
		providers = append(providers, images.NewOpenAIProvider(cfg.Images.OpenAIKey))
	}
	if cfg.Images.PexelsKey != "" {
		providers = append(providers, images.NewPexelsProvider(cfg.Images.PexelsKey))
	}
	if len(providers) == 0 {
		slog.Info("no image providers configured, using placeholders")
	}
	sourcer := images.New(providers...)

	orch := pipeline.New(pipeline.Deps{
		Store:         store,
		Research:      researcher,
		Generator:     generator,
		Images:        sourcer,
		Opportunities: scorer,
		Links:         linkCandidates,
		LinkOptions: linker.Options{
			MaxPerKeyword: cfg.Pipeline.MaxLinksPerKeyword,
			MaxTotal:      cfg.Pipeline.MaxLinksTotal,
		},
		BatchConcurrency: cfg.Pipeline.BatchConcurrency,
	})

	handler := api.NewHandler(api.Deps{
		Orchestrator: orch,
		Token:        apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Orchestrator: orch})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "contentpipe listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// internalLinkCandidates resolves configured link destinations against the
// site base URL so relative paths work.
func internalLinkCandidates(cfg config.Config) []linker.Candidate {
	out := make([]linker.Candidate, 0, len(cfg.Site.InternalLinks))
	base := strings.TrimRight(cfg.Site.BaseURL, "/")
	for phrase, dest := range cfg.Site.InternalLinks {
		if strings.HasPrefix(dest, "/") {
			dest = base + dest
		}
		out = append(out, linker.Candidate{Phrase: phrase, URL: dest})
	}
	return out
}

func linkPhrases(candidates []linker.Candidate) []string {
	phrases := make([]string, len(candidates))
	for i, c := range candidates {
		phrases[i] = c.Phrase
	}
	return phrases
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("contentpipe is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop contentpipe (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to contentpipe (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Search analytics", "%s", configuredLabel(cfg.Search.Configured()))
	printStatus("SERP research", "%s", configuredLabel(cfg.Serp.Configured()))
	printStatus("LLM generation", "%s", configuredLabel(cfg.LLM.Configured()))
	printStatus("Image providers", "%s", configuredLabel(cfg.Images.Configured()))

	// Show job counts if the server is up.
	if running {
		apiToken, tokenErr := config.EnsureToken(cfg.Storage.DataDir)
		if tokenErr == nil {
			statusResp, err := apiGet(client, serverURL+"/status", apiToken)
			if err == nil {
				var sys struct {
					JobCount       int `json:"jobCount"`
					PublishedCount int `json:"publishedCount"`
				}
				if json.NewDecoder(statusResp.Body).Decode(&sys) == nil {
					printStatus("Jobs", "%d total, %d published", sys.JobCount, sys.PublishedCount)
				}
				statusResp.Body.Close()
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func configuredLabel(configured bool) string {
	if configured {
		return "configured"
	}
	return "mock (not configured)"
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
