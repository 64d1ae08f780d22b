package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/clawplaza/searchchat/internal/chat"
	"github.com/clawplaza/searchchat/internal/config"
	"github.com/clawplaza/searchchat/internal/llm"
	"github.com/clawplaza/searchchat/internal/logging"
	"github.com/clawplaza/searchchat/internal/mcpclient"
	"github.com/clawplaza/searchchat/internal/search"
	"github.com/clawplaza/searchchat/internal/telemetry"
	"github.com/clawplaza/searchchat/internal/toolhost"
	"github.com/clawplaza/searchchat/internal/web"
)

// Set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "searchchat",
		Short:        "Web-search chat agent",
		Long:         "searchchat serves a chat endpoint backed by an LLM that can search the web through an MCP tool host.",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	root.AddCommand(serveCmd(), toolhostCmd(), searchCmd(), toolsCmd(), configCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config and sets up logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logLevel := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logLevel = "debug"
	}
	logging.Setup(logLevel)
	return cfg, nil
}

// toolHostCommand returns the subprocess to spawn. By default this binary
// re-executes itself with the toolhost subcommand.
func toolHostCommand(cfg *config.Config) (string, []string, error) {
	if cfg.ToolHost.Command != "" {
		return cfg.ToolHost.Command, cfg.ToolHost.Args, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("locate executable: %w", err)
	}
	return exe, []string{"toolhost"}, nil
}

func spawnToolHost(ctx context.Context, cfg *config.Config) (*mcpclient.Client, error) {
	command, args, err := toolHostCommand(cfg)
	if err != nil {
		return nil, err
	}
	client, err := mcpclient.Spawn(ctx, command, args, version)
	if err != nil {
		return nil, fmt.Errorf("start tool host: %w", err)
	}
	return client, nil
}

// ── serve command ──

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat server",
		RunE:  runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port (default from config, 8000)")
	cmd.Flags().String("addr", "", "Listen address (default from config, 0.0.0.0)")
	cmd.Flags().Bool("auto-port", false, "Try the next ports if the configured one is busy")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider, err := llm.NewProvider(&cfg.LLM)
	if err != nil {
		return err
	}

	if cfg.Telemetry.Tracing {
		shutdownTracing := telemetry.Setup("searchchat", version)
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer flushCancel()
			_ = shutdownTracing(flushCtx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tools, err := spawnToolHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer tools.Close()

	hub := web.NewEventHub()
	orch := chat.New(provider, tools)
	orch.SystemPrompt = cfg.Chat.SystemPrompt
	orch.MaxRounds = cfg.Chat.MaxRounds
	orch.OnEvent = hub.Listener()

	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		cfg.Server.Addr = a
	}
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		cfg.Server.Port = p
	}
	autoPort, _ := cmd.Flags().GetBool("auto-port")

	srv := web.New(orch, hub, cfg.Addr())
	actualPort, err := srv.Start(!autoPort)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("searchchat %s listening on %s:%d\n", version, cfg.Server.Addr, actualPort)
	fmt.Printf("LLM: %s\n", provider.Name())
	fmt.Printf("Max rounds: %d\n", orch.MaxRounds)

	<-sigCh
	fmt.Println("\nShutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ── toolhost command ──

func toolhostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toolhost",
		Short: "Run the MCP tool host on stdin/stdout",
		Long:  "Run the MCP tool host on stdin/stdout. Normally spawned by serve; logs go to stderr.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			searcher := search.NewDuckDuckGo(cfg.Search.Endpoint, cfg.Search.Region)
			host := toolhost.New(version, toolhost.Defaults(searcher, cfg.Search.MaxResults)...)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			err = host.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// ── search command ──

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one web search and print the formatted results",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().IntP("max", "n", 0, "Maximum results (default from config, 3)")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit := cfg.Search.MaxResults
	if n, _ := cmd.Flags().GetInt("max"); n > 0 {
		limit = n
	}

	searcher := search.NewDuckDuckGo(cfg.Search.Endpoint, cfg.Search.Region)
	results, err := searcher.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println(toolhost.NoResults)
		return nil
	}
	fmt.Println(search.Format(results))
	return nil
}

// ── tools command ──

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools advertised by the tool host",
		RunE:  runToolsList,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "call <name> [json-arguments]",
		Short: "Call one tool through the tool host and print its text result",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runToolsCall,
	})
	return cmd
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := spawnToolHost(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	tools, err := client.ListTools(cmd.Context())
	if err != nil {
		return err
	}
	for _, t := range tools {
		schema, _ := json.Marshal(t.InputSchema)
		fmt.Printf("%s\n  %s\n  schema: %s\n", t.Name, t.Description, schema)
	}
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	toolArgs := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	client, err := spawnToolHost(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	text, err := client.CallTool(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

// ── config command ──

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	cmd.AddCommand(
		initCmd,
		&cobra.Command{
			Use:   "show",
			Short: "Show effective config (API keys redacted)",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print config file path",
			Run: func(_ *cobra.Command, _ []string) {
				fmt.Println(config.Path())
			},
		},
	)
	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if force, _ := cmd.Flags().GetBool("force"); !force {
		if _, err := os.Stat(config.Path()); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.Path())
		}
	}
	if err := config.DefaultConfig().Save(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", config.Path())
	fmt.Println("Set llm.api_key there or DEEPSEEK_API_KEY in .env before running serve.")
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return toml.NewEncoder(os.Stdout).Encode(cfg.Redact())
}

// ── version command ──

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("searchchat %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
