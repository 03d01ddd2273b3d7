package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaltonGOO/dyn-advisor/internal/catalog"
	"github.com/DaltonGOO/dyn-advisor/internal/config"
	"github.com/DaltonGOO/dyn-advisor/internal/executor"
	"github.com/DaltonGOO/dyn-advisor/internal/observability"
	"github.com/DaltonGOO/dyn-advisor/internal/parser"
	"github.com/DaltonGOO/dyn-advisor/internal/recommend"
	"github.com/DaltonGOO/dyn-advisor/internal/server"
)

func main() {
	var (
		configPath string
		graphRepo  string
		docsPath   string
		maxResults int
		explain    bool
		runFlag    bool
		jsonOutput bool
		serveAddr  string
	)

	rootCmd := &cobra.Command{
		Use:   "dyn-advisor",
		Short: "Dynamo graph recommendation and execution agent",
		Long: `dyn-advisor indexes a repository of Dynamo graphs, recommends graphs
for a natural-language query with an explanation for every match, and can
execute a selected graph through the Dynamo CLI under explicit consent.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./dyn-advisor.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&graphRepo, "graph-repo", "", "Path to graph repository (overrides config)")
	rootCmd.PersistentFlags().StringVar(&docsPath, "docs-path", "", "Path to documentation (overrides config)")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build the catalog by indexing all graph files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(configPath, graphRepo, docsPath)
		},
	}

	recommendCmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: "Recommend graphs for a query and explain why",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(configPath, graphRepo, docsPath, args[0],
				maxResults, cmd.Flags().Changed("max-results"), explain, runFlag, jsonOutput)
		},
	}
	recommendCmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum number of recommendations (overrides config)")
	recommendCmd.Flags().BoolVar(&explain, "explain", false, "Show match reasons for each recommendation")
	recommendCmd.Flags().BoolVar(&runFlag, "run", false, "Execute the top recommendation (requires execution to be allowed)")
	recommendCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output recommendations as JSON")

	executeCmd := &cobra.Command{
		Use:   "execute <graph-name>",
		Short: "Execute a specific graph by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(configPath, graphRepo, docsPath, args[0], runFlag)
		},
	}
	executeCmd.Flags().BoolVar(&runFlag, "run", false, "Actually execute the graph (requires execution to be allowed)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and recommender over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, graphRepo, docsPath, serveAddr)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and safety status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(configPath, graphRepo, docsPath)
		},
	}

	rootCmd.AddCommand(indexCmd, recommendCmd, executeCmd, serveCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg    *config.Config
	audit  *observability.AuditLogger
	tracer *observability.TracerProvider
}

// bootstrap loads configuration, applies flag overrides, and wires logging,
// audit, and tracing.
func bootstrap(configPath, graphRepo, docsPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if graphRepo != "" {
		cfg.Paths.GraphRepo = graphRepo
	}
	if docsPath != "" {
		cfg.Paths.Docs = docsPath
	}

	setupLogging(cfg.Log)

	audit, err := observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.Output,
	})
	if err != nil {
		return nil, err
	}

	tracer, err := observability.InitTracing(context.Background(), &observability.TracingConfig{
		ServiceName:    "dyn-advisor",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	return &app{cfg: cfg, audit: audit, tracer: tracer}, nil
}

const version = "0.1.0"

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.tracer.Shutdown(ctx)
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// resolveMaxResults prefers an explicitly set flag over the configured value,
// even when the flag value is invalid: the engine reports it instead of the
// flag being silently ignored.
func resolveMaxResults(configured, flag int, flagSet bool) int {
	if flagSet {
		return flag
	}
	return configured
}

// weightsFromConfig merges configured weights over the defaults. Zero values
// keep the default so partial configs stay valid.
func weightsFromConfig(rc config.RecommenderConfig) *recommend.Weights {
	w := recommend.DefaultWeights()
	if rc.NameWeight > 0 {
		w.Name = rc.NameWeight
	}
	if rc.CategoryWeight > 0 {
		w.Category = rc.CategoryWeight
	}
	if rc.NodeTypeWeight > 0 {
		w.NodeType = rc.NodeTypeWeight
	}
	if rc.NodeTypeCap > 0 {
		w.NodeTypeCap = rc.NodeTypeCap
	}
	if rc.DocWeight > 0 {
		w.Doc = rc.DocWeight
	}
	if rc.SimplicityWeight > 0 {
		w.Simplicity = rc.SimplicityWeight
	}
	if rc.SimplicityThreshold > 0 {
		w.SimplicityThreshold = rc.SimplicityThreshold
	}
	return w
}

func executorFromConfig(a *app) *executor.Executor {
	return executor.New(&executor.Config{
		AllowExecution: a.cfg.Execution.Allow,
		DynamoCLIPath:  a.cfg.Execution.DynamoCLIPath,
		Timeout:        a.cfg.Execution.Timeout(),
	}, a.audit)
}

// buildCatalog runs one index operation with tracing and audit around it.
func buildCatalog(ctx context.Context, a *app) (*catalog.Catalog, []catalog.SkippedFile, error) {
	ctx, span := observability.StartIndexSpan(ctx, a.cfg.Paths.GraphRepo)
	defer span.End()

	a.audit.LogIndexStart(a.cfg.Paths.GraphRepo, a.cfg.Paths.Docs)
	start := time.Now()
	cat, skipped, err := catalog.Build(a.cfg.Paths.GraphRepo, a.cfg.Paths.Docs)
	a.audit.LogIndexComplete(catLen(cat), len(skipped), time.Since(start), err)
	if err != nil {
		observability.RecordSpanError(span, err)
	}
	return cat, skipped, err
}

func catLen(c *catalog.Catalog) int {
	if c == nil {
		return 0
	}
	return c.Len()
}

func runIndex(configPath, graphRepo, docsPath string) error {
	a, err := bootstrap(configPath, graphRepo, docsPath)
	if err != nil {
		return err
	}
	defer a.shutdown()

	cat, skipped, err := buildCatalog(context.Background(), a)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d Dynamo graph(s) from %s\n", cat.Len(), a.cfg.Paths.GraphRepo)
	if len(skipped) > 0 {
		fmt.Printf("\nSkipped %d file(s):\n", len(skipped))
		for _, s := range skipped {
			fmt.Printf("  %s: %s\n", s.Path, s.Reason)
		}
	}
	if cat.Len() == 0 {
		fmt.Printf("\nNo graphs indexed. Check paths.graph_repo (currently %s)\n", a.cfg.Paths.GraphRepo)
		return nil
	}

	fmt.Println("\nSample graphs:")
	for i, rec := range cat.All() {
		if i >= 5 {
			break
		}
		fmt.Printf("  %d. %s (%d nodes)\n", i+1, rec.Name, rec.NodeCount)
	}
	return nil
}

func runRecommend(configPath, graphRepo, docsPath, query string, maxResults int, maxResultsSet bool, explain, runFlag, jsonOutput bool) error {
	a, err := bootstrap(configPath, graphRepo, docsPath)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx := context.Background()
	cat, _, err := buildCatalog(ctx, a)
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		fmt.Printf("No graphs found in %s\n", a.cfg.Paths.GraphRepo)
		fmt.Println("Check paths.graph_repo (GRAPH_REPO_PATH) or --graph-repo")
		return nil
	}

	opts := &recommend.Options{
		MaxResults: resolveMaxResults(a.cfg.Recommender.MaxResults, maxResults, maxResultsSet),
		Explain:    explain,
	}

	ctx, span := observability.StartRecommendSpan(ctx, query, opts.MaxResults)
	defer span.End()

	a.audit.LogRecommendRequest(query, opts.MaxResults)
	start := time.Now()
	eng := recommend.NewEngine(weightsFromConfig(a.cfg.Recommender))
	recs, err := eng.Recommend(cat, query, opts)
	a.audit.LogRecommendComplete(query, len(recs), time.Since(start), err)
	if err != nil {
		observability.RecordSpanError(span, err)
		return err
	}

	if len(recs) == 0 {
		fmt.Printf("No graphs match your query: %q\n", query)
		return nil
	}

	if jsonOutput {
		summaries := make([]recommend.Summary, len(recs))
		for i := range recs {
			summaries[i] = recs[i].Summary()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summaries); err != nil {
			return err
		}
	} else {
		fmt.Printf("Recommendations for %q:\n", query)
		for i, rec := range recs {
			fmt.Printf("\n%d. %s (score: %.1f)\n", i+1, rec.Record.Name, rec.Score)
			fmt.Printf("   Category: %s, Nodes: %d, Connectors: %d\n",
				rec.Record.Category, rec.Record.NodeCount, rec.Record.ConnectorCount)
			fmt.Printf("   Path: %s\n", rec.Record.SourcePath)
			if explain {
				for _, reason := range rec.Reasons {
					fmt.Printf("   - %s\n", reason)
				}
			}
		}
	}

	if runFlag {
		top := recs[0].Record
		fmt.Printf("\nExecuting top recommendation: %s\n", top.Name)
		return executeRecord(ctx, a, top, true)
	}
	return nil
}

func runExecute(configPath, graphRepo, docsPath, graphName string, runFlag bool) error {
	a, err := bootstrap(configPath, graphRepo, docsPath)
	if err != nil {
		return err
	}
	defer a.shutdown()

	ctx := context.Background()
	cat, _, err := buildCatalog(ctx, a)
	if err != nil {
		return err
	}

	rec, ok := cat.ByName(graphName)
	if !ok {
		fmt.Printf("Graph %q not found\n", graphName)
		if suggestions := recommend.Suggest(graphName, cat.Names(), 3); len(suggestions) > 0 {
			fmt.Printf("Did you mean: %s\n", strings.Join(suggestions, ", "))
		}
		return nil
	}

	fmt.Printf("Graph: %s\n", rec.Name)
	if rec.Description != "" {
		fmt.Printf("Description: %s\n", rec.Description)
	}
	fmt.Printf("Category: %s\n", rec.Category)
	fmt.Printf("Path: %s\n", rec.SourcePath)

	if !runFlag {
		fmt.Println("\nAdd --run to execute this graph")
		return nil
	}
	return executeRecord(ctx, a, rec, runFlag)
}

func executeRecord(ctx context.Context, a *app, rec *parser.GraphRecord, consented bool) error {
	ctx, span := observability.StartExecuteSpan(ctx, rec.Name)
	defer span.End()

	gateway := executorFromConfig(a)
	result, err := gateway.Execute(ctx, rec, consented)
	if err != nil {
		observability.RecordSpanError(span, err)
		return err
	}

	if !result.Executed {
		fmt.Printf("Not executed: %s\n", result.Message)
		return nil
	}
	if result.Success {
		fmt.Printf("%s\n", result.Message)
		if result.Output != "" {
			fmt.Printf("\nOutput:\n%s\n", result.Output)
		}
		return nil
	}
	fmt.Printf("%s\n", result.Message)
	if result.Errors != "" {
		fmt.Printf("\nErrors:\n%s\n", result.Errors)
	}
	return nil
}

func runServe(configPath, graphRepo, docsPath, addr string) error {
	a, err := bootstrap(configPath, graphRepo, docsPath)
	if err != nil {
		return err
	}
	defer a.shutdown()

	start := time.Now()
	cat, skipped, err := buildCatalog(context.Background(), a)
	if err != nil {
		return err
	}
	if cat.Len() == 0 {
		slog.Warn("serving an empty catalog", "graph_repo", a.cfg.Paths.GraphRepo)
	}

	eng := recommend.NewEngine(weightsFromConfig(a.cfg.Recommender))
	srv, err := server.New(cat, eng, a.cfg.Server.CacheSize, slog.Default())
	if err != nil {
		return err
	}
	srv.RecordIndex(cat.Len(), len(skipped), start)

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	stopper := server.NewShutdownHandler(nil)
	stopper.RegisterHook("http-listener", 10, srv.Shutdown)
	stopper.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(addr) }()

	select {
	case err := <-errCh:
		stopper.Shutdown()
		stopper.Wait()
		return err
	case <-stopper.Done():
		return <-errCh
	}
}

func runStatus(configPath, graphRepo, docsPath string) error {
	a, err := bootstrap(configPath, graphRepo, docsPath)
	if err != nil {
		return err
	}
	defer a.shutdown()

	cfg := a.cfg
	fmt.Println("dyn-advisor status")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Graph repository: %s\n", cfg.Paths.GraphRepo)
	fmt.Printf("  Documentation:    %s\n", cfg.Paths.Docs)
	fmt.Printf("  Execution allowed: %v\n", cfg.Execution.Allow)
	fmt.Printf("  Dynamo CLI path:  %s\n", orNotSet(cfg.Execution.DynamoCLIPath))
	fmt.Printf("  Log level:        %s\n", cfg.Log.Level)
	fmt.Printf("  Audit output:     %s\n", cfg.Audit.Output)

	fmt.Println("\nPath checks:")
	fmt.Printf("  Graph repository exists: %v\n", pathExists(cfg.Paths.GraphRepo))
	fmt.Printf("  Documentation exists:    %v\n", pathExists(cfg.Paths.Docs))
	cliExists := cfg.Execution.DynamoCLIPath != "" && pathExists(cfg.Execution.DynamoCLIPath)
	fmt.Printf("  Dynamo CLI exists:       %v\n", cliExists)

	fmt.Println("\nSafety status:")
	if cfg.Execution.Allow {
		fmt.Println("  Execution is ENABLED")
		if !cliExists {
			fmt.Println("  But the Dynamo CLI is not configured or not found")
		}
	} else {
		fmt.Println("  Execution is DISABLED (safe)")
	}
	fmt.Println("\nTo enable execution:")
	fmt.Println("  1. Set execution.allow: true (or ALLOW_EXECUTION=true)")
	fmt.Println("  2. Set execution.dynamo_cli_path (or DYNAMO_CLI_PATH)")
	fmt.Println("  3. Pass --run to recommend or execute")
	return nil
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
