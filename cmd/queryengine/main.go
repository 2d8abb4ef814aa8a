// Package main provides the queryengine CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ariadne-eng/queryengine/chunk"
	"github.com/ariadne-eng/queryengine/cli"
)

var (
	provider string
	dbPath   string
	verbose  bool
)

func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "queryengine",
		Short: "Agentic retrieval over chunked documents",
		Long: `An agentic query engine over chunked documents.

Load a document, optionally embed it, then ask questions of it with the
query command, which runs the full plan -> search -> scale -> extract ->
synthesize pipeline.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default queryengine.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(embedCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(bufferCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func opts() cli.Options {
	return cli.Options{Provider: provider, DBPath: dbPath, Verbose: verbose}
}

func loadCmd() *cobra.Command {
	var size, overlap int

	cmd := &cobra.Command{
		Use:   "load [name] [path]",
		Short: "Load a file into a new buffer, chunking it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.LoadBuffer(context.Background(), opts(), args[0], args[1], size, overlap)
		},
	}
	cmd.Flags().IntVar(&size, "size", chunk.DefaultSize, "Chunk size in bytes")
	cmd.Flags().IntVar(&overlap, "overlap", chunk.DefaultOverlap, "Chunk overlap in bytes")
	return cmd
}

func embedCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "embed [buffer-name]",
		Short: "Embed a buffer's chunks for semantic search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.EmbedBuffer(context.Background(), opts(), args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Re-embed chunks even if already embedded under the current model")
	return cmd
}

func searchCmd() *cobra.Command {
	var mode, bufferName string
	var topK int
	var threshold float64

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a bare hybrid/lexical/semantic search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Search(context.Background(), opts(), args[0], mode, bufferName, topK, threshold)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "Search mode: hybrid, semantic, or lexical")
	cmd.Flags().StringVar(&bufferName, "buffer", "", "Restrict search to one buffer")
	cmd.Flags().IntVar(&topK, "top-k", 20, "Maximum number of hits")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum score to include a hit")
	return cmd
}

func queryCmd() *cobra.Command {
	var bufferName string
	var skipPlan bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Run the full retrieval-and-synthesis pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Query(context.Background(), opts(), args[0], bufferName, skipPlan)
		},
	}
	cmd.Flags().StringVar(&bufferName, "buffer", "", "Restrict the query to one buffer")
	cmd.Flags().BoolVar(&skipPlan, "skip-plan", false, "Bypass the planner agent and use defaults")
	return cmd
}

func bufferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buffers",
		Short: "List loaded buffers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListBuffers(context.Background(), opts())
		},
	}
	return cmd
}

func mcpCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the engine over the Model Context Protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ServeMCP(context.Background(), opts(), httpAddr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve over HTTP on this address instead of stdio")
	return cmd
}
