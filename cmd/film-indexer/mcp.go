package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/mcp"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
)

// mcpOptions are the flags of the mcp-server command
type mcpOptions struct {
	commonFlags
	transport string
	addr      string
}

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	var opts mcpOptions
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	opts.register(fs)
	fs.StringVar(&opts.transport, "transport", "stdio", "Transport type (stdio, sse)")
	fs.StringVar(&opts.addr, "addr", "127.0.0.1:8080", "Listen address (for sse transport)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: film-indexer mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.
The crawl runs in the background; tools answer from the index as it fills.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  film-indexer mcp-server -config config.yaml

  # Start with SSE transport
  film-indexer mcp-server -config config.yaml -transport sse -addr 127.0.0.1:8080

Available MCP Tools:
  query_index   Look up films by a single word
  index_stats   Report the size of the index
  crawl_status  Report progress of the background crawl
  detail_status Report how one detail page was processed
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	// MCP protocol uses stdout, logs go to stderr
	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, stop := signalContext(log, shutdownGrace)
	exitCode := doMcpServer(ctx, opts, log, os.Stdin, os.Stdout)
	stop()
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(ctx context.Context, opts mcpOptions, log *logrus.Logger, stdin io.Reader, stdout io.Writer) int {
	if opts.transport != "stdio" && opts.transport != "sse" {
		log.Errorf("Unknown transport: %s (supported: stdio, sse)", opts.transport)
		return 1
	}

	appCfg, err := loadAndValidateConfig(opts.commonFlags, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	m := metrics.New(prometheus.NewRegistry())
	c, store, err := newCrawl(ctx, appCfg, log, m)
	if err != nil {
		log.Errorf("Failed to initialize crawl: %v", err)
		return 1
	}
	defer store.Close()

	jobs := mcp.NewJobManager(logrus.NewEntry(log))
	// Stop the background crawl before the store closes
	defer jobs.Wait()
	defer jobs.CancelAll()
	jobs.Start(ctx, c)

	srv, err := mcp.NewServer(&mcp.ServerConfig{
		Index:     c.Index(),
		Jobs:      jobs,
		Details:   store,
		Transport: opts.transport,
		Addr:      opts.addr,
		Version:   version,
		Logger:    logrus.NewEntry(log),
		Metrics:   m,
		Stdin:     stdin,
		Stdout:    stdout,
	})
	if err != nil {
		log.Errorf("Error creating MCP server: %v", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", opts.transport)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("MCP server error: %v", err)
		return 1
	}
	return 0
}
