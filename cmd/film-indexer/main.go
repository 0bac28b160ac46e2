package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
)

// Overridden at build time with -ldflags "-X main.version=..."
var version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("film-indexer %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `film-indexer - Film listing crawler and term index

Usage:
  film-indexer <command> [options]

Commands:
  crawl       Crawl the listing chain and export the records
  serve       Crawl, then answer term lookups over HTTP
  mcp-server  Crawl in the background and expose the index as MCP tools
  validate    Validate configuration file
  version     Show version info

Run 'film-indexer <command> -h' for command-specific help.`)
}

// commonFlags are shared by every command that runs a crawl
type commonFlags struct {
	configPath string
	startURL   string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "config.yaml", "Path to config file (empty to use defaults only)")
	fs.StringVar(&c.startURL, "start-url", "", "First listing page (overrides start_url from the config)")
	fs.StringVar(&c.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadAndValidateConfig loads the config file (if any), applies the -start-url override,
// validates it, and logs warnings.
func loadAndValidateConfig(flags commonFlags, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg := &config.AppConfig{}
	if flags.configPath != "" {
		log.Infof("Loading configuration from %s", flags.configPath)
		loaded, err := loadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		appCfg = loaded
	}
	if flags.startURL != "" {
		appCfg.StartURL = flags.startURL
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	return appCfg, nil
}

// setupLogger creates a configured logrus.Logger writing to out.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second signal, or a
// shutdown that takes longer than grace, forces exit.
func signalContext(log *logrus.Logger, grace time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(grace):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// startPprof serves pprof and the crawl metrics on addr if addr is non-empty.
func startPprof(addr string, m *metrics.Metrics, log *logrus.Logger) {
	if addr == "" {
		return
	}
	http.Handle("/metrics", m.Handler())
	go func() {
		log.Infof("Starting pprof server at http://%s/debug/pprof/ (metrics at /metrics)", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Errorf("pprof server error: %v", err)
		}
	}()
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: StartURL:%s, Workers:%d, QueueSize:%d, MaxReqs:%d, MaxPages:%d, Dedupe:%t",
		appCfg.StartURL, appCfg.NumWorkers, appCfg.QueueSize, appCfg.MaxRequests, appCfg.MaxPages,
		config.GetEffectiveDedupeDetailURLs(*appCfg))
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Config Timeouts: SemaphoreAcquire:%v, GlobalCrawl:%v, PerPage:%v",
		appCfg.SemaphoreAcquireTimeout, appCfg.GlobalCrawlTimeout, appCfg.PerPageTimeout)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, MaxPageSize:%d bytes",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns,
		appCfg.HTTPClientSettings.MaxIdleConnsPerHost, appCfg.MaxPageSizeBytes)
	stateDir := appCfg.StateDir
	if stateDir == "" {
		stateDir = "(in memory)"
	}
	log.Infof("Config Selectors: DetailLink:'%s', NextPage:'%s', Title:'%s'; StateDir:%s",
		appCfg.Selectors.DetailLink, appCfg.Selectors.NextPage, appCfg.Selectors.Title, stateDir)
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: film-indexer validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: start_url %s\n", appCfg.StartURL)
	fmt.Fprintf(stdout, "OK: %d workers, %d max requests, listen %s\n",
		appCfg.NumWorkers, appCfg.MaxRequests, appCfg.Server.ListenAddr)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
