package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labstack/gommon/log"

	"nebulalens-tui/internal/app"
	"nebulalens-tui/internal/config"
	"nebulalens-tui/internal/service"
	"nebulalens-tui/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envPath := flag.String("env", ".env", "dotenv file loaded before NEBULALENS_* variables")
	apiURL := flag.String("api", "", "API base URL (overrides config)")
	featuresPath := flag.String("features", "", "JSON file pre-filling the form (overrides config)")
	logFile := flag.String("log-file", "", "log file, - to disable (overrides config)")
	logLevel := flag.String("log-level", "", "log level. debug|info|warn|error|off (overrides config)")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = applyFlagOverrides(cfg, map[string]string{
		"api":       *apiURL,
		"features":  *featuresPath,
		"log-file":  *logFile,
		"log-level": *logLevel,
	}, visitedFlags())
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logger.Infof("starting: api=%s timeout=%s log_capacity=%d", cfg.APIBaseURL, cfg.RequestTimeout, cfg.LogCapacity)

	client, err := service.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, service.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create API client: %v\n", err)
		os.Exit(1)
	}

	features, featuresSource, err := resolveStartupFeatures(cfg.FeaturesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load features file: %v\n", err)
		os.Exit(1)
	}

	rootDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine working directory: %v\n", err)
		os.Exit(1)
	}
	rootDir, _ = filepath.Abs(rootDir)

	model := app.NewModelWithOptions(client, storage.NewLog(cfg.LogCapacity), app.ModelOptions{
		APIBaseURL:          client.BaseURL(),
		RequestTimeout:      cfg.RequestTimeout,
		TypewriterInterval:  cfg.TypewriterInterval,
		InitialFeatures:     features,
		InitialFeaturesPath: featuresSource,
		Logger:              logger,
		Exporter:            storage.NewExporter(rootDir),
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui exited with error: %v\n", err)
		if logDump := client.Logs(); logDump != "" {
			fmt.Fprintln(os.Stderr, "api requests:")
			fmt.Fprintln(os.Stderr, logDump)
		}
		os.Exit(1)
	}
	logger.Info("exited")
}

func visitedFlags() map[string]bool {
	visited := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})
	return visited
}

// applyFlagOverrides copies the flags the user actually passed over cfg.
func applyFlagOverrides(cfg config.Config, values map[string]string, visited map[string]bool) config.Config {
	if visited["api"] {
		cfg.APIBaseURL = strings.TrimSpace(values["api"])
	}
	if visited["features"] {
		cfg.FeaturesFile = strings.TrimSpace(values["features"])
	}
	if visited["log-file"] {
		cfg.LogFile = strings.TrimSpace(values["log-file"])
	}
	if visited["log-level"] {
		cfg.LogLevel = strings.TrimSpace(values["log-level"])
	}
	return cfg
}

// newLogger opens the log file; the terminal belongs to the TUI. An empty
// path or "-" discards all output.
func newLogger(path, level string) (*log.Logger, func(), error) {
	logger := log.New("nebulalens")
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		logger.SetOutput(io.Discard)
		setLevel(logger, level)
		return logger, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(f)
	setLevel(logger, level)
	return logger, func() { _ = f.Close() }, nil
}

func setLevel(logger *log.Logger, level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logger.SetLevel(log.DEBUG)
	case "info":
		logger.SetLevel(log.INFO)
	case "warn", "":
		logger.SetLevel(log.WARN)
	case "error":
		logger.SetLevel(log.ERROR)
	case "off":
		logger.SetLevel(log.OFF)
	default:
		logger.SetLevel(log.WARN)
		logger.Warnf("unknown log level: %s . fell back to warn", level)
	}
}

// resolveStartupFeatures loads the optional features file named in config.
func resolveStartupFeatures(path string) (app.FeatureValues, string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, "", nil
	}
	return app.LoadFeaturesFile(path)
}
