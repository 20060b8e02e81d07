// =============================================================================
// fedgov main entrypoint
// =============================================================================
// Federated learning governance service: proposal voting, configuration
// tallies and websocket training session orchestration.
//
// Usage:
//
//	fedgov serve                       # start the service
//	fedgov serve --config config.yaml  # with an explicit config file
//	fedgov version                     # show version information
//	fedgov health                      # probe a running instance
//	fedgov migrate up                  # apply database migrations
//	fedgov migrate down                # roll back the last migration
//	fedgov migrate status              # show migration status
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fedgovio/fedgov/config"
)

// =============================================================================
// 📦 Version information (injected at build time)
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 Main
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve command
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, logLevel := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting fedgov",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	server := NewServer(cfg, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// When a config file is in play, watch it so log level edits take
	// effect without a restart.
	if *configPath != "" {
		watcher := watchLogLevel(*configPath, logLevel, logger)
		if watcher != nil {
			defer watcher.Stop()
		}
	}

	server.WaitForShutdown()

	logger.Info("fedgov stopped")
}

// =============================================================================
// 🏥 health command
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 version and help
// =============================================================================

func printVersion() {
	fmt.Printf("fedgov %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`fedgov - Federated Learning Governance Service

Usage:
  fedgov <command> [options]

Commands:
  serve     Start the fedgov server
  migrate   Database migration commands
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Examples:
  fedgov serve
  fedgov serve --config /etc/fedgov/config.yaml
  fedgov migrate up
  fedgov migrate status
  fedgov health --addr http://localhost:8080
  fedgov version`)
}

// =============================================================================
// 🔧 Logger initialization
// =============================================================================

func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLogLevel(cfg.Level))

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            level,
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger, level
}

func parseLogLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// watchLogLevel follows the config file and applies log level changes to
// the running logger. A config that no longer parses or validates is
// logged and ignored.
func watchLogLevel(path string, level zap.AtomicLevel, logger *zap.Logger) *config.FileWatcher {
	watcher, err := config.NewFileWatcher([]string{path}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
		return nil
	}

	watcher.OnChange(func(event config.FileEvent) {
		if event.Op != config.FileOpWrite && event.Op != config.FileOpCreate {
			return
		}
		cfg, err := config.NewLoader().WithConfigPath(path).Load()
		if err != nil {
			logger.Warn("Ignoring config change, reload failed", zap.Error(err))
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Warn("Ignoring config change, validation failed", zap.Error(err))
			return
		}
		newLevel := parseLogLevel(cfg.Log.Level)
		if newLevel != level.Level() {
			logger.Info("Log level changed",
				zap.String("from", level.Level().String()),
				zap.String("to", newLevel.String()))
			level.SetLevel(newLevel)
		}
	})

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("Config watcher failed to start", zap.Error(err))
		return nil
	}
	return watcher
}
