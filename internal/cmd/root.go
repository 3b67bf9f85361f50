// Package cmd provides the CLI commands for sibyl.
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sibylchat/sibyl/internal/appdir"
	"github.com/sibylchat/sibyl/internal/config"
	"github.com/sibylchat/sibyl/internal/logging"
)

var (
	// Global flags
	configPath    string
	debug         bool
	logLevel      string // --log-level flag (debug, info, warn, error)
	logFile       string
	logComponents string

	// Loaded configuration
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sibyl",
	Short: "Sibyl - an AI research assistant with web search and finance tools",
	Long: `Sibyl is an AI research assistant that answers questions using
live web search, news, and stock market data.

It serves a browser-based chat interface and provides a terminal
client for talking to a running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help and completion commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// Priority: --log-level flag > --debug flag > config > default (info)
		dir, err := appdir.EnsureDir()
		if err != nil {
			return fmt.Errorf("failed to create sibyl directory: %w", err)
		}

		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		effectiveLogLevel := cfg.Logging.Level
		if logLevel != "" {
			effectiveLogLevel = logLevel
		} else if debug {
			effectiveLogLevel = "debug"
		}

		logFilePath := logFile
		if logFilePath == "" {
			logFilePath = cfg.Logging.File
		}
		if logFilePath == "" {
			logFilePath = filepath.Join(dir, "sibyl.log")
		}

		var components []string
		if logComponents != "" {
			for _, c := range strings.Split(logComponents, ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					components = append(components, c)
				}
			}
		} else {
			components = cfg.Logging.Components
		}

		fileLog := logging.DefaultFileLogConfig()
		fileLog.Path = logFilePath
		if err := logging.Initialize(logging.Config{
			Level:      effectiveLogLevel,
			FileLog:    &fileLog,
			Components: components,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Clean up logging resources
		return logging.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (default: ~/.sibylrc)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (shorthand for --log-level=debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "logfile", "l", "", "Log file path (default: sibyl.log in the data directory)")
	rootCmd.PersistentFlags().StringVar(&logComponents, "log-components", "", "Comma-separated list of components to log (e.g., 'web,agent'). Empty means all components.")
}
