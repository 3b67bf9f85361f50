package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	embeddedconfig "github.com/sibylchat/sibyl/config"
)

var (
	configOutputPath string
	configForce      bool
)

// configCmd represents the config parent command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sibyl configuration",
	Long: `Manage sibyl configuration files.

Use the subcommands to create or manage configuration files.`,
}

// configCreateCmd represents the config create subcommand
var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a default configuration file",
	Long: `Create a default configuration file at ~/.sibylrc.

This command writes the embedded default configuration to the
specified path. The file contains default settings for the Groq
backend, the web interface, caching, and logging.

After creating the file, review and customize it for your environment.

Examples:
  sibyl config create                    # Create ~/.sibylrc
  sibyl config create --output /path/to  # Create /path/to/.sibylrc
  sibyl config create --force            # Overwrite existing file`,
	RunE: runConfigCreate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCreateCmd)

	configCreateCmd.Flags().StringVarP(&configOutputPath, "output", "o", "",
		"Directory to write the config file (default: $HOME)")
	configCreateCmd.Flags().BoolVarP(&configForce, "force", "f", false,
		"Overwrite existing configuration file without prompting")
}

func runConfigCreate(cmd *cobra.Command, args []string) error {
	// Determine output directory
	outputDir := configOutputPath
	if outputDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputDir = homeDir
	}

	// Build the full path
	outPath := filepath.Join(outputDir, ".sibylrc")

	// Check if file already exists
	if _, err := os.Stat(outPath); err == nil && !configForce {
		fmt.Printf("⚠️  Configuration file already exists: %s\n", outPath)
		fmt.Println("Use --force to overwrite the existing file.")
		return nil
	}

	// Write the embedded default config
	if err := os.WriteFile(outPath, embeddedconfig.DefaultConfigYAML, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("✅ Configuration file created: %s\n", outPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set your Groq API key (GROQ_API_KEY or groq.api_key)")
	fmt.Println("  2. Review and customize the configuration file")
	fmt.Println("  3. Run 'sibyl web' to start the web interface")

	return nil
}
