package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factweave/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Factweave configuration",
	Long: `Manage Factweave configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (FACTWEAVE_*)
3. Config file (~/.factweave/config.yaml)
4. Defaults

API keys are read from the environment only:
OPENAI_API_KEY, NEWSDATA_API_KEY, GNEWS_API_KEY.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file, and environment variables are merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		// API keys carry yaml:"-" so this never prints a secret
		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))

		fmt.Println("Credentials:")
		for _, key := range []string{"OPENAI_API_KEY", "NEWSDATA_API_KEY", "GNEWS_API_KEY"} {
			state := "missing"
			if os.Getenv(key) != "" {
				state = "set"
			}
			fmt.Printf("  %-17s %s\n", key, state)
		}

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.factweave/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.factweave"
		configPath := configDir + "/config.yaml"

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'factweave config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...interface{}) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# Factweave Configuration File\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (FACTWEAVE_*)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n\n")

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		if _, wErr := f.Write(yamlData); wErr != nil {
			return fmt.Errorf("error writing config: %w", wErr)
		}

		printf("\n# API keys are environment-only (a local .env file also works):\n")
		printf("#   export OPENAI_API_KEY=sk-...\n")
		printf("#   export NEWSDATA_API_KEY=pub_...\n")
		printf("#   export GNEWS_API_KEY=...\n")

		if err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  factweave config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
