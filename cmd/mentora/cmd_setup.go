package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/config"
	"github.com/felixgeelhaar/mentora/internal/queue"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize mentora (first-time setup)",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Mentora - First-Time Setup")
		fmt.Println("==========================")
		fmt.Println()

		fmt.Print("Creating ~/.mentora directory structure... ")
		mentoraDir, err := config.EnsureMentoraDir()
		if err != nil {
			return fmt.Errorf("create directories: %w", err)
		}
		fmt.Println("✓")

		configPath := filepath.Join(mentoraDir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			fmt.Print("Creating default configuration... ")
			if err := config.SaveLocalConfigTo(mentoraDir, config.DefaultLocalConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Println("✓")
		} else {
			fmt.Println("Configuration already exists ✓")
		}

		fmt.Println()
		fmt.Println("LLM Provider Setup")
		fmt.Println("------------------")
		fmt.Println("Mentora supports: Gemini, Claude (Anthropic), OpenAI, and Ollama (local)")
		fmt.Println()

		cfg, _ := config.LoadLocalConfigFrom(mentoraDir)
		reader := bufio.NewReader(os.Stdin)
		for _, name := range []string{"gemini", "claude"} {
			if cfg != nil && cfg.LLM.Providers[name] != nil && cfg.LLM.Providers[name].APIKey != "" {
				fmt.Printf("%s API key: already configured ✓\n", name)
				continue
			}
			fmt.Printf("Enter %s API key (or press Enter to skip): ", name)
			key, _ := reader.ReadString('\n')
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if err := config.SetSecretTo(mentoraDir, name, key); err != nil {
				fmt.Printf("  ⚠ Failed to save: %v\n", err)
			} else {
				fmt.Println("  ✓ Saved")
			}
		}

		fmt.Println()
		fmt.Println("Setup Complete!")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  1. mentora start     # Start the daemon")
		fmt.Println("  2. mentora doctor    # Verify configuration")
		fmt.Println()
		fmt.Println("For MCP clients, configure the command 'mentora mcp'.")
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Checking system requirements...")
		allGood := true

		fmt.Print("Directory: ")
		mentoraDir, err := config.MentoraDir()
		if err != nil {
			fmt.Printf("✗ %v\n", err)
			allGood = false
		} else if _, err := os.Stat(mentoraDir); os.IsNotExist(err) {
			fmt.Println("✗ not created (run 'mentora init')")
			allGood = false
		} else {
			fmt.Printf("✓ %s\n", mentoraDir)
		}

		fmt.Print("Config:    ")
		cfg, err := config.LoadLocalConfig()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			fmt.Printf("✗ %v\n", err)
			return nil
		}
		fmt.Println("✓ loaded")

		fmt.Printf("Storage:   %s\n", cfg.Storage.Driver)

		if cfg.Events.AMQPURL != "" {
			fmt.Print("Queue:     ")
			conn, err := queue.NewConnection(cfg.Events.AMQPURL)
			if err != nil {
				fmt.Printf("✗ %v\n", err)
				allGood = false
			} else {
				conn.Close()
				fmt.Println("✓ reachable")
			}
		}

		fmt.Println("\nLLM Providers:")
		for _, name := range sortedProviders(cfg) {
			provider := cfg.LLM.Providers[name]
			if !provider.Enabled {
				continue
			}
			fmt.Printf("  %s: ", name)
			switch {
			case name == "ollama":
				if err := checkOllama(provider.URL); err != nil {
					fmt.Printf("✗ %v\n", err)
				} else {
					fmt.Printf("✓ available (model: %s)\n", provider.Model)
				}
			case provider.APIKey != "":
				fmt.Printf("✓ configured (model: %s)\n", provider.Model)
			default:
				fmt.Printf("✗ no API key (run 'mentora provider set-key %s')\n", name)
			}
		}

		fmt.Print("\nDaemon:    ")
		if newClient(cmd).healthy(cmd.Context()) {
			fmt.Println("✓ running")
		} else {
			fmt.Println("✗ not running (run 'mentora start')")
		}

		fmt.Println()
		if allGood {
			fmt.Println("All checks passed! ✓")
		} else {
			fmt.Println("Some checks failed. Please fix the issues above.")
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		fmt.Println("Mentora Configuration")

		fmt.Println("Daemon:")
		fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
		fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

		fmt.Println("\nLLM:")
		fmt.Printf("  default_provider: %s\n", cfg.LLM.DefaultProvider)
		for _, name := range sortedProviders(cfg) {
			provider := cfg.LLM.Providers[name]
			if !provider.Enabled {
				continue
			}
			keyStatus := "✗"
			if provider.APIKey != "" || name == "ollama" {
				keyStatus = "✓"
			}
			fmt.Printf("  %s: model=%s key=%s\n", name, provider.Model, keyStatus)
		}
		fmt.Printf("  resilience: %t (max_concurrent=%d rate=%d/s attempts=%d)\n",
			cfg.LLM.Resilience.Enabled, cfg.LLM.Resilience.MaxConcurrent,
			cfg.LLM.Resilience.RatePerSecond, cfg.LLM.Resilience.MaxAttempts)

		fmt.Println("\nStorage:")
		fmt.Printf("  driver: %s\n", cfg.Storage.Driver)
		if cfg.Storage.Driver == config.DriverSQLite {
			fmt.Printf("  path: %s\n", cfg.Storage.Path)
		}

		fmt.Println("\nInterview:")
		fmt.Printf("  duration: %s\n", cfg.InterviewDuration())

		fmt.Println("\nEvents:")
		fmt.Printf("  queue: %t\n", cfg.Events.AMQPURL != "")
		fmt.Printf("  retention: %dd\n", cfg.Events.RetentionDays)

		mentoraDir, _ := config.MentoraDir()
		fmt.Printf("\nConfig path: %s/config.yaml\n", mentoraDir)
		return nil
	},
}

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage LLM providers",
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		fmt.Println("Configured LLM Providers:")
		for _, name := range sortedProviders(cfg) {
			provider := cfg.LLM.Providers[name]
			status := "disabled"
			if provider.Enabled {
				if provider.APIKey != "" || name == "ollama" {
					status = "ready"
				} else {
					status = "needs API key"
				}
			}

			isDefault := ""
			if name == cfg.LLM.DefaultProvider {
				isDefault = " (default)"
			}

			fmt.Printf("  %s%s\n", name, isDefault)
			fmt.Printf("    status: %s\n", status)
			fmt.Printf("    model:  %s\n", provider.Model)
			if provider.URL != "" {
				fmt.Printf("    url:    %s\n", provider.URL)
			}
			fmt.Println()
		}
		return nil
	},
}

var providerSetKeyCmd = &cobra.Command{
	Use:   "set-key <name>",
	Short: "Set the API key for a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := args[0]
		cfg, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if _, ok := cfg.LLM.Providers[provider]; !ok {
			return fmt.Errorf("unknown provider: %s (valid: %s)", provider, strings.Join(sortedProviders(cfg), ", "))
		}
		if provider == "ollama" {
			fmt.Println("Ollama doesn't require an API key.")
			return nil
		}

		fmt.Printf("Enter %s API key: ", provider)
		key, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("API key cannot be empty")
		}

		mentoraDir, err := config.EnsureMentoraDir()
		if err != nil {
			return err
		}
		if err := config.SetSecretTo(mentoraDir, provider, key); err != nil {
			return fmt.Errorf("save secrets: %w", err)
		}

		fmt.Printf("✓ API key saved for %s\n", provider)
		fmt.Println("Restart the daemon for changes to take effect.")
		return nil
	},
}

func init() {
	providerCmd.AddCommand(providerListCmd, providerSetKeyCmd)
}

func sortedProviders(cfg *config.LocalConfig) []string {
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkOllama(url string) error {
	if url == "" {
		url = "http://localhost:11434"
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url + "/api/tags")
	if err != nil {
		return fmt.Errorf("not reachable at %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
