package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/codelab/internal/config"
)

// cmdInit initializes codelab for first-time use
func cmdInit() error {
	fmt.Println("codelab - First-Time Setup")
	fmt.Println("==========================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Creating ~/.codelab directory structure... ")
	codelabDir, err := config.EnsureCodelabDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := filepath.Join(codelabDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Println()
		fmt.Println("Judge Setup")
		fmt.Println("-----------")
		fmt.Printf("Judge base URL [%s]: ", cfg.Judge.BaseURL)
		baseURL, _ := reader.ReadString('\n')
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			cfg.Judge.BaseURL = baseURL
		}

		fmt.Print("Creating configuration... ")
		if err := config.SaveLocalConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	if cfg.Judge.Token != "" {
		fmt.Println("Judge token: already configured ✓")
	} else {
		fmt.Print("Enter judge access token (or press Enter to skip): ")
		token, _ := reader.ReadString('\n')
		token = strings.TrimSpace(token)
		if token != "" {
			secrets := config.SecretsConfig{
				JudgeToken:    token,
				RedisPassword: cfg.Storage.Redis.Password,
			}
			if err := config.SaveSecrets(secrets); err != nil {
				fmt.Printf("  ⚠ Failed to save: %v\n", err)
			} else {
				fmt.Println("  ✓ Saved")
			}
		}
	}

	fmt.Println()
	fmt.Print("Checking judge... ")
	if err := checkJudge(cfg.Judge.BaseURL); err != nil {
		fmt.Printf("⚠ %v\n", err)
	} else {
		fmt.Println("✓")
	}

	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. codelab start                       # Start the daemon")
	fmt.Println("  2. codelab doctor                      # Verify configuration")
	fmt.Println("  3. codelab open <course>/<problem>     # Open a problem")
	fmt.Println()
	fmt.Println("For IDE integration configure MCP with the 'codelab mcp' command.")

	return nil
}

// cmdDoctor checks configuration and connectivity
func cmdDoctor() error {
	fmt.Println("Checking codelab setup...")

	allGood := true

	fmt.Print("Directory: ")
	codelabDir, err := config.CodelabDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(codelabDir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'codelab init')")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", codelabDir)
	}

	fmt.Print("Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Println("✓ loaded")

		fmt.Print("Judge:     ")
		if err := checkJudge(cfg.Judge.BaseURL); err != nil {
			fmt.Printf("✗ %v\n", err)
			allGood = false
		} else {
			fmt.Printf("✓ reachable at %s\n", cfg.Judge.BaseURL)
		}

		fmt.Print("Token:     ")
		if cfg.Judge.Token != "" {
			fmt.Println("✓ configured")
		} else {
			fmt.Println("- not set (anonymous requests)")
		}

		fmt.Printf("Storage:   %s\n", cfg.Storage.Backend)
	}

	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("✗ not running (run 'codelab start')")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}

	return nil
}

// checkJudge reports whether anything answers at the judge base URL. Any
// HTTP response counts; only transport failures are errors.
func checkJudge(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("no base URL configured")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL)
	if err != nil {
		return fmt.Errorf("not reachable at %s", baseURL)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("codelab Configuration")
	fmt.Println()

	fmt.Println("Daemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Println("\nJudge:")
	fmt.Printf("  base_url: %s\n", cfg.Judge.BaseURL)
	fmt.Printf("  timeout: %s\n", cfg.Judge.Timeout())
	fmt.Printf("  max_concurrent: %d\n", cfg.Judge.MaxConcurrent)
	fmt.Printf("  rate_per_second: %d\n", cfg.Judge.RatePerSecond)
	tokenStatus := "✗"
	if cfg.Judge.Token != "" {
		tokenStatus = "✓"
	}
	fmt.Printf("  token: %s\n", tokenStatus)
	for id, judgeID := range cfg.Judge.Languages {
		fmt.Printf("  language %s: %d\n", id, judgeID)
	}

	fmt.Println("\nAssessment:")
	fmt.Printf("  cooldown: %s\n", cfg.Assessment.Cooldown())

	fmt.Println("\nStorage:")
	fmt.Printf("  backend: %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		fmt.Println("  dsn: (set)")
	case config.BackendRedis:
		fmt.Printf("  addr: %s db=%d prefix=%s\n", cfg.Storage.Redis.Addr, cfg.Storage.Redis.DB, cfg.Storage.Redis.Prefix)
	default:
		fmt.Printf("  path: %s\n", cfg.Storage.Path)
	}

	fmt.Println("\nEvents:")
	if cfg.Events.AMQPURL != "" {
		fmt.Printf("  amqp: enabled (queue %s)\n", cfg.Events.Queue)
	} else {
		fmt.Println("  amqp: disabled")
	}

	codelabDir, _ := config.CodelabDir()
	fmt.Printf("\nConfig file: %s\n", filepath.Join(codelabDir, "config.yaml"))

	return nil
}
