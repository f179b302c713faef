package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pricebattle/internal/catalog"
	"github.com/wonny/pricebattle/pkg/config"
	"github.com/wonny/pricebattle/pkg/database"
	"github.com/wonny/pricebattle/pkg/redis"
)

// doctorCmd checks configuration and connectivity
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "설정 및 연결 점검",
	Long: `설정, 카탈로그, 데이터베이스, Redis 연결을 점검합니다.

Example:
  go run ./cmd/battle doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("=== AI Price Battle Doctor ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s, backend: %s, mode: %s)\n",
		cfg.Env, cfg.Ledger.Backend, cfg.Battle.SettlementMode)

	path := cfg.Battle.CatalogPath
	if catalogFile != "" {
		path = catalogFile
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("❌ Catalog invalid: %w", err)
	}
	fmt.Printf("✅ Catalog: %d assets, %d agents\n", len(cat.Assets), len(cat.Agents))

	for _, agent := range cat.Agents {
		fmt.Printf("   %-10s %-9s key=%v\n", agent.ID, agent.Provider, hasKey(cfg, agent.Provider))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.Ledger.Backend == config.BackendPostgres {
		fmt.Printf("   Database URL: %s\n", maskPassword(cfg.Database.URL))
		db, err := database.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("❌ Failed to connect to database: %w", err)
		}
		defer db.Close()

		status := db.HealthCheck(ctx)
		if !status.Healthy {
			return fmt.Errorf("❌ Health check failed: %s", status.Error)
		}
		fmt.Printf("✅ Database healthy (%s, %d conns)\n", status.ResponseTime, status.TotalConns)
	} else {
		fmt.Printf("✅ Ledger file: %s\n", cfg.Ledger.Path)
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg)
		if err != nil {
			fmt.Printf("⚠️  Redis unavailable (quote cache disabled): %v\n", err)
		} else {
			rc.Close()
			fmt.Println("✅ Redis reachable")
		}
	}

	return nil
}

func hasKey(cfg *config.Config, provider string) bool {
	switch provider {
	case "openai":
		return cfg.OpenAI.APIKey != ""
	case "deepseek":
		return cfg.DeepSeek.APIKey != ""
	case "gemini":
		return cfg.Gemini.APIKey != ""
	}
	return false
}

// maskPassword hides the password in a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	pw, ok := u.User.Password()
	if !ok || pw == "" {
		return raw
	}
	return strings.Replace(raw, ":"+pw+"@", ":****@", 1)
}
