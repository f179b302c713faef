package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	catalogFile string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "battle",
	Short: "AI Price Battle - 예측 기록 및 판정 엔진",
	Long: `AI Price Battle CLI

여러 AI 예측 소스의 가격 예측을 기록하고,
목표일이 지나면 실제 종가로 판정하여 승률/오차를 집계합니다.

Usage:
  go run ./cmd/battle [command]

Examples:
  go run ./cmd/battle run
  go run ./cmd/battle settle --as-of 2024-03-11
  go run ./cmd/battle stats
  go run ./cmd/battle reset
  go run ./cmd/battle scheduler start
  go run ./cmd/battle api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "asset/agent catalog YAML (default: CATALOG_PATH or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
