package main

import (
	"os"

	"github.com/wonny/pricebattle/cmd/battle/commands"
)

// main is the entry point for the battle CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/battle [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
