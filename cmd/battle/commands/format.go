package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/stats"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const rule = "═══════════════════════════════════════════════════════════"

// PrintHeader prints a formatted command header
func PrintHeader(title string, lines ...string) {
	fmt.Println()
	fmt.Println(rule)
	fmt.Printf("  %s\n", title)
	if len(lines) > 0 {
		fmt.Println("───────────────────────────────────────────────────────────")
		for _, l := range lines {
			fmt.Printf("  %s\n", l)
		}
	}
	fmt.Println(rule)
}

// PrintStats prints the leaderboard, best win rate first
func PrintStats(st map[string]contracts.AgentStats) {
	ids := stats.AgentIDs(st)
	// win_rate desc, avg_error asc
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && better(st[ids[j]], st[ids[j-1]]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}

	fmt.Printf("  %-12s %10s %10s %8s\n", "AGENT", "WIN RATE", "AVG ERROR", "COUNT")
	fmt.Println("  " + strings.Repeat("─", 43))
	for _, id := range ids {
		s := st[id]
		fmt.Printf("  %-12s %9.1f%% %9.2f%% %8d\n", id, s.WinRate, s.AvgError, s.Count)
	}
}

func better(a, b contracts.AgentStats) bool {
	if a.WinRate != b.WinRate {
		return a.WinRate > b.WinRate
	}
	return a.AvgError < b.AvgError
}

// PrintCompletion prints the completion line
func PrintCompletion(what string, seconds float64) {
	fmt.Println()
	fmt.Printf("✅ %s completed in %.2fs\n", what, seconds)
}
