package ingest

import (
	"fmt"
	"strings"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/quotes"
)

// MarketData one asset with its latest snapshot
type MarketData struct {
	Asset    contracts.Asset
	Snapshot quotes.Snapshot
}

// BuildPrompt asks for a close horizonDays business days ahead for every asset,
// answered as a JSON object keyed by asset display name.
func BuildPrompt(data []MarketData, horizonDays int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a financial analyst. Predict the closing price of each of the following %d instruments %d business days from now.\n\n",
		len(data), horizonDays)

	sb.WriteString("Rules:\n")
	sb.WriteString("1. Do not answer with the current price. Always predict a movement.\n")
	precision := make([]string, 0, len(data))
	for _, md := range data {
		precision = append(precision, fmt.Sprintf("%s %d", md.Asset.Name, md.Asset.Decimals))
	}
	fmt.Fprintf(&sb, "2. Decimal places: %s.\n", strings.Join(precision, ", "))
	sb.WriteString("3. Output JSON only, nothing else.\n\n")

	sb.WriteString("Output JSON Format:\n{\n")
	for i, md := range data {
		sep := ","
		if i == len(data)-1 {
			sep = ""
		}
		fmt.Fprintf(&sb, "    %q: %s%s\n", md.Asset.Name, formatPrice(0, md.Asset.Decimals), sep)
	}
	sb.WriteString("}\n\nData:\n")

	for _, md := range data {
		fmt.Fprintf(&sb, "\n### %s\nCurrent: %s\nHistory:\n", md.Asset.Name, formatPrice(md.Snapshot.Current.Close, md.Asset.Decimals))
		for _, q := range md.Snapshot.History {
			fmt.Fprintf(&sb, "%s: %s\n", q.Date, formatPrice(q.Close, md.Asset.Decimals))
		}
	}

	return sb.String()
}

func formatPrice(v float64, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, v)
}
