package contracts

import "fmt"

// SettlementMode eligibility rule for settling a pending record
type SettlementMode string

const (
	// ModeStrict settle only once asOf is strictly after target_date
	ModeStrict SettlementMode = "strict"
	// ModeLenient settle on or after target_date
	ModeLenient SettlementMode = "lenient"
)

// ParseSettlementMode validates a configured mode
func ParseSettlementMode(s string) (SettlementMode, error) {
	switch SettlementMode(s) {
	case ModeStrict, ModeLenient:
		return SettlementMode(s), nil
	case "":
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("settlement mode must be strict or lenient, got %q", s)
	}
}

// Eligible reports whether a record maturing on target may be settled as of asOf
func (m SettlementMode) Eligible(target, asOf Date) bool {
	if m == ModeLenient {
		return !asOf.Before(target)
	}
	return asOf.After(target)
}
