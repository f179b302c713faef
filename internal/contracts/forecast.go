package contracts

import (
	"math"
)

// ForecastStatus lifecycle state of a forecast record
type ForecastStatus string

const (
	// StatusPending 판정 대기
	StatusPending ForecastStatus = "pending"
	// StatusSettled 판정 완료 (되돌릴 수 없음)
	StatusSettled ForecastStatus = "settled"
)

// ForecastRecord one prediction made by one agent for one asset
// ⭐ SSOT: ledger 문서의 레코드 형식은 여기서만 정의
type ForecastRecord struct {
	IssueDate        Date           `json:"issue_date"`
	TargetDate       Date           `json:"target_date"`
	AssetID          string         `json:"asset_id"`
	AgentID          string         `json:"agent_id"`
	ReferencePrice   float64        `json:"reference_price"`
	PredictedPrice   float64        `json:"predicted_price"`
	ActualPrice      *float64       `json:"actual_price"`
	Status           ForecastStatus `json:"status"`
	DirectionCorrect *bool          `json:"direction_correct"`
	ErrorRate        *float64       `json:"error_rate"`
}

// IsPending reports whether the record still awaits settlement
func (r ForecastRecord) IsPending() bool {
	return r.Status == StatusPending
}

// IsSettled reports whether the record has been judged
func (r ForecastRecord) IsSettled() bool {
	return r.Status == StatusSettled
}

// Validate checks the ingestion invariants of a new record
func (r ForecastRecord) Validate() error {
	if r.AssetID == "" {
		return NewValidationError("asset_id", "must not be empty")
	}
	if r.AgentID == "" {
		return NewValidationError("agent_id", "must not be empty")
	}
	if r.IssueDate.IsZero() || r.TargetDate.IsZero() {
		return NewValidationError("target_date", "issue and target dates are required")
	}
	if !r.TargetDate.After(r.IssueDate) {
		return NewValidationError("target_date", "must be strictly after issue_date")
	}
	if !IsPositiveFinite(r.ReferencePrice) {
		return NewValidationError("reference_price", "must be a finite positive number")
	}
	if !IsPositiveFinite(r.PredictedPrice) {
		return NewValidationError("predicted_price", "must be a finite positive number")
	}
	return nil
}

// Outcome fields are populated together or not at all
func (r ForecastRecord) outcomeConsistent() bool {
	set := 0
	if r.ActualPrice != nil {
		set++
	}
	if r.DirectionCorrect != nil {
		set++
	}
	if r.ErrorRate != nil {
		set++
	}
	return set == 0 || set == 3
}

// Consistent reports whether status and outcome fields agree
func (r ForecastRecord) Consistent() bool {
	if !r.outcomeConsistent() {
		return false
	}
	switch r.Status {
	case StatusPending:
		return r.ActualPrice == nil
	case StatusSettled:
		return r.ActualPrice != nil
	default:
		return false
	}
}

// IsPositiveFinite usable price: > 0, not NaN or ±Inf
func IsPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Asset tradable instrument tracked by the battle
type Asset struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`         // 표시 이름 (프롬프트/리포트 키)
	Symbol   string `yaml:"symbol" json:"symbol"`     // quote provider 심볼
	Decimals int    `yaml:"decimals" json:"decimals"` // 예측 소수 자릿수
}

// Agent forecasting source identity
type Agent struct {
	ID       string `yaml:"id" json:"id"`
	Provider string `yaml:"provider" json:"provider"` // openai, deepseek, gemini
	Model    string `yaml:"model" json:"model"`
}

// Quote one daily closing price
type Quote struct {
	Date  Date    `json:"date"`
	Close float64 `json:"close"`
}

// AgentStats accuracy summary of one agent
type AgentStats struct {
	WinRate  float64 `json:"win_rate"`  // %, 소수 1자리
	AvgError float64 `json:"avg_error"` // %, 소수 2자리
	Count    int     `json:"count"`
}
