package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	fencePattern  = regexp.MustCompile("```[A-Za-z]*")
	scalarPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Values field name → numeric forecast
type Values map[string]float64

// Get returns the value for key, if present
func (v Values) Get(key string) (float64, bool) {
	val, ok := v[key]
	return val, ok
}

// Extractor recovers structured forecasts from free-form source output
// ⭐ SSOT: 소스 응답 파싱은 여기서만. 실패는 항상 (nil, false)
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor 새 추출기 생성
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{
		log: log.With().Str("component", "extract").Logger(),
	}
}

// Extract strips markdown fences and decodes the span from the first '{'
// to the last '}' as an object of numeric fields.
// Returns false when no object can be recovered.
func (e *Extractor) Extract(text string) (Values, bool) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		e.log.Debug().Int("length", len(text)).Msg("no braces in source output")
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned[start : end+1])))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		e.log.Debug().Err(err).Msg("source output is not valid JSON")
		return nil, false
	}
	// span must hold exactly one object
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		e.log.Debug().Msg("trailing data after JSON object")
		return nil, false
	}

	values := make(Values, len(raw))
	for key, v := range raw {
		if f, ok := toFloat(v); ok {
			values[key] = f
			continue
		}
		e.log.Debug().Str("field", key).Msg("non-numeric field skipped")
	}

	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// ExtractScalar returns the first decimal number in text, commas ignored
func (e *Extractor) ExtractScalar(text string) (float64, bool) {
	match := scalarPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// toFloat converts decoded JSON scalars to float64
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
