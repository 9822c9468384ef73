package edi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Bounds applied to untrusted scalars. A value outside these degrades to the
// caller's default instead of failing the record.
const (
	minDateYear  = 2000
	maxDateYear  = 2100
	maxMagnitude = 1_000_000
)

const dateLayout = "20060102"

// Normalizer coerces untrusted JSON scalars into validated domain values.
// Rejections are logged and absorbed; nothing here returns an error.
type Normalizer struct {
	log *zap.Logger
}

// NewNormalizer builds a Normalizer. A nil logger disables warnings.
func NewNormalizer(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// ParseDate parses an 8-digit YYYYMMDD string. Wrong length, non-numeric
// content, impossible dates, and years outside [2000, 2100] yield nil. The
// value is checked as received; padded input is a format violation.
func (n *Normalizer) ParseDate(value Text) *time.Time {
	s := value.String()
	if s == "" {
		return nil
	}
	if len(s) != len(dateLayout) {
		n.log.Warn("invalid date format length", zap.String("value", s))
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		n.log.Warn("date parsing failed", zap.String("value", s))
		return nil
	}
	if t.Year() < minDateYear || t.Year() > maxDateYear {
		n.log.Warn("date year out of range", zap.Int("year", t.Year()))
		return nil
	}
	return &t
}

// BoundedInt coerces a JSON scalar to an int within [0, 1_000_000],
// returning def when coercion fails or the result is out of bounds.
func (n *Normalizer) BoundedInt(value any, def int) int {
	result, ok := coerceInt(value)
	if !ok {
		return def
	}
	if result < 0 || result > maxMagnitude {
		n.log.Warn("suspicious quantity value", zap.Int("value", result))
		return def
	}
	return result
}

// BoundedFloat is the fractional counterpart of BoundedInt, used for prices.
func (n *Normalizer) BoundedFloat(value any, def float64) float64 {
	result, ok := coerceFloat(value)
	if !ok {
		return def
	}
	if result < 0 || result > maxMagnitude {
		n.log.Warn("suspicious price value", zap.Float64("value", result))
		return def
	}
	return result
}

func coerceInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		// fractional quantities truncate, matching upstream coercion
		return int(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return i, true
	case Text:
		return coerceInt(string(v))
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case Text:
		return coerceFloat(string(v))
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
