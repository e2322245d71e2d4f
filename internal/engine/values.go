package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"catering-backend/internal/metadata"
)

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "02.01.2006"
)

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return id, err == nil
	case []byte:
		return toInt64(string(n))
	default:
		return 0, false
	}
}

// toDate accepts time values and ISO or DD.MM.YYYY strings.
func toDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range []string{isoDateLayout, displayDateLayout, time.RFC3339, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case []byte:
		return toDate(string(d))
	}
	return time.Time{}, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	case []byte:
		return toDecimal(string(n))
	default:
		return decimal.Decimal{}, false
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case float64:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "t", "true", "on", "yes":
			return true
		}
	}
	return false
}

// displayValue renders a stored value the way record display strings and
// search text show it.
func displayValue(f *metadata.Field, v any) string {
	if v == nil {
		return ""
	}
	switch f.Kind {
	case metadata.KindDate:
		if t, ok := toDate(v); ok {
			return t.Format(displayDateLayout)
		}
	case metadata.KindDecimal:
		if d, ok := toDecimal(v); ok {
			return d.StringFixed(int32(f.Scale))
		}
	case metadata.KindBoolean:
		return strconv.FormatBool(toBool(v))
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// outputValue converts a stored value into its API form: ISO dates,
// fixed-scale decimal strings and real booleans.
func outputValue(f *metadata.Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case metadata.KindDate:
		if t, ok := toDate(v); ok {
			return t.Format(isoDateLayout)
		}
	case metadata.KindDecimal:
		if d, ok := toDecimal(v); ok {
			return d.StringFixed(int32(f.Scale))
		}
	case metadata.KindBoolean:
		return toBool(v)
	case metadata.KindReference:
		if id, ok := toInt64(v); ok {
			return id
		}
	}
	return v
}
