package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexTime is a timestamp that accepts any of the representations data
// entry has historically produced: RFC3339 strings (with or without
// fractional seconds), date-only strings, and numeric epochs in seconds
// or milliseconds. An unparsable value coerces to the decode time rather
// than failing the whole payload; losing one timestamp is recoverable,
// losing the dataset is not.
type FlexTime struct {
	t time.Time
}

// Now returns a FlexTime holding the current instant.
func Now() FlexTime {
	return FlexTime{t: time.Now().UTC()}
}

// At wraps a concrete time.Time.
func At(t time.Time) FlexTime {
	return FlexTime{t: t.UTC()}
}

// Time returns the underlying instant, coercing the zero value to now.
func (f FlexTime) Time() time.Time {
	if f.t.IsZero() {
		return time.Now().UTC()
	}
	return f.t
}

// IsZero reports whether the timestamp was never set.
func (f FlexTime) IsZero() bool {
	return f.t.IsZero()
}

// Before reports whether f is before other.
func (f FlexTime) Before(other FlexTime) bool {
	return f.Time().Before(other.Time())
}

// MarshalJSON renders the canonical RFC3339Nano UTC form.
func (f FlexTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(f.Time().UTC().Format(time.RFC3339Nano))), nil
}

// UnmarshalJSON accepts RFC3339 variants, date-only strings, and numeric
// epochs (seconds or milliseconds). Unparsable input falls back to now.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		f.t = time.Now().UTC()
		return nil
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		f.t = parseTimeString(unquoted)
		return nil
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		f.t = epochToTime(n)
		return nil
	}

	f.t = time.Now().UTC()
	return nil
}

// Coerce converts any supported timestamp representation into a FlexTime.
// Used by the datasource layer when columns arrive as interface{}.
func Coerce(v any) FlexTime {
	switch val := v.(type) {
	case time.Time:
		return At(val)
	case FlexTime:
		return val
	case string:
		return FlexTime{t: parseTimeString(val)}
	case float64:
		return FlexTime{t: epochToTime(val)}
	case int64:
		return FlexTime{t: epochToTime(float64(val))}
	case int:
		return FlexTime{t: epochToTime(float64(val))}
	case fmt.Stringer:
		return FlexTime{t: parseTimeString(val.String())}
	default:
		return Now()
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(n)
	}
	return time.Now().UTC()
}

// epochToTime interprets n as epoch seconds, or epoch milliseconds when
// the magnitude makes seconds implausible (past the year 5000).
func epochToTime(n float64) time.Time {
	const msCutoff = 1e11
	if n > msCutoff || n < -msCutoff {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
