package utilities

import (
	"strings"
	"time"
)

const (
	// DateTimeLayout is the storage format of every timestamp column.
	DateTimeLayout = "2006-01-02 15:04:05"
	// PermanentDateTime marks a version with no end of validity.
	PermanentDateTime = "9999-12-31 23:59:59"
)

// Clock returns the current time. Tests swap it for a fixed one.
type Clock func() time.Time

// FormatDateTime renders t in DateTimeLayout.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// LastSecond renders one second before t, used as the EnableDate of fresh rows.
func LastSecond(t time.Time) string {
	return t.Add(-time.Second).Format(DateTimeLayout)
}

// Timestamp is the Ts value stamped on every write.
func Timestamp(t time.Time) int64 {
	return t.UnixNano()
}

var dateTokens = []struct{ from, to string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
}

// GoLayout converts a yyyyMMdd style pattern into a Go time layout.
// Characters that are not part of a token are copied as is.
func GoLayout(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(pattern[i:], tok.from) {
				b.WriteString(tok.to)
				i += len(tok.from)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// FormatPattern formats t with a yyyyMMdd style pattern.
func FormatPattern(t time.Time, pattern string) string {
	if pattern == "" {
		return ""
	}
	return t.Format(GoLayout(pattern))
}
