package ember

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pure byte/string helpers used across the request/response path. Grounded
// on http11/constants.go's pre-compiled-byte-constant style, generalized
// into functions since this engine's header collection is not a fixed-size
// inline array.

var rfc1123Months = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
var rfc1123Days = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// FormatHTTPDate renders t (converted to UTC) as an RFC 1123 date, the
// format spec §4.7 requires on output. Years outside 0001..9999 are
// rejected since Go's time package itself cannot represent them consistently
// with a fixed-width format.
func FormatHTTPDate(t time.Time) (string, error) {
	t = t.UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return "", fmt.Errorf("ember: year %d out of RFC 1123 range", t.Year())
	}
	return fmt.Sprintf("%s, %02d %s %04d %02d:%02d:%02d GMT",
		rfc1123Days[t.Weekday()], t.Day(), rfc1123Months[t.Month()-1], t.Year(),
		t.Hour(), t.Minute(), t.Second()), nil
}

// httpDateLayouts lists the layouts ParseHTTPDate tries in order: RFC 1123,
// RFC 850, then ANSI asctime (spec §4.7 "first match wins").
var httpDateLayouts = []string{
	time.RFC1123,
	"Monday, 02-Jan-06 15:04:05 MST", // RFC 850
	time.ANSIC,
}

// ParseHTTPDate parses an HTTP date header value, trying RFC 1123, RFC 850,
// then ANSI asctime in that order and returning the first successful parse.
func ParseHTTPDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range httpDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// splitTokens splits a comma-separated header value into trimmed,
// non-empty tokens (used for Transfer-Encoding and Accept-Encoding lists).
func splitTokens(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// urlDecode percent-decodes an x-www-form-urlencoded component: '+' becomes
// space, %XX becomes the decoded byte, anything else passes through.
func urlDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("ember: truncated percent-escape in %q", s)
			}
			n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("ember: invalid percent-escape in %q: %w", s, err)
			}
			b.WriteByte(byte(n))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// formatByteSize renders n bytes as a human-readable size (e.g. "1.5 KiB").
func formatByteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), units[exp])
}

// collapseSlashes collapses runs of consecutive '/' into a single '/',
// per spec §4.6 step 1 ("collapse duplicate / in the target path").
func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
