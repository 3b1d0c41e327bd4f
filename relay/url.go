package relay

import (
	"strings"
)

// QueryParam is the query parameter carrying the relayed message.
const QueryParam = "sensor_data"

// BuildURL appends the message to base as the sensor_data query value. The
// value is not form-encoded: only bytes that cannot appear raw in a request
// line are percent-encoded, so "|" and ":" reach the server untouched.
func BuildURL(base, message string) string {
	return base + "?" + QueryParam + "=" + escapeQueryValue(message)
}

func escapeQueryValue(s string) string {
	const upperhex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(s, i) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func shouldEscape(s string, i int) bool {
	c := s[i]
	switch {
	case c <= 0x20 || c >= 0x7f:
		return true
	case c == '"' || c == '\'' || c == '<' || c == '>' || c == '#':
		return true
	case c == '%':
		// An existing escape is passed through as-is.
		return !(i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]))
	default:
		return false
	}
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
