package common

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
// Keeps external tool output readable when it ends up inside wrapped errors.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
