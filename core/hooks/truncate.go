package hooks

import (
	"fmt"
	"unicode/utf8"
)

const (
	resultTruncationLimit = 5120
	resultHalf            = 2560
)

// truncateResult shortens result to the first and last resultHalf bytes
// plus a marker line when it exceeds resultTruncationLimit bytes, cutting
// only on UTF-8 rune boundaries (Go's byte-indexed strings have no built-in
// equivalent of Rust's floor_char_boundary, so boundaries are walked back by
// hand).
func truncateResult(result string) string {
	if len(result) <= resultTruncationLimit {
		return result
	}

	firstEnd := floorCharBoundary(result, resultHalf)
	lastStart := floorCharBoundary(result, len(result)-resultHalf)

	return fmt.Sprintf("%s\n... (truncated for hook, full result: %d bytes)\n%s",
		result[:firstEnd], len(result), result[lastStart:])
}

// floorCharBoundary returns the largest index <= n that falls on a UTF-8
// rune boundary in s.
func floorCharBoundary(s string, n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
