package lexer

import "strings"

// Reference-format column boundaries (zero-based).
const (
	indicatorColumn = 6
	areaEnd         = 72
)

// Clean blanks the non-program areas of fixed-format source while keeping
// every remaining character at its original line and column:
//   - columns 1-6 (sequence area) and the indicator column become spaces
//   - lines whose indicator is '*' or '/' become empty
//   - text past column 72 is dropped
//
// Continuation ('-') and debugging ('D') indicators are treated as blank.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(strings.TrimSuffix(line, "\r"))
	}
	return strings.Join(lines, "\n")
}

func cleanLine(line string) string {
	runes := []rune(line)
	if len(runes) <= indicatorColumn {
		return ""
	}
	switch runes[indicatorColumn] {
	case '*', '/':
		return ""
	}
	if len(runes) > areaEnd {
		runes = runes[:areaEnd]
	}
	for i := 0; i <= indicatorColumn; i++ {
		runes[i] = ' '
	}
	return strings.TrimRight(string(runes), " \t")
}
