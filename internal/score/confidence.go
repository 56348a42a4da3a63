package score

// #region imports
import (
	"regexp"
	"strconv"
	"strings"
)

// #endregion

// confidencePattern matches "Confidence: 85", "confidence level is 0.7",
// "certainty = 90%" and similar self-reports. A match is only a confidence
// when the number ends there; see numberEnds.
var confidencePattern = regexp.MustCompile(
	`(?i)\b(?:confidence(?:\s+(?:level|score))?|certainty)\s*(?::|=|\bis\b|\bof\b)?\s*(\d{1,3}(?:\.\d+)?)(\s*%)?`,
)

// #region extract

// ExtractConfidence returns the first self-reported confidence in text scaled
// to [0, 1], or nil when none is present. Prompts ask for 0-100, so a whole
// number or a value followed by % is a percentage; a decimal up to 1 is a
// fraction.
func ExtractConfidence(text string) *float64 {
	for _, m := range confidenceClauses(text) {
		num := text[m[2]:m[3]]
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		if m[4] >= 0 || !strings.Contains(num, ".") || v > 1 {
			v /= 100
		}
		v = min(max(v, 0), 1)
		return &v
	}
	return nil
}

// StripConfidence removes every confidence clause from text so a trailing
// self-report cannot affect label assignment. Text that only looks like a
// clause, such as "certainty: 1945", is left alone.
func StripConfidence(text string) string {
	clauses := confidenceClauses(text)
	if len(clauses) == 0 {
		return strings.TrimSpace(text)
	}
	var b strings.Builder
	last := 0
	for _, m := range clauses {
		b.WriteString(text[last:m[0]])
		b.WriteByte(' ')
		last = m[1]
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(b.String())
}

// confidenceClauses returns submatch indexes of the pattern matches whose
// number is complete.
func confidenceClauses(text string) [][]int {
	var out [][]int
	for _, m := range confidencePattern.FindAllStringSubmatchIndex(text, -1) {
		if numberEnds(text, m[3]) {
			out = append(out, m)
		}
	}
	return out
}

// numberEnds reports whether the number ending at i is not cut out of a longer
// one: no digit follows, and no separator followed by a digit.
func numberEnds(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	if isDigit(text[i]) {
		return false
	}
	if (text[i] == '.' || text[i] == ',') && i+1 < len(text) && isDigit(text[i+1]) {
		return false
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// #endregion
