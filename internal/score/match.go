package score

// #region imports
import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// #endregion

// similarityEpsilon absorbs float rounding when a similarity sits exactly on the threshold.
const similarityEpsilon = 1e-9

// #region matcher

// Matcher decides whether a response contains an accepted answer.
type Matcher struct {
	threshold float64
}

// NewMatcher returns a matcher with the given similarity threshold in (0, 1].
// 1.0 requires the normalized answer to appear verbatim on token boundaries;
// lower values accept a token window whose edit similarity reaches the threshold.
func NewMatcher(threshold float64) (*Matcher, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("match threshold %v out of range (0, 1]", threshold)
	}
	return &Matcher{threshold: threshold}, nil
}

// Match returns the first accepted answer found in response.
func (m *Matcher) Match(response string, accepted []string) (string, bool) {
	resp := Tokens(response)
	if len(resp) == 0 {
		return "", false
	}
	for _, a := range accepted {
		gold := Tokens(a)
		if len(gold) == 0 {
			continue
		}
		if containsSeq(resp, gold) {
			return a, true
		}
		if m.threshold < 1 && !numeric(gold) && fuzzyContains(resp, gold, m.threshold) {
			return a, true
		}
	}
	return "", false
}

// #endregion

// #region exact

func containsSeq(hay, needle []string) bool {
	for i := 0; i+len(needle) <= len(hay); i++ {
		ok := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// #endregion

// #region fuzzy

func fuzzyContains(hay, needle []string, threshold float64) bool {
	target := strings.Join(needle, " ")
	for i := 0; i+len(needle) <= len(hay); i++ {
		window := strings.Join(hay[i:i+len(needle)], " ")
		if Similarity(window, target) >= threshold-similarityEpsilon {
			return true
		}
	}
	return false
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes.
func Similarity(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(n)
}

// numeric reports whether every token is made of digits only. Numbers never match fuzzily.
func numeric(tokens []string) bool {
	for _, t := range tokens {
		for _, r := range t {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

// #endregion
