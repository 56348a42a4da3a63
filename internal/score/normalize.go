package score

// #region imports
import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// #endregion

// #region normalize

// Normalize folds text for answer comparison: accents are stripped, letters
// lowercased, thousands/decimal separators inside numbers removed and all
// other punctuation turned into single spaces.
func Normalize(s string) string {
	// transform.Chain is stateful, so build one per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	src := []rune(strings.ToLower(folded))
	var b strings.Builder
	b.Grow(len(src))
	space := true
	for i, r := range src {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case (r == ',' || r == '.') && between(src, i, unicode.IsDigit):
			// 1,945 and 3.14 stay one token
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokens splits normalized text into words.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

func between(rs []rune, i int, pred func(rune) bool) bool {
	return i > 0 && i < len(rs)-1 && pred(rs[i-1]) && pred(rs[i+1])
}

// #endregion

// #region phrase-fold

// foldPhrase prepares text for abstention matching. Unlike Normalize it keeps
// apostrophes so "don't" and "dont" remain distinct lexicon entries.
func foldPhrase(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", "'", "‘", "'", "`", "'").Replace(s)
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// #endregion
