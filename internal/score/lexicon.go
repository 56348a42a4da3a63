package score

// #region imports
import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region default-phrases

// DefaultAbstentionPhrases are the expressions treated as the model declining
// to answer. Matching is case-insensitive and on word boundaries.
var DefaultAbstentionPhrases = []string{
	"i don't know",
	"i do not know",
	"i dont know",
	"i'm not sure",
	"i am not sure",
	"not sure",
	"cannot answer",
	"can't answer",
	"cannot determine",
	"can't determine",
	"cannot say",
	"can't say",
	"unable to answer",
	"unable to determine",
	"no way to know",
	"not enough information",
	"doesn't have enough information",
	"does not have enough information",
	"doesn't contain enough information",
	"don't have enough information",
	"do not have enough information",
	"doesn't have information",
	"does not have information",
	"doesn't contain information",
	"does not contain information",
	"don't have information",
	"do not have information",
	"insufficient information",
	"cannot be answered",
	"cannot be determined",
	"can't be determined",
	"unanswerable",
}

// #endregion

// #region lexicon

// Lexicon is an immutable set of abstention phrases.
type Lexicon struct {
	phrases []string // folded and padded
	raw     []string
	// EmptyIsAbstention treats a blank response as an abstention rather than a hallucination.
	EmptyIsAbstention bool
}

// LexiconFile is the on-disk YAML form of a lexicon.
type LexiconFile struct {
	// Phrases are added to the defaults unless Replace is set.
	Phrases           []string `yaml:"phrases"`
	Replace           bool     `yaml:"replace"`
	EmptyIsAbstention bool     `yaml:"empty_is_abstention"`
}

// DefaultLexicon returns the built-in abstention lexicon.
func DefaultLexicon() *Lexicon {
	return NewLexicon(DefaultAbstentionPhrases)
}

// NewLexicon builds a lexicon from phrases. Blank and duplicate phrases are dropped.
func NewLexicon(phrases []string) *Lexicon {
	l := &Lexicon{}
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		folded := foldPhrase(p)
		if strings.TrimSpace(folded) == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		l.phrases = append(l.phrases, folded)
		l.raw = append(l.raw, strings.TrimSpace(p))
	}
	return l
}

// With returns a copy of l extended by extra phrases.
func (l *Lexicon) With(extra ...string) *Lexicon {
	out := NewLexicon(append(append([]string(nil), l.raw...), extra...))
	out.EmptyIsAbstention = l.EmptyIsAbstention
	return out
}

// Phrases returns the phrases as given, in match order.
func (l *Lexicon) Phrases() []string {
	return append([]string(nil), l.raw...)
}

// Match reports the first lexicon phrase contained in text, if any.
func (l *Lexicon) Match(text string) (string, bool) {
	folded := foldPhrase(text)
	for i, p := range l.phrases {
		if strings.Contains(folded, p) {
			return l.raw[i], true
		}
	}
	return "", false
}

// LoadLexicon reads a YAML lexicon file. An empty path yields the default lexicon.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	var lf LexiconFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}

	var l *Lexicon
	if lf.Replace {
		if len(lf.Phrases) == 0 {
			return nil, fmt.Errorf("lexicon %s: replace set but no phrases given", path)
		}
		l = NewLexicon(lf.Phrases)
	} else {
		l = DefaultLexicon().With(lf.Phrases...)
	}
	l.EmptyIsAbstention = lf.EmptyIsAbstention
	return l, nil
}

// #endregion
