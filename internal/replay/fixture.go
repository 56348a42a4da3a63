package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
	"github.com/danielpatrickdp/halluprobe/internal/records"
	"github.com/danielpatrickdp/halluprobe/internal/score"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureConfig holds the scoring settings a fixture was labeled under.
type FixtureConfig struct {
	MatchThreshold float64  `json:"match_threshold,omitempty"`
	ExtraPhrases   []string `json:"extra_phrases,omitempty"`
	// ReplacePhrases makes ExtraPhrases the whole lexicon instead of an addition.
	ReplacePhrases    bool `json:"replace_phrases,omitempty"`
	EmptyIsAbstention bool `json:"empty_is_abstention,omitempty"`
}

// FixtureCase is one recorded response and the label it is expected to get.
type FixtureCase struct {
	ID                 string           `json:"id"`
	Category           dataset.Category `json:"category"`
	Question           string           `json:"question,omitempty"`
	GoldAnswer         *string          `json:"gold_answer,omitempty"`
	Aliases            []string         `json:"aliases,omitempty"`
	Condition          prompt.Condition `json:"condition,omitempty"`
	RawOutput          string           `json:"raw_output"`
	ExpectedLabel      records.Label    `json:"expected_label"`
	ExpectedConfidence *float64         `json:"expected_confidence,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, c := range f.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("fixture %s: case %d has no id", path, i)
		}
		if !c.ExpectedLabel.Valid() {
			return nil, fmt.Errorf("fixture %s: case %s: unknown expected label %q", path, c.ID, c.ExpectedLabel)
		}
		if !c.Category.Valid() {
			return nil, fmt.Errorf("fixture %s: case %s: unknown category %q", path, c.ID, c.Category)
		}
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	out, err := records.CreateFile(path)
	if err != nil {
		return err
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		out.Close()
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return out.Close()
}

// ToQuestion converts a case to the question it answers.
func (c *FixtureCase) ToQuestion() dataset.Question {
	return dataset.Question{
		ID:         c.ID,
		Category:   c.Category,
		Text:       c.Question,
		GoldAnswer: c.GoldAnswer,
		Aliases:    c.Aliases,
	}
}

// ToScoreConfig converts the fixture config to classifier settings.
// A zero threshold means exact matching.
func (fc *FixtureConfig) ToScoreConfig() score.Config {
	cfg := score.DefaultConfig()
	if fc.MatchThreshold > 0 {
		cfg.MatchThreshold = fc.MatchThreshold
	}
	lex := cfg.Lexicon.With(fc.ExtraPhrases...)
	if fc.ReplacePhrases && len(fc.ExtraPhrases) > 0 {
		lex = score.NewLexicon(fc.ExtraPhrases)
	}
	lex.EmptyIsAbstention = fc.EmptyIsAbstention
	cfg.Lexicon = lex
	return cfg
}

// #endregion fixture-loader
