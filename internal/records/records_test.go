package records

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
)

func ptr[T any](v T) *T { return &v }

func TestGenerationsRoundTripFile(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gens := []Generation{
		{RunID: "r1", QuestionID: "q1", Category: dataset.CategoryFactual, Condition: prompt.Baseline,
			Question: "Capital of France?", GoldAnswer: ptr("Paris"), RawOutput: "Answer: Paris <b>\nConfidence: 90",
			Provider: "openai", Model: "gpt-4o-mini", LatencyMS: 120, CreatedAt: ts},
		{RunID: "r1", QuestionID: "q2", Category: dataset.CategoryUnanswerable, Condition: prompt.CiteOrAbstain,
			RawOutput: "", CreatedAt: ts},
	}
	path := filepath.Join(t.TempDir(), "nested", "raw.jsonl")
	require.NoError(t, WriteGenerationsFile(path, gens))

	got, issues, err := ReadGenerationsFile(path)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, gens, got)
}

func TestReadGenerations_LegacyFields(t *testing.T) {
	in := `{"id": 12, "condition": "abstain", "raw_text": "I don't know.", "expected": "Canberra", "timestamp": "2024-05-01T12:00:00.123456Z"}
`
	got, issues, err := ReadGenerations(strings.NewReader(in))
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, got, 1)

	g := got[0]
	assert.Equal(t, "12", g.QuestionID)
	assert.Equal(t, prompt.AbstainIfUnsure, g.Condition)
	assert.Equal(t, "I don't know.", g.RawOutput)
	require.NotNil(t, g.GoldAnswer)
	assert.Equal(t, "Canberra", *g.GoldAnswer)
	assert.Equal(t, 2024, g.CreatedAt.Year())
}

func TestReadGenerations_BadLinesReported(t *testing.T) {
	in := `{"question_id":"q1","condition":"baseline","raw_output":"x"}
not json
{"question_id":"q2","condition":"socratic","raw_output":"x"}
{"condition":"baseline","raw_output":"x"}

{"question_id":"q3","condition":"baseline","raw_output":"y"}
`
	got, issues, err := ReadGenerations(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q3", got[1].QuestionID)

	require.Len(t, issues, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{issues[0].Line, issues[1].Line, issues[2].Line})
	for _, is := range issues {
		assert.True(t, errors.Is(is, dataset.ErrMalformed))
	}
}

func TestScoredCSVRoundTrip(t *testing.T) {
	scored := []Scored{
		{QuestionID: "q1", Category: dataset.CategoryFactual, Condition: prompt.Baseline,
			Label: LabelCorrect, Confidence: ptr(0.9), Reason: "matched gold answer"},
		{QuestionID: "q2", Category: dataset.CategoryUnanswerable, Condition: prompt.AbstainIfUnsure,
			Label: LabelAbstained, Reason: `abstention phrase "i don't know", with comma`},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteScored(&buf, scored))
	assert.True(t, strings.HasPrefix(buf.String(), "question_id,category,condition,label,confidence,reason\n"))

	got, issues, err := ReadScored(&buf)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, scored, got)
}

func TestReadScored_RejectsBadRows(t *testing.T) {
	in := "condition,label,question_id,extra\n" +
		"baseline,correct,q1,zzz\n" +
		"baseline,maybe,q2,\n" +
		"nope,correct,q3,\n"
	got, issues, err := ReadScored(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q1", got[0].QuestionID)
	assert.Nil(t, got[0].Confidence)

	require.Len(t, issues, 2)
	assert.Equal(t, 3, issues[0].Line)
	assert.Equal(t, "q3", issues[1].QuestionID)
}

func TestReadScored_MissingColumn(t *testing.T) {
	_, _, err := ReadScored(strings.NewReader("question_id,condition\nq1,baseline\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label")
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel(" Hallucinated ")
	require.NoError(t, err)
	assert.Equal(t, LabelHallucinated, l)

	_, err = ParseLabel("partial")
	assert.Error(t, err)
}

func TestOptionalFloat(t *testing.T) {
	assert.Equal(t, "", FormatOptional(nil))
	assert.Equal(t, "0.75", FormatOptional(ptr(0.75)))

	v, err := ParseOptional("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseOptional("0.5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, *v)

	_, err = ParseOptional("high")
	assert.Error(t, err)
}
