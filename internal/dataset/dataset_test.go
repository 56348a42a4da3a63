package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestions_CurrentFormat(t *testing.T) {
	input := `{"id":"q1","category":"factual","text":"Capital of France?","gold_answer":"Paris","aliases":["Paris, France"]}
{"id":"q2","category":"ambiguous","text":"Best programming language?","gold_answer":null}

{"id":"q3","category":"unanswerable","text":"What did Napoleon eat on 3 May 1790?"}
`
	qs, issues, err := ParseQuestions(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, qs, 3)

	assert.Equal(t, CategoryFactual, qs[0].Category)
	assert.Equal(t, "Paris", qs[0].Gold())
	assert.Equal(t, []string{"Paris", "Paris, France"}, qs[0].AcceptedAnswers())

	assert.Equal(t, CategoryAmbiguous, qs[1].Category)
	assert.False(t, qs[1].HasGold())
	assert.Nil(t, qs[1].GoldAnswer)

	assert.Equal(t, CategoryUnanswerable, qs[2].Category)
}

func TestParseQuestions_LegacyFormat(t *testing.T) {
	input := `{"id": 7, "question": "Who wrote Hamlet?", "answer": "Shakespeare"}
{"id": 8, "question": "What is my neighbour's name?", "answer": "UNANSWERABLE"}
{"id": 9, "category": "unanswerable", "question": "Lottery numbers next week?", "answer": "unanswerable"}
`
	qs, issues, err := ParseQuestions(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, qs, 3)

	assert.Equal(t, "7", qs[0].ID)
	assert.Equal(t, CategoryFactual, qs[0].Category)
	assert.Equal(t, "Who wrote Hamlet?", qs[0].Text)

	assert.Equal(t, CategoryUnanswerable, qs[1].Category)
	assert.Nil(t, qs[1].GoldAnswer)

	assert.Equal(t, CategoryUnanswerable, qs[2].Category)
	assert.Nil(t, qs[2].GoldAnswer)
}

func TestParseQuestions_DataErrorsDoNotAbort(t *testing.T) {
	input := `{"id":"ok","category":"factual","text":"2+2?","gold_answer":"4"}
{not json}
{"id":"nogold","category":"factual","text":"Who?"}
{"id":"blank","category":"factual","text":"Who?","gold_answer":"   "}
{"id":"badcat","category":"opinion","text":"Why?"}
{"category":"factual","text":"no id","gold_answer":"x"}
{"id":"ok","category":"factual","text":"dup","gold_answer":"4"}
{"id":"last","category":"ambiguous","text":"Tallest?"}
`
	qs, issues, err := ParseQuestions(strings.NewReader(input))
	require.NoError(t, err)

	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	assert.Equal(t, []string{"ok", "last"}, ids)
	require.Len(t, issues, 6)

	assert.Equal(t, 2, issues[0].Line)
	assert.True(t, errors.Is(issues[0], ErrMalformed))
	assert.True(t, errors.Is(issues[1], ErrMissingGold))
	assert.Equal(t, "nogold", issues[1].QuestionID)
	assert.True(t, errors.Is(issues[2], ErrMissingGold))
	assert.True(t, errors.Is(issues[3], ErrMalformed))
	assert.True(t, errors.Is(issues[4], ErrMalformed))
	assert.True(t, errors.Is(issues[5], ErrDuplicateID))
	assert.Contains(t, issues[5].Error(), "line 7")
}

func TestLoadQuestions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"a","text":"1+1?","gold_answer":"2"}`+"\n"), 0644))

	qs, issues, err := LoadQuestions(path)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Len(t, qs, 1)
}

func TestLoadQuestions_NotFound(t *testing.T) {
	_, _, err := LoadQuestions(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Factual ")
	require.NoError(t, err)
	assert.Equal(t, CategoryFactual, c)

	_, err = ParseCategory("opinion")
	assert.Error(t, err)

	assert.Less(t, CategoryFactual.Order(), CategoryUnanswerable.Order())
	assert.Equal(t, len(Categories), Category("x").Order())
}

func TestIndex(t *testing.T) {
	idx := Index([]Question{{ID: "a"}, {ID: "b"}})
	assert.Len(t, idx, 2)
	assert.Equal(t, "b", idx["b"].ID)
}
