package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/halluprobe/internal/provider"
	"github.com/danielpatrickdp/halluprobe/internal/records"
	"github.com/danielpatrickdp/halluprobe/internal/replay"
)

// #region helpers

var envVars = []string{
	"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL", "CODEC_ADDR",
	"HALLUPROBE_PROVIDER", "HALLUPROBE_CODEC_ADDR", "HALLUPROBE_PATHS_DB",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func runCLI(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(context.Background(), args, &out, &errOut)
	if code != exitOK {
		t.Logf("halluprobe %s: exit %d: %s", strings.Join(args, " "), code, errOut.String())
	}
	return out.String(), code
}

const testQuestions = `{"id": "f1", "category": "factual", "text": "What is the capital of France?", "gold_answer": "Paris"}
{"id": "a1", "category": "ambiguous", "text": "What is the best programming language?", "gold_answer": null}
{"id": "u1", "category": "unanswerable", "text": "What did Napoleon eat for breakfast on 3 March 1802?", "gold_answer": null}
`

// workspace writes a questions file and a config pointing every path into a
// temp dir. It returns the dir and the config path.
func workspace(t *testing.T, extra string) (string, string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "questions.jsonl"), []byte(testQuestions), 0o644))

	cfg := fmt.Sprintf(`paths:
  questions: %[1]s/questions.jsonl
  generations: %[1]s/raw_generations.jsonl
  scored: %[1]s/scored.csv
  summary: %[1]s/summary.csv
  plots: %[1]s/plots
%[2]s`, dir, extra)
	path := filepath.Join(dir, "halluprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return dir, path
}

func writeGenerations(t *testing.T, path string, gens []records.Generation) {
	t.Helper()
	require.NoError(t, records.WriteGenerationsFile(path, gens))
}

// #endregion helpers

// #region score-analyze

func TestScoreThenAnalyze(t *testing.T) {
	dir, cfg := workspace(t, "")
	writeGenerations(t, filepath.Join(dir, "raw_generations.jsonl"), []records.Generation{
		{RunID: "r1", QuestionID: "f1", Condition: "baseline", RawOutput: "Answer: Paris\nConfidence: 95"},
		{RunID: "r1", QuestionID: "f1", Condition: "abstain_if_unsure", RawOutput: "I don't know.\nConfidence: 10"},
		{RunID: "r1", QuestionID: "u1", Condition: "baseline", RawOutput: "He had eggs and bread."},
		{RunID: "r1", QuestionID: "a1", Condition: "baseline", RawOutput: "Python."},
		{RunID: "r1", QuestionID: "zzz", Condition: "baseline", RawOutput: "orphan"},
	})

	out, code := runCLI(t, "score", "--config", cfg)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Wrote 4 scored records")

	scored, issues, err := records.ReadScoredFile(filepath.Join(dir, "scored.csv"))
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, scored, 4)
	labels := map[string]records.Label{}
	for _, s := range scored {
		labels[s.QuestionID+"/"+string(s.Condition)] = s.Label
	}
	assert.Equal(t, map[string]records.Label{
		"f1/baseline":          records.LabelCorrect,
		"f1/abstain_if_unsure": records.LabelAbstained,
		"u1/baseline":          records.LabelHallucinated,
		"a1/baseline":          records.LabelHallucinated,
	}, labels)

	out, code = runCLI(t, "analyze", "--config", cfg, "--by-category")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "baseline")
	assert.Contains(t, out, "abstain_if_unsure")
	assert.FileExists(t, filepath.Join(dir, "summary.csv"))
	for _, name := range []string{"accuracy_by_condition.png", "hallucination_rate_by_condition.png", "abstain_rate_by_condition.png"} {
		assert.FileExists(t, filepath.Join(dir, "plots", name))
	}

	summary, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(summary), "condition,"), string(summary))
}

func TestAnalyze_Check(t *testing.T) {
	dir, cfg := workspace(t, "")
	writeGenerations(t, filepath.Join(dir, "raw_generations.jsonl"), []records.Generation{
		{QuestionID: "f1", Condition: "baseline", RawOutput: "Answer: Lyon"},
		{QuestionID: "u1", Condition: "baseline", RawOutput: "Toast."},
	})
	_, code := runCLI(t, "score", "--config", cfg)
	require.Equal(t, exitOK, code)

	out, code := runCLI(t, "analyze", "--config", cfg, "--no-charts", "--check", "--max-hallucination-rate", "0.5")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "[FAIL]")

	_, code = runCLI(t, "analyze", "--config", cfg, "--no-charts", "--check")
	assert.Equal(t, exitUsage, code, "--check without thresholds is a usage error")

	_, code = runCLI(t, "analyze", "--config", cfg, "--no-charts", "--max-hallucination-rate", "0.5")
	assert.Equal(t, exitOK, code, "failed checks only fail the command under --check")
}

func TestUsageErrors(t *testing.T) {
	_, cfg := workspace(t, "")

	_, code := runCLI(t, "score", "--config", cfg, "--no-such-flag")
	assert.Equal(t, exitUsage, code)

	_, code = runCLI(t, "score", "--config", cfg, "--threshold", "1.5")
	assert.Equal(t, exitUsage, code)

	_, code = runCLI(t, "inspect", "--config", cfg)
	assert.Equal(t, exitUsage, code, "inspect without a ledger")

	_, code = runCLI(t, "generate", "--config", cfg, "--provider", "openai")
	assert.Equal(t, exitUsage, code, "missing api key")
}

func TestDocumentedFlags(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	want := map[string][]string{
		"generate":       {"questions", "generations", "provider", "conditions"},
		"score":          {"generations", "scored", "threshold"},
		"analyze":        {"scored", "summary", "plots", "check"},
		"replay":         {"fixture"},
		"export-fixture": {"out", "run", "scored", "generations"},
	}
	for name, flags := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		for _, flag := range flags {
			assert.NotNil(t, cmd.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("db"))
}

// #endregion score-analyze

// #region replay

func TestReplay_BaselineFixtures(t *testing.T) {
	clearEnv(t)
	out, code := runCLI(t, "replay",
		"--fixture", "../../internal/replay/testdata/classifier_baseline.json",
		"--fixture", "../../internal/replay/testdata/fuzzy_lexicon.json",
	)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "0 diverge")
	assert.NotContains(t, out, "DIFF")
}

func TestReplay_Divergence(t *testing.T) {
	clearEnv(t)
	gold := "Paris"
	path := filepath.Join(t.TempDir(), "fx.json")
	require.NoError(t, replay.SaveFixture(path, &replay.Fixture{
		Description: "wrong pin",
		Cases: []replay.FixtureCase{{
			ID:            "paris",
			Category:      "factual",
			Question:      "What is the capital of France?",
			GoldAnswer:    &gold,
			RawOutput:     "Paris.",
			ExpectedLabel: records.LabelHallucinated,
		}},
	}))

	out, code := runCLI(t, "replay", "--fixture", path)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "DIFF")

	_, code = runCLI(t, "replay")
	assert.Equal(t, exitUsage, code)
}

// #endregion replay

// #region end-to-end

type echoModel struct{}

func (echoModel) Complete(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p := in.GetFields()["prompt"].GetStringValue()
	text := "I don't know.\nConfidence: 5"
	if strings.Contains(p, "capital of France") {
		text = "Answer: Paris\nConfidence: 90"
	}
	return structpb.NewStruct(map[string]any{"text": text})
}

func startModel(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	provider.RegisterModelServiceServer(srv, echoModel{})
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestRun_EndToEndWithLedger(t *testing.T) {
	addr := startModel(t)
	dir, cfg := workspace(t, fmt.Sprintf("provider: codec\ncodec:\n  addr: %s\n  model: echo\n", addr))
	db := filepath.Join(dir, "runs.db")

	out, code := runCLI(t, "run", "--config", cfg, "--db", db,
		"--run-id", "test-run", "--conditions", "baseline,abstain_if_unsure", "--no-charts")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Wrote 6 generations")
	assert.Contains(t, out, "Wrote 6 scored records")

	gens, _, err := records.ReadGenerationsFile(filepath.Join(dir, "raw_generations.jsonl"))
	require.NoError(t, err)
	require.Len(t, gens, 6)
	assert.Equal(t, "f1", gens[0].QuestionID)
	assert.Equal(t, "baseline", string(gens[0].Condition))
	assert.Equal(t, "abstain_if_unsure", string(gens[3].Condition))
	assert.Equal(t, "codec", gens[0].Provider)
	assert.Equal(t, "echo", gens[0].Model)

	out, code = runCLI(t, "inspect", "--config", cfg, "--db", db)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "test-run")
	assert.Contains(t, out, "completed")

	out, code = runCLI(t, "inspect", "--config", cfg, "--db", db, "test-run", "--json")
	require.Equal(t, exitOK, code)
	var detail struct {
		Run struct {
			Status      string `json:"status"`
			Generations int    `json:"generations"`
			Scored      int    `json:"scored"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "completed", detail.Run.Status)
	assert.Equal(t, 6, detail.Run.Generations)
	assert.Equal(t, 6, detail.Run.Scored)

	_, code = runCLI(t, "inspect", "--config", cfg, "--db", db, "no-such-run")
	assert.Equal(t, exitUsage, code)

	fx := filepath.Join(dir, "pinned.json")
	out, code = runCLI(t, "export-fixture", "--config", cfg, "--db", db, "--run", "test-run", "--out", fx)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Wrote 6 cases")

	out, code = runCLI(t, "replay", "--fixture", fx)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "6 match")

	out, code = runCLI(t, "analyze", "--config", cfg, "--db", db, "--run", "test-run", "--no-charts")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "abstain_if_unsure")
}

// #endregion end-to-end
