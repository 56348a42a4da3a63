package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
	"github.com/danielpatrickdp/halluprobe/internal/provider"
)

// #region fakes

type fakeClient struct {
	mu       sync.Mutex
	prompts  []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	failOn   string
}

func (f *fakeClient) Name() string  { return "fake" }
func (f *fakeClient) Model() string { return "fake-1" }
func (f *fakeClient) Close() error  { return nil }

func (f *fakeClient) Complete(ctx context.Context, p string) (provider.Completion, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()

	if f.failOn != "" && strings.Contains(p, f.failOn) {
		return provider.Completion{}, errors.New("endpoint unavailable")
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return provider.Completion{}, ctx.Err()
	}
	return provider.Completion{Text: "echo " + p[len(p)-3:], Latency: f.delay}, nil
}

func questions(n int) []dataset.Question {
	qs := make([]dataset.Question, n)
	for i := range qs {
		gold := "g"
		qs[i] = dataset.Question{
			ID:         string(rune('a' + i)),
			Category:   dataset.CategoryFactual,
			Text:       "Question " + string(rune('a'+i)) + " ?",
			GoldAnswer: &gold,
		}
	}
	return qs
}

// #endregion fakes

func TestRun_CountAndOrder(t *testing.T) {
	client := &fakeClient{delay: time.Millisecond}
	g := NewGenerator(client, Config{Concurrency: 3}, zap.NewNop())
	qs := questions(5)

	gens, err := g.Run(context.Background(), "run-1", qs, prompt.All)
	require.NoError(t, err)
	require.Len(t, gens, len(qs)*len(prompt.All))

	for ci, cond := range prompt.All {
		for qi, q := range qs {
			gen := gens[ci*len(qs)+qi]
			assert.Equal(t, q.ID, gen.QuestionID)
			assert.Equal(t, cond, gen.Condition)
			assert.Equal(t, "run-1", gen.RunID)
			assert.Equal(t, "fake", gen.Provider)
			assert.Equal(t, "fake-1", gen.Model)
			assert.Equal(t, q.Text, gen.Question)
			assert.Equal(t, "g", *gen.GoldAnswer)
			assert.False(t, gen.CreatedAt.IsZero())
		}
	}
	assert.Len(t, client.prompts, 15)
	assert.LessOrEqual(t, client.peak.Load(), int32(3))
}

func TestRun_PromptCarriesCondition(t *testing.T) {
	client := &fakeClient{}
	g := NewGenerator(client, Config{Concurrency: 1}, nil)
	qs := questions(1)

	_, err := g.Run(context.Background(), "r", qs, []prompt.Condition{prompt.CiteOrAbstain})
	require.NoError(t, err)
	require.Len(t, client.prompts, 1)
	assert.Equal(t, prompt.Render(prompt.CiteOrAbstain, qs[0].Text), client.prompts[0])
}

func TestRun_AbortsOnFirstError(t *testing.T) {
	client := &fakeClient{delay: 50 * time.Millisecond, failOn: "Question c"}
	g := NewGenerator(client, Config{Concurrency: 2}, zap.NewNop())

	gens, err := g.Run(context.Background(), "r", questions(6), prompt.All)
	require.Error(t, err)
	assert.Nil(t, gens)
	assert.Contains(t, err.Error(), "question c condition baseline")
	assert.Contains(t, err.Error(), "endpoint unavailable")
	assert.Less(t, len(client.prompts), 18)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGenerator(&fakeClient{}, DefaultConfig(), nil)

	_, err := g.Run(ctx, "r", questions(2), prompt.All)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_PerRequestTimeout(t *testing.T) {
	client := &fakeClient{delay: time.Second}
	g := NewGenerator(client, Config{Concurrency: 1, Timeout: 10 * time.Millisecond}, nil)

	_, err := g.Run(context.Background(), "r", questions(1), []prompt.Condition{prompt.Baseline})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_Empty(t *testing.T) {
	g := NewGenerator(&fakeClient{}, DefaultConfig(), nil)
	gens, err := g.Run(context.Background(), "r", nil, prompt.All)
	require.NoError(t, err)
	assert.Empty(t, gens)
}

func TestNewGenerator_RateLimit(t *testing.T) {
	g := NewGenerator(&fakeClient{}, Config{RatePerSecond: 2}, nil)
	assert.Equal(t, 1, g.cfg.Concurrency)
	assert.InDelta(t, 2.0, float64(g.limiter.Limit()), 1e-9)
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}
