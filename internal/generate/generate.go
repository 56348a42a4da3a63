package generate

// #region imports
import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
	"github.com/danielpatrickdp/halluprobe/internal/provider"
	"github.com/danielpatrickdp/halluprobe/internal/records"
)

// #endregion

// #region config

// Config bounds the request fan-out.
type Config struct {
	// Concurrency is the number of requests in flight at once.
	Concurrency int
	// RatePerSecond paces request starts. 0 means unlimited.
	RatePerSecond float64
	// Timeout applies to each request. 0 means no per-request deadline.
	Timeout time.Duration
}

// DefaultConfig returns four workers, no pacing and a one minute timeout.
func DefaultConfig() Config {
	return Config{Concurrency: 4, Timeout: 60 * time.Second}
}

// #endregion

// #region generator-struct

// Generator sends every (question, condition) prompt to one model endpoint.
type Generator struct {
	client  provider.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// #endregion

// #region constructor

// NewGenerator wires a Generator. A nil logger is replaced with a no-op one.
func NewGenerator(client provider.Client, cfg Config, logger *zap.Logger) *Generator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Generator{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// #endregion

// #region run

// Run issues one request per (condition, question) pair and returns the
// generations condition-major, questions in input order within each
// condition. The first endpoint error cancels the remaining requests and is
// returned; no partial result is returned with it.
func (g *Generator) Run(ctx context.Context, runID string, questions []dataset.Question, conditions []prompt.Condition) ([]records.Generation, error) {
	out := make([]records.Generation, len(questions)*len(conditions))
	if len(out) == 0 {
		return out, nil
	}

	g.logger.Info("generation started",
		zap.String("run_id", runID),
		zap.String("provider", g.client.Name()),
		zap.String("model", g.client.Model()),
		zap.Int("questions", len(questions)),
		zap.Int("conditions", len(conditions)),
		zap.Int("concurrency", g.cfg.Concurrency),
	)
	start := g.now()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)

	for ci, cond := range conditions {
		for qi, q := range questions {
			slot := ci*len(questions) + qi
			if egCtx.Err() != nil {
				break
			}
			eg.Go(func() error {
				gen, err := g.one(egCtx, runID, q, cond)
				if err != nil {
					return fmt.Errorf("question %s condition %s: %w", q.ID, cond, err)
				}
				out[slot] = gen
				return nil
			})
		}
	}

	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		g.logger.Error("generation aborted", zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}
	g.logger.Info("generation finished",
		zap.String("run_id", runID),
		zap.Int("records", len(out)),
		zap.Duration("elapsed", g.now().Sub(start)),
	)
	return out, nil
}

// #endregion

// #region one

func (g *Generator) one(ctx context.Context, runID string, q dataset.Question, cond prompt.Condition) (records.Generation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return records.Generation{}, err
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	completion, err := g.client.Complete(ctx, prompt.Render(cond, q.Text))
	if err != nil {
		return records.Generation{}, err
	}
	g.logger.Debug("generated",
		zap.String("question_id", q.ID),
		zap.String("condition", string(cond)),
		zap.Duration("latency", completion.Latency),
	)
	return records.Generation{
		RunID:      runID,
		QuestionID: q.ID,
		Category:   q.Category,
		Condition:  cond,
		Question:   q.Text,
		GoldAnswer: q.GoldAnswer,
		RawOutput:  completion.Text,
		Provider:   g.client.Name(),
		Model:      g.client.Model(),
		LatencyMS:  completion.Latency.Milliseconds(),
		CreatedAt:  g.now().UTC(),
	}, nil
}

// #endregion
