// Package pipeline runs one ranking query: retrieve, filter, rerank, publish.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
	"github.com/DarthPollos/CV-Compare-Project/internal/filtering"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
	"github.com/DarthPollos/CV-Compare-Project/internal/rerank"
)

type State string

const (
	StateRetrieving     State = "retrieving"
	StateRetrieveFailed State = "retrieve_failed"
	StateRetrieveEmpty  State = "retrieve_empty"
	StateRetrieved      State = "retrieved"
	StateReranking      State = "reranking"
	StateRerankFailed   State = "rerank_failed"
	StateDone           State = "done"
)

const (
	MessageSystemError  = "A system error occurred while searching for candidates. Please try again later."
	MessageNoCandidates = "No relevant candidates were found."
)

type Retriever interface {
	Retrieve(ctx context.Context, jobDescription string, k int) (*candidates.Matches, error)
}

type Reranker interface {
	Rerank(ctx context.Context, jobDescription string, matches []*candidates.Match) (*rerank.Result, error)
	MaxCandidates() int
}

type Publisher interface {
	Publish(queryID string, ranked []candidates.Ranked) error
}

type Query struct {
	JobDescription string
	TopK           int
	Rerank         bool
}

// Outcome is everything the caller needs to present a finished query.
type Outcome struct {
	QueryID        string
	JobDescription string
	State          State
	// Trace lists every state the query went through.
	Trace      []State
	Candidates []candidates.Ranked
	// Reranked is true only when the order comes from the LLM.
	Reranked    bool
	RerankError string
	Err         error
	Message     string
	Elapsed     time.Duration
}

func (o *Outcome) transition(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

type Options struct {
	TopK         int
	Filters      []filtering.Filter
	FilterConfig filtering.Config
	Publisher    Publisher
}

type Coordinator struct {
	retriever Retriever
	reranker  Reranker
	opts      Options
	logger    *zap.Logger

	// filters keep per-run state, so runs over them are serialized.
	filterMu sync.Mutex
}

// New creates a Coordinator. reranker may be nil, queries then always use similarity order.
func New(retriever Retriever, reranker Reranker, opts Options, log *zap.Logger) *Coordinator {
	if opts.Filters == nil {
		opts.Filters = filtering.Default()
	}
	return &Coordinator{
		retriever: retriever,
		reranker:  reranker,
		opts:      opts,
		logger:    logger.ForComponent(log, "pipeline"),
	}
}

// Run executes a query. It never returns nil; failures are described by the Outcome.
func (c *Coordinator) Run(ctx context.Context, q Query) *Outcome {
	start := time.Now()
	out := &Outcome{QueryID: uuid.NewString(), JobDescription: q.JobDescription}
	log := logger.WithQueryID(c.logger, out.QueryID)
	defer func() {
		out.Elapsed = time.Since(start)
		log.Info("query finished",
			zap.String("state", string(out.State)),
			zap.Bool("reranked", out.Reranked),
			zap.Int("candidates", len(out.Candidates)),
			zap.Duration("elapsed", out.Elapsed),
		)
	}()

	topK := q.TopK
	if topK <= 0 {
		topK = c.opts.TopK
	}

	out.transition(StateRetrieving)
	matches, err := c.retriever.Retrieve(ctx, q.JobDescription, topK)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		out.transition(StateRetrieveFailed)
		out.Err = err
		out.Message = MessageSystemError
		return out
	}
	if matches.Len() == 0 {
		out.transition(StateRetrieveEmpty)
		out.Message = MessageNoCandidates
		c.publish(log, out)
		return out
	}

	useReranker := q.Rerank && c.reranker != nil
	cfg := c.opts.FilterConfig
	if useReranker {
		if limit := c.reranker.MaxCandidates(); cfg.MaxCandidates <= 0 || cfg.MaxCandidates > limit {
			cfg.MaxCandidates = limit
		}
	}

	c.filterMu.Lock()
	matches, err = filtering.Run(ctx, &cfg, filtering.Deps{Logger: log}, c.opts.Filters, matches)
	c.filterMu.Unlock()
	if err != nil {
		log.Error("filtering failed", zap.Error(err))
		out.transition(StateRetrieveFailed)
		out.Err = err
		out.Message = MessageSystemError
		return out
	}
	if matches.Len() == 0 {
		out.transition(StateRetrieveEmpty)
		out.Message = MessageNoCandidates
		c.publish(log, out)
		return out
	}
	out.transition(StateRetrieved)

	out.Candidates = candidates.FromMatches(matches)
	if useReranker {
		out.transition(StateReranking)
		res, err := c.reranker.Rerank(ctx, q.JobDescription, matches.Items)
		switch {
		case err != nil:
			out.RerankError = err.Error()
		case res == nil:
			out.RerankError = "reranker returned no result"
		case res.Failed():
			out.RerankError = res.Error
		default:
			out.Candidates = res.Ranked
			out.Reranked = true
		}

		if !out.Reranked {
			out.transition(StateRerankFailed)
			fields := []zap.Field{zap.String("reason", out.RerankError)}
			if err == nil && res != nil {
				fields = append(fields, zap.NamedError("cause", res.Cause))
			}
			if errors.Is(err, context.Canceled) {
				log.Info("reranking cancelled, using similarity order", fields...)
			} else {
				log.Warn("reranking failed, using similarity order", fields...)
			}
		}
	}

	out.transition(StateDone)
	c.publish(log, out)
	return out
}

// publish hands the shortlist over, an empty one clears the previous query's.
func (c *Coordinator) publish(log *zap.Logger, out *Outcome) {
	if c.opts.Publisher == nil {
		return
	}
	if err := c.opts.Publisher.Publish(out.QueryID, out.Candidates); err != nil {
		log.Warn("publishing shortlist failed", zap.Error(err))
	}
}
