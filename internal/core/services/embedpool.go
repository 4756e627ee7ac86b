package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// EmbedResult is the outcome for one chunk. Err is set when the chunk's
// sub-batch failed after its retries; the chunk is then reported as failed.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// EmbedPool embeds chunks with a bounded number of concurrent requests.
// Sub-batches are dispatched to workers with their offset and results are
// placed by offset, so completion order never affects the output.
type EmbedPool struct {
	embedder   driven.EmbeddingService
	batchSize  int
	workers    int
	dimensions int
	limiter    *rate.Limiter
	retrier    Retrier
}

// NewEmbedPool creates a pool from the embedding settings. Vectors are
// checked against the embedder's declared dimension.
func NewEmbedPool(embedder driven.EmbeddingService, settings domain.EmbeddingSettings) *EmbedPool {
	p := &EmbedPool{
		embedder:   embedder,
		batchSize:  max(settings.BatchSize, 1),
		workers:    max(settings.Workers, 1),
		dimensions: embedder.Dimensions(),
		retrier:    NewRetrier(settings.MaxRetries),
	}
	if settings.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), p.workers)
	}
	return p
}

// WithRetrier replaces the retry policy.
func (p *EmbedPool) WithRetrier(r Retrier) *EmbedPool {
	p.retrier = r
	return p
}

type embedJob struct {
	offset int
	texts  []string
}

// Embed returns one result per chunk, in chunk order. A returned error is
// fatal (cancellation, bad input, or a vector of the wrong dimension) and
// the results must be discarded.
func (p *EmbedPool) Embed(ctx context.Context, chunks []domain.Chunk) ([]EmbedResult, error) {
	results := make([]EmbedResult, len(chunks))
	if len(chunks) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan embedJob)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		fatalErr error
	)
	fail := func(err error) {
		once.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	workers := min(p.workers, (len(chunks)+p.batchSize-1)/p.batchSize)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				vectors, err := p.embedBatch(ctx, job)
				if err != nil && domain.Classify(err).Fatal() {
					fail(err)
					continue
				}
				for i := range job.texts {
					if err != nil {
						results[job.offset+i] = EmbedResult{Err: err}
						continue
					}
					results[job.offset+i] = EmbedResult{Vector: vectors[i]}
				}
			}
		}()
	}

dispatch:
	for off := 0; off < len(chunks); off += p.batchSize {
		end := min(off+p.batchSize, len(chunks))
		texts := make([]string, 0, end-off)
		for _, c := range chunks[off:end] {
			texts = append(texts, c.Text)
		}
		select {
		case jobs <- embedJob{offset: off, texts: texts}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	// the parent context, not our own cancel, stopped dispatch
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// embedBatch embeds one sub-batch with throttling and retries, and checks
// the shape of the reply.
func (p *EmbedPool) embedBatch(ctx context.Context, job embedJob) ([][]float32, error) {
	var vectors [][]float32
	what := fmt.Sprintf("embed batch at offset %d", job.offset)
	err := p.retrier.Do(ctx, what, func(ctx context.Context) error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		vectors, err = p.embedder.EmbedBatch(ctx, job.texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(job.texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrTransient, len(vectors), len(job.texts))
		}
		return nil
	})
	if err != nil {
		logger.Debug("%s failed: %v", what, err)
		return nil, err
	}

	for i, v := range vectors {
		if len(v) != p.dimensions {
			return nil, fmt.Errorf("%w: %s returned %d dimensions for text %d, expected %d",
				domain.ErrDimensionMismatch, p.embedder.ModelName(), len(v), job.offset+i, p.dimensions)
		}
	}
	return vectors, nil
}
