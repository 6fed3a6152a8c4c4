package indexing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/model"
)

// Options configures an Indexer.
type Options struct {
	// ChunkSize is the number of guidelines embedded per request.
	ChunkSize int
	// MaxConcurrency bounds the number of in-flight embedding requests.
	MaxConcurrency int
	// OnProgress receives the completion percentage as chunks finish.
	OnProgress core.ProgressFunc
	Logger     logging.Logger
}

// DefaultOptions returns the indexer defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:      16,
		MaxConcurrency: 4,
		Logger:         logging.NoOpLogger{},
	}
}

// Indexer embeds guidelines into an Index.
type Indexer struct {
	embedder model.Embedder
	index    *Index
	opts     Options
}

// NewIndexer creates an indexer writing into index.
func NewIndexer(embedder model.Embedder, index *Index, optFns ...func(o *Options)) *Indexer {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Indexer{embedder: embedder, index: index, opts: opts}
}

// Predicate is the text embedded for a guideline.
func Predicate(g core.Guideline) string {
	return fmt.Sprintf("When %s, then %s", g.Condition, g.Action)
}

// Index embeds guidelines and stores them. Each chunk stretches the
// progress total up front and advances it once embedded, so the reported
// percentage reaches 100 exactly when all chunks are done. The first failed
// chunk cancels the rest; chunks already embedded stay indexed.
func (ix *Indexer) Index(ctx context.Context, guidelines []core.Guideline) error {
	if len(guidelines) == 0 {
		return nil
	}

	progress := core.NewProgress(ix.opts.OnProgress)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.MaxConcurrency)

	for start := 0; start < len(guidelines); start += ix.opts.ChunkSize {
		chunk := guidelines[start:min(start+ix.opts.ChunkSize, len(guidelines))]
		progress.Stretch(len(chunk))

		g.Go(func() error {
			if err := ix.embedChunk(gctx, chunk); err != nil {
				return err
			}
			progress.Advance(len(chunk))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		ix.opts.Logger.Error("indexing.failed", "error", err.Error(), "indexed", ix.index.Len())
		return err
	}

	ix.opts.Logger.Info("indexing.completed", "guidelines", len(guidelines))
	return nil
}

func (ix *Indexer) embedChunk(ctx context.Context, chunk []core.Guideline) error {
	texts := make([]string, len(chunk))
	for i, gl := range chunk {
		texts[i] = Predicate(gl)
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return &core.TransportError{Attempts: 1, Err: fmt.Errorf("embed %d guidelines: %w", len(chunk), err)}
	}
	if len(vectors) != len(chunk) {
		return core.NewSchemaViolation("", "embedder returned %d vectors for %d texts", len(vectors), len(chunk))
	}

	for i, gl := range chunk {
		ix.index.Put(Entry{Guideline: gl, Vector: vectors[i]})
	}
	return nil
}

// Rank embeds query and returns the k most similar indexed guidelines.
func (ix *Indexer) Rank(ctx context.Context, query string, k int) ([]Match, error) {
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &core.TransportError{Attempts: 1, Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(vectors) != 1 {
		return nil, core.NewSchemaViolation("", "embedder returned %d vectors for 1 text", len(vectors))
	}
	return ix.index.Search(vectors[0], k), nil
}
