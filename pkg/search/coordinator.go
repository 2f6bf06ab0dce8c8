package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
	"github.com/pharmvec/pharmvec/pkg/processor"
)

type Config struct {
	// DefaultLimit is the k used when the caller passes none.
	DefaultLimit int
	// MinSimilarity drops results below this score after the top-k
	// query. Zero disables the threshold.
	MinSimilarity float64
}

// Coordinator is the serving-path side of the pipeline: it embeds the
// query inline, asks the vector store for the owner's top-k ready
// vectors, and joins the hits back to their documents for display.
type Coordinator struct {
	config     Config
	embedder   types.Embedder
	docs       types.DocumentStore
	vectors    types.VectorStore
	normalizer processor.Normalizer
	audit      types.AuditLogger
}

func NewWithConfig(
	config Config,
	embedder types.Embedder,
	docs types.DocumentStore,
	vectors types.VectorStore,
	audit types.AuditLogger,
) *Coordinator {
	if config.DefaultLimit == 0 {
		config.DefaultLimit = 3
	}

	return &Coordinator{
		config:     config,
		embedder:   embedder,
		docs:       docs,
		vectors:    vectors,
		normalizer: processor.New(),
		audit:      audit,
	}
}

// Search returns the owner's documents ranked by similarity to the
// query text: similarity descending, most recent first on ties,
// scores rounded to two decimals. An owner with nothing ready gets an
// empty result, not an error. Unembeddable queries surface as
// models.ErrBadQuery, unreachable stores as models.ErrUnavailable.
func (c *Coordinator) Search(ctx context.Context, owner, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = c.config.DefaultLimit
	}

	vector, err := c.embedder.Embed(ctx, c.normalizer.Normalize(query))
	if err != nil {
		var embErr *models.EmbeddingError
		if errors.As(err, &embErr) {
			return nil, fmt.Errorf("%w: %v", models.ErrBadQuery, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	matches, err := c.vectors.Query(ctx, owner, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, match := range matches {
		doc, err := c.docs.Get(ctx, owner, match.DocumentID)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted between the vector query and the join; drop it
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
		}

		similarity := roundSimilarity(match.Similarity)
		if c.config.MinSimilarity != 0 && similarity < c.config.MinSimilarity {
			continue
		}

		results = append(results, models.SearchResult{
			Document:   *doc,
			Similarity: similarity,
		})
	}

	// Re-rank after rounding so reported order and reported scores
	// always agree, whatever the store's internal precision
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	if c.audit != nil {
		c.audit.Record(owner, "DOCUMENT_SEARCH", map[string]any{"query": query})
	}

	return results, nil
}

func roundSimilarity(similarity float64) float64 {
	return math.Round(similarity*100) / 100
}
