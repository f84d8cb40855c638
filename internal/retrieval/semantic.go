package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/vectorstore"
	"lab-dashboard/models"
)

var nameShaped = regexp.MustCompile(`^\p{Han}{2,4}$`)

// prefilterTerms keeps the unexpanded tokens worth a substring scan: anything
// longer than two runes, plus Han tokens shaped like a name
func prefilterTerms(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if runeLen(t) > 2 || nameShaped.MatchString(t) {
			out = append(out, foldKey(t))
		}
	}
	return out
}

// prefilter returns the documents whose author, title or content contains any term
func prefilter(docs []models.Document, terms []string) []models.Document {
	if len(terms) == 0 {
		return nil
	}
	var out []models.Document
	for _, d := range docs {
		hay := foldKey(d.Author + "\n" + d.DisplayTitle() + "\n" + d.Content)
		for _, term := range terms {
			if strings.Contains(hay, term) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// rerank scores candidates by the best cosine similarity between the query
// vector and any chunk of the document
func (e *Engine) rerank(ctx context.Context, candidates []models.Document, qvec []float32) []Result {
	results := make([]Result, 0, len(candidates))
	for _, d := range candidates {
		score, ok := e.documentSimilarity(ctx, d, qvec)
		if !ok {
			continue
		}
		results = append(results, Result{Document: d, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	results = topK(results, e.cfg.TopK)

	kept := results[:0]
	for _, r := range results {
		if r.Score >= e.cfg.SimilarityFloor {
			kept = append(kept, r)
		}
	}
	return kept
}

// documentSimilarity reuses stored chunk embeddings when the document is
// indexed and embeds a few chunks on the fly otherwise. A chunk that cannot
// be embedded is skipped. ok is false when no chunk produced a score.
func (e *Engine) documentSimilarity(ctx context.Context, d models.Document, qvec []float32) (float64, bool) {
	var vectors [][]float32

	if e.chunks != nil {
		stored, err := e.chunks.GetChunks(ctx, d.ID)
		if err != nil {
			logger.Warn("Reading stored chunks failed", "doc_id", d.ID, "error", err)
		}
		for _, c := range stored {
			if len(c.Embedding) > 0 {
				vectors = append(vectors, c.Embedding)
			}
		}
	}

	if len(vectors) == 0 {
		text := d.Content
		if text == "" {
			text = d.DisplayTitle()
		}
		pieces := vectorstore.ChunkText(text, e.cfg.ChunkSize)
		if len(pieces) > e.cfg.MaxOnTheFlyChunks {
			pieces = pieces[:e.cfg.MaxOnTheFlyChunks]
		}
		for i, p := range pieces {
			vec, err := e.embedder.Embed(ctx, p)
			if err != nil {
				e.recordEmbeddingFailure(ctx)
				logger.Warn("On-the-fly chunk embedding failed", "doc_id", d.ID, "idx", i, "error", err)
				continue
			}
			vectors = append(vectors, vec)
		}
	}

	best, ok := 0.0, false
	for _, v := range vectors {
		sim, err := CosineSimilarity(qvec, v)
		if err != nil {
			continue
		}
		if !ok || sim > best {
			best, ok = sim, true
		}
	}
	return best, ok
}
