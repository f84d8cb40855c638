package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/models"
)

const (
	indexKey       = "lab:vectors:index"
	chunkKeyPrefix = "lab:vectors:doc:"

	DefaultChunkSize = 1000
)

// ErrNoEmbeddings means every chunk of a document failed to embed; the
// document is left unindexed so a later ensure retries it.
var ErrNoEmbeddings = errors.New("no chunk could be embedded")

// Store keeps per-document chunk blobs and a flat index of vectorized ids.
// Lookups scan linearly; there is no ANN structure.
type Store struct {
	kv        KV
	chunkSize int
}

func New(kv KV, chunkSize int) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Store{kv: kv, chunkSize: chunkSize}
}

func (s *Store) ChunkSize() int {
	return s.chunkSize
}

// ChunkText splits text into windows of size runes. Concatenating the result
// gives back text exactly; empty text yields no chunks.
func ChunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

func chunkKey(docID string) string {
	return chunkKeyPrefix + docID
}

// StoreChunks re-chunks text, embeds every chunk and replaces whatever was
// stored for docID. A chunk whose embedding fails is kept without a vector.
// It returns how many chunks got an embedding.
func (s *Store) StoreChunks(ctx context.Context, docID, text string, embedder ai.Embedder) (int, error) {
	texts := ChunkText(text, s.chunkSize)
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]models.VectorChunk, len(texts))
	embedded := 0
	for i, t := range texts {
		chunks[i] = models.VectorChunk{DocID: docID, Idx: i, Text: t}
		vec, err := embedder.Embed(ctx, t)
		if err != nil {
			logger.Warn("Chunk embedding failed", "doc_id", docID, "idx", i, "error", err)
			continue
		}
		chunks[i].Embedding = vec
		embedded++
	}

	if embedded == 0 {
		return 0, fmt.Errorf("vectorize %s: %w", docID, ErrNoEmbeddings)
	}

	blob, err := encodeChunks(chunks)
	if err != nil {
		return 0, err
	}
	if err := s.kv.Set(ctx, chunkKey(docID), blob); err != nil {
		return 0, fmt.Errorf("store chunks of %s: %w", docID, err)
	}
	if err := s.kv.AddMember(ctx, indexKey, docID); err != nil {
		return 0, fmt.Errorf("index %s: %w", docID, err)
	}

	logger.Debug("Document vectorized", "doc_id", docID, "chunks", len(chunks), "embedded", embedded)
	return embedded, nil
}

// ListIndexedIDs returns the vectorized document ids, sorted
func (s *Store) ListIndexedIDs(ctx context.Context) ([]string, error) {
	ids, err := s.kv.Members(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) IsIndexed(ctx context.Context, docID string) (bool, error) {
	return s.kv.IsMember(ctx, indexKey, docID)
}

// GetChunks returns the stored chunks of docID in idx order, or nil when the
// document has not been vectorized.
func (s *Store) GetChunks(ctx context.Context, docID string) ([]models.VectorChunk, error) {
	blob, err := s.kv.Get(ctx, chunkKey(docID))
	if errors.Is(err, ErrMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	chunks, err := decodeChunks(docID, blob)
	if err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Idx < chunks[j].Idx })
	return chunks, nil
}

// EnsureReport summarizes one gradual ensure pass
type EnsureReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// EnsureIndexed vectorizes ready documents that are not indexed yet, at most
// limit of them (limit <= 0 means all). With force, indexed documents are
// re-vectorized too. Per-document failures are counted and logged.
func (s *Store) EnsureIndexed(ctx context.Context, docs []models.Document, embedder ai.Embedder, force bool, limit int) (EnsureReport, error) {
	var report EnsureReport

	indexed := make(map[string]bool)
	if !force {
		ids, err := s.ListIndexedIDs(ctx)
		if err != nil {
			return report, err
		}
		for _, id := range ids {
			indexed[id] = true
		}
	}

	for _, d := range docs {
		if d.Status != models.StatusReady || !d.HasContent() || indexed[d.ID] {
			report.Skipped++
			continue
		}
		if limit > 0 && report.Indexed+report.Failed >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if _, err := s.StoreChunks(ctx, d.ID, d.Content, embedder); err != nil {
			logger.Warn("Gradual ensure failed for document", "doc_id", d.ID, "error", err)
			report.Failed++
			continue
		}
		report.Indexed++
	}

	return report, nil
}

// Delete drops the chunks of one document and its index entry. Deleting an
// unindexed document is a no-op.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.kv.RemoveMember(ctx, indexKey, docID); err != nil {
		return fmt.Errorf("unindex %s: %w", docID, err)
	}
	if err := s.kv.Del(ctx, chunkKey(docID)); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", docID, err)
	}
	return nil
}

// Reset drops every chunk blob and the index
func (s *Store) Reset(ctx context.Context) error {
	ids, err := s.kv.Members(ctx, indexKey)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, chunkKey(id))
	}
	keys = append(keys, indexKey)
	return s.kv.Del(ctx, keys...)
}
