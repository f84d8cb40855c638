package retrieval

import (
	"context"
	"strings"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/telemetry"
	"lab-dashboard/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// CorpusSource supplies the documents searched. bypass skips any cache.
type CorpusSource interface {
	Documents(ctx context.Context, bypass bool) ([]models.Document, error)
}

// ChunkSource supplies precomputed chunk embeddings; nil chunks mean not indexed
type ChunkSource interface {
	GetChunks(ctx context.Context, docID string) ([]models.VectorChunk, error)
}

type Mode string

const (
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
)

// ParseMode maps the UI's searchMode to a Mode; anything unknown is keyword
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSemantic)) {
		return ModeSemantic
	}
	return ModeKeyword
}

// Method records which path produced an Outcome
type Method string

const (
	MethodKeyword  Method = "keyword"
	MethodSemantic Method = "semantic"
	MethodField    Method = "field"
	MethodAuthor   Method = "author"
	MethodFallback Method = "fallback"
)

type Query struct {
	Text    string
	Mode    Mode
	NoCache bool
}

type Outcome struct {
	Results  []Result
	Method   Method
	Intent   Intent
	Keywords []string
}

type EngineConfig struct {
	Weights Weights
	Tables  *Tables

	TopK                  int
	MaxSemanticCandidates int
	SimilarityFloor       float64
	ChunkSize             int
	MaxOnTheFlyChunks     int
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Weights:               DefaultWeights(),
		TopK:                  5,
		MaxSemanticCandidates: 10,
		SimilarityFloor:       0.3,
		ChunkSize:             1000,
		MaxOnTheFlyChunks:     3,
	}
}

// Engine ranks corpus documents for a chat query
type Engine struct {
	corpus   CorpusSource
	chunks   ChunkSource
	embedder ai.Embedder
	metrics  *telemetry.Metrics

	cfg     EngineConfig
	tables  *Tables
	weights Weights
}

// NewEngine builds an engine. chunks and embedder may be nil; semantic mode
// then degrades to keyword scoring.
func NewEngine(corpus CorpusSource, chunks ChunkSource, embedder ai.Embedder, cfg EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if cfg.Tables == nil {
		cfg.Tables = DefaultTables()
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = defaults.Weights
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.MaxSemanticCandidates <= 0 {
		cfg.MaxSemanticCandidates = defaults.MaxSemanticCandidates
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.MaxOnTheFlyChunks <= 0 {
		cfg.MaxOnTheFlyChunks = defaults.MaxOnTheFlyChunks
	}

	return &Engine{
		corpus:   corpus,
		chunks:   chunks,
		embedder: embedder,
		cfg:      cfg,
		tables:   cfg.Tables,
		weights:  cfg.Weights,
	}
}

// SetMetrics attaches OTel instruments
func (e *Engine) SetMetrics(m *telemetry.Metrics) {
	e.metrics = m
}

func (e *Engine) Tables() *Tables {
	return e.tables
}

// Search never fails: every internal error degrades to keyword scoring over
// the full corpus, and an unreadable corpus yields no results.
func (e *Engine) Search(ctx context.Context, q Query) Outcome {
	ctx, span := otel.Tracer("retrieval").Start(ctx, "retrieval.search")
	defer span.End()

	docs, err := e.corpus.Documents(ctx, q.NoCache)
	if err != nil {
		logger.Error("Loading corpus for search failed", "error", err)
		docs = nil
	}

	out := e.search(ctx, docs, q)

	span.SetAttributes(
		attribute.String("retrieval.mode", string(q.Mode)),
		attribute.String("retrieval.method", string(out.Method)),
		attribute.String("retrieval.intent", string(out.Intent.Kind)),
		attribute.Int("retrieval.corpus_size", len(docs)),
		attribute.Int("retrieval.results", len(out.Results)),
	)
	e.metrics.RecordRetrieval(ctx, string(out.Method), len(out.Results))

	logger.Debug("Search finished",
		"mode", q.Mode,
		"method", out.Method,
		"intent", out.Intent.Kind,
		"results", len(out.Results))
	return out
}

func (e *Engine) search(ctx context.Context, docs []models.Document, q Query) (out Outcome) {
	tokens := Tokenize(q.Text)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Search path failed, falling back to keyword search", "panic", r)
			out = e.fallback(docs, q.Text, tokens)
		}
	}()

	intent := Classify(q.Text, docs, e.tables)

	switch intent.Kind {
	case IntentField:
		words := e.fieldKeywords(intent)
		return Outcome{
			Results:  topK(e.scoreKeyword(docs, q.Text, words), e.cfg.TopK),
			Method:   MethodField,
			Intent:   intent,
			Keywords: words,
		}

	case IntentAuthor:
		words := Expand(tokens, e.tables.FieldSynonyms)
		results := e.scoreKeyword(intent.Candidates, q.Text, words)
		if len(results) == 0 {
			return e.fallback(docs, q.Text, tokens)
		}
		return Outcome{
			Results:  topK(results, e.cfg.TopK),
			Method:   MethodAuthor,
			Intent:   intent,
			Keywords: words,
		}
	}

	if q.Mode == ModeSemantic {
		out = e.semantic(ctx, docs, q.Text, tokens)
		out.Intent = intent
		return out
	}

	words := Expand(tokens, e.tables.FieldSynonyms)
	return Outcome{
		Results:  topK(e.scoreKeyword(docs, q.Text, words), e.cfg.TopK),
		Method:   MethodKeyword,
		Intent:   intent,
		Keywords: words,
	}
}

func (e *Engine) semantic(ctx context.Context, docs []models.Document, text string, tokens []string) Outcome {
	words := Expand(tokens, e.tables.FieldSynonyms)
	candidates := prefilter(docs, prefilterTerms(tokens))

	keywordOver := func(pool []models.Document) Outcome {
		return Outcome{
			Results:  topK(e.scoreKeyword(pool, text, words), e.cfg.TopK),
			Method:   MethodKeyword,
			Keywords: words,
		}
	}

	switch {
	case len(candidates) == 0:
		return e.fallback(docs, text, tokens)
	case len(candidates) > e.cfg.MaxSemanticCandidates, e.embedder == nil:
		return keywordOver(candidates)
	}

	qvec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.recordEmbeddingFailure(ctx)
		logger.Warn("Query embedding failed, falling back to keyword search", "error", err)
		return e.fallback(docs, text, tokens)
	}

	results := e.rerank(ctx, candidates, qvec)
	if len(results) == 0 {
		return keywordOver(candidates)
	}

	kws := e.keywords(words)
	for i := range results {
		results[i].Matched = matchedKeywords(results[i].Document, kws)
	}
	return Outcome{Results: results, Method: MethodSemantic, Keywords: words}
}

// fallback is plain keyword scoring over the full corpus
func (e *Engine) fallback(docs []models.Document, text string, tokens []string) Outcome {
	words := Expand(tokens, e.tables.FieldSynonyms)
	return Outcome{
		Results:  topK(e.scoreKeyword(docs, text, words), e.cfg.TopK),
		Method:   MethodFallback,
		Keywords: words,
	}
}

// fieldKeywords is the aggressive keyword set of a field inquiry: the
// canonical tag, its field keywords and synonyms, and the subject's own tokens
func (e *Engine) fieldKeywords(intent Intent) []string {
	var words []string
	if intent.Field != "" {
		words = append(words, intent.Field)
		words = append(words, e.tables.FieldKeywords[intent.Field]...)
		words = append(words, e.tables.FieldSynonyms[intent.Field]...)
	}
	words = append(words, Tokenize(intent.Subject)...)
	return Expand(words, e.tables.FieldSynonyms)
}

func matchedKeywords(d models.Document, kws []keyword) []string {
	hay := foldKey(d.Author + "\n" + d.DisplayTitle() + "\n" + d.Content)
	var out []string
	for _, k := range kws {
		if strings.Contains(hay, k.fold) {
			out = append(out, k.text)
		}
	}
	return out
}

func (e *Engine) recordEmbeddingFailure(ctx context.Context) {
	e.metrics.RecordEmbeddingFailure(ctx, "retrieval")
}
