package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/models"
)

const (
	ModeSummarize = "summarize"
	ModeTranslate = "translate"
)

var (
	ErrEmptyText   = errors.New("no text to process")
	ErrInvalidMode = errors.New("mode must be summarize or translate")
)

// DocumentTextSource resolves a stored document to its text
type DocumentTextSource interface {
	DocumentText(ctx context.Context, id string, max int) (string, error)
}

// SummarizationService summarizes or translates long text by splitting it
// into token-bounded chunks and calling the completion oracle per chunk
type SummarizationService struct {
	completer   ai.Completer
	tokens      TokenCounter
	docs        DocumentTextSource
	chunkTokens int
}

func NewSummarizationService(completer ai.Completer, tokens TokenCounter, docs DocumentTextSource) *SummarizationService {
	if tokens == nil {
		tokens = TokenCounterFunc(EstimateTokens)
	}
	return &SummarizationService{
		completer:   completer,
		tokens:      tokens,
		docs:        docs,
		chunkTokens: 3000,
	}
}

// Process runs a summarize or translate request
func (ss *SummarizationService) Process(ctx context.Context, req models.SummarizeRequest) (*models.SummarizeResponse, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = ModeSummarize
	}
	if mode != ModeSummarize && mode != ModeTranslate {
		return nil, ErrInvalidMode
	}

	text := req.Text
	if strings.TrimSpace(text) == "" && req.DocumentID != "" && ss.docs != nil {
		var err error
		text, err = ss.docs.DocumentText(ctx, req.DocumentID, 0)
		if err != nil {
			return nil, err
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if ss.completer == nil {
		return nil, ai.ErrMissingCredentials
	}

	chunks := SplitByTokens(ss.tokens, text, ss.chunkTokens)
	logger.Debug("Processing text", "mode", mode, "chunks", len(chunks))

	var result string
	var err error
	if mode == ModeTranslate {
		result, err = ss.translate(ctx, chunks, targetLanguage(req.TargetLanguage, text))
	} else {
		result, err = ss.summarize(ctx, chunks)
	}
	if err != nil {
		return nil, err
	}

	return &models.SummarizeResponse{
		Result:     result,
		Mode:       mode,
		ChunkCount: len(chunks),
	}, nil
}

const summarizeSystemPrompt = `あなたは研究論文の要約を手伝うアシスタントです。
研究目的、手法、結果、結論を押さえ、専門用語・数値・固有名詞を保ったまま日本語で簡潔に要約してください。`

// summarize maps every chunk to a partial summary, then merges the partials
func (ss *SummarizationService) summarize(ctx context.Context, chunks []string) (string, error) {
	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := fmt.Sprintf("次の文章（全%d部中の第%d部）を要約してください。\n\n%s", len(chunks), i+1, chunk)
		out, err := ss.completer.Complete(ctx, summarizeSystemPrompt, nil, prompt)
		if err != nil {
			return "", fmt.Errorf("summarize chunk %d: %w", i, err)
		}
		partials = append(partials, strings.TrimSpace(out))
	}

	if len(partials) == 1 {
		return partials[0], nil
	}

	prompt := "次の部分要約を統合し、重複を除いた一つの要約にまとめてください。\n\n" + strings.Join(partials, "\n\n")
	out, err := ss.completer.Complete(ctx, summarizeSystemPrompt, nil, prompt)
	if err != nil {
		return "", fmt.Errorf("merge summaries: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (ss *SummarizationService) translate(ctx context.Context, chunks []string, target string) (string, error) {
	system := fmt.Sprintf("You are a translator for academic writing. Translate the user's text into %s. "+
		"Keep technical terms, numbers and citations intact and output only the translation.", target)

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := ss.completer.Complete(ctx, system, nil, chunk)
		if err != nil {
			return "", fmt.Errorf("translate chunk %d: %w", i, err)
		}
		parts = append(parts, strings.TrimSpace(out))
	}
	return strings.Join(parts, "\n\n"), nil
}

// targetLanguage defaults to English for Japanese text and Japanese otherwise
func targetLanguage(requested, text string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if cjkRatio(text) > 0.2 {
		return "English"
	}
	return "Japanese"
}

// SplitByTokens splits text on paragraph boundaries into chunks of at most
// budget tokens. A paragraph longer than the budget is cut by TrimToTokens.
func SplitByTokens(counter TokenCounter, text string, budget int) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentTokens = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for counter.Count(para) > budget {
			flush()
			head := TrimToTokens(counter, para, budget)
			if head == "" {
				break
			}
			chunks = append(chunks, head)
			para = strings.TrimSpace(para[len(head):])
		}
		if para == "" {
			continue
		}

		n := counter.Count(para)
		if currentTokens > 0 && currentTokens+n > budget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += n
	}
	flush()
	return chunks
}

func cjkRatio(text string) float64 {
	var cjk, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			cjk++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(cjk) / float64(letters)
}
