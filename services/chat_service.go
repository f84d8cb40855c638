package services

import (
	"context"
	"fmt"
	"strings"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/retrieval"
	"lab-dashboard/internal/telemetry"
	"lab-dashboard/models"
	"lab-dashboard/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/unicode/norm"
)

const (
	// NoDataResponse answers a question nothing in the corpus matches
	NoDataResponse = "申し訳ありませんが、ご質問に関連する資料が研究室のデータベースに見つかりませんでした。" +
		"キーワードや著者名を変えて、もう一度お試しください。"

	snippetRadius  = 80
	snippetDefault = 160
	maxHistory     = 10
)

const chatSystemPrompt = `あなたは大学研究室の論文アシスタントです。
提供された「参考資料」に書かれている内容だけを根拠に、日本語で簡潔に回答してください。
- 回答に使った資料はタイトル（と著者）で明記してください。
- 参考資料から答えられない場合は、推測せず「資料からは分かりません」と答えてください。
- 著者名や研究分野を尋ねられた場合は、該当する資料をすべて挙げてください。`

// Searcher is the retrieval capability the chat needs
type Searcher interface {
	Search(ctx context.Context, q retrieval.Query) retrieval.Outcome
}

// ChatService answers questions from the retrieved corpus
type ChatService struct {
	searcher      Searcher
	completer     ai.Completer
	tokens        TokenCounter
	contextTokens int
	metrics       *telemetry.Metrics
}

// NewChatService wires the chat. completer may be nil when no API key is
// configured; questions with matching documents then fail with ErrMissingCredentials.
func NewChatService(searcher Searcher, completer ai.Completer, tokens TokenCounter, contextTokens int) *ChatService {
	if tokens == nil {
		tokens = TokenCounterFunc(EstimateTokens)
	}
	if contextTokens <= 0 {
		contextTokens = 6000
	}
	return &ChatService{
		searcher:      searcher,
		completer:     completer,
		tokens:        tokens,
		contextTokens: contextTokens,
	}
}

func (s *ChatService) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// Chat retrieves documents for the message and asks the completion oracle.
// With no matching document it answers NoDataResponse without calling the oracle.
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest, noCache bool) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("chat-service").Start(ctx, "chat.turn")
	defer span.End()

	message := strings.TrimSpace(req.Message)
	outcome := s.searcher.Search(ctx, retrieval.Query{
		Text:    message,
		Mode:    retrieval.ParseMode(req.SearchMode),
		NoCache: noCache,
	})

	span.SetAttributes(
		attribute.String("chat.search_method", string(outcome.Method)),
		attribute.Int("chat.results", len(outcome.Results)),
	)

	if len(outcome.Results) == 0 {
		s.metrics.RecordChat(ctx, string(outcome.Method), "no_results")
		return &models.ChatResponse{
			Response:     NoDataResponse,
			Sources:      []models.Source{},
			SearchMethod: string(outcome.Method),
			NoResults:    true,
		}, nil
	}

	if s.completer == nil {
		s.metrics.RecordChat(ctx, string(outcome.Method), "not_configured")
		return nil, ai.ErrMissingCredentials
	}

	prompt := s.buildPrompt(message, outcome.Results)
	answer, err := s.completer.Complete(ctx, chatSystemPrompt, trimHistory(req.History), prompt)
	if err != nil {
		kind := ai.Classify(err).Kind
		s.metrics.RecordChat(ctx, string(outcome.Method), "oracle_"+string(kind))
		logger.Error("Completion failed", "error", err, "kind", kind)
		return nil, err
	}

	s.metrics.RecordChat(ctx, string(outcome.Method), "answered")
	return &models.ChatResponse{
		Response:     strings.TrimSpace(answer),
		Sources:      BuildSources(outcome.Results),
		SearchMethod: string(outcome.Method),
	}, nil
}

// buildPrompt lays the retrieved documents out as numbered reference blocks,
// splitting the context token budget evenly between them
func (s *ChatService) buildPrompt(message string, results []retrieval.Result) string {
	perDoc := s.contextTokens / len(results)

	var b strings.Builder
	b.WriteString("参考資料:\n")
	for i, r := range results {
		d := r.Document
		fmt.Fprintf(&b, "\n[資料%d] %s", i+1, d.DisplayTitle())
		if d.Author != "" {
			fmt.Fprintf(&b, " / 著者: %s", d.Author)
		}
		if d.Year > 0 {
			fmt.Fprintf(&b, " / %d年", d.Year)
		}
		fmt.Fprintf(&b, " / 種別: %s\n", d.Type)

		body := utils.NormalizeText(d.Content, 0)
		if body == "" {
			body = "(本文なし)"
		}
		b.WriteString(TrimToTokens(s.tokens, body, perDoc))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n質問: %s", message)
	return b.String()
}

func trimHistory(history []models.ChatTurn) []models.ChatTurn {
	if len(history) > maxHistory {
		return history[len(history)-maxHistory:]
	}
	return history
}

// BuildSources turns ranked results into cited sources with snippets
func BuildSources(results []retrieval.Result) []models.Source {
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		d := r.Document
		sources = append(sources, models.Source{
			ID:      d.ID,
			Title:   d.DisplayTitle(),
			Author:  d.Author,
			Year:    d.Year,
			Type:    d.Type,
			Score:   r.Score,
			Snippet: Snippet(d.Content, r.Matched),
		})
	}
	return sources
}

func foldText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Snippet returns the text around the first keyword found in content, or
// the opening of the content when none is found. Keywords are located in the
// NFKC lower-cased content, the form retrieval matched them in; the snippet
// itself keeps the original characters.
func Snippet(content string, keywords []string) string {
	runes := []rune(utils.NormalizeText(content, 0))
	if len(runes) == 0 {
		return ""
	}

	// origin maps each folded rune back to the rune it came from
	folded := make([]rune, 0, len(runes))
	origin := make([]int, 0, len(runes))
	for i, r := range runes {
		for _, f := range foldText(string(r)) {
			folded = append(folded, f)
			origin = append(origin, i)
		}
	}

	for _, k := range keywords {
		needle := []rune(foldText(k))
		idx := indexRunes(folded, needle)
		if idx < 0 {
			continue
		}
		first, last := origin[idx], origin[idx+len(needle)-1]
		start := max(first-snippetRadius, 0)
		end := min(last+1+snippetRadius, len(runes))
		snippet := string(runes[start:end])
		if start > 0 {
			snippet = "…" + snippet
		}
		if end < len(runes) {
			snippet += "…"
		}
		return snippet
	}

	if len(runes) > snippetDefault {
		return string(runes[:snippetDefault]) + "…"
	}
	return string(runes)
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
