package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"lab-dashboard/internal/config"
	"lab-dashboard/internal/logger"
	"lab-dashboard/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Completer is the completion oracle used by chat and summarization
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []models.ChatTurn, userMessage string) (string, error)
}

// GeminiClient is the completion and embedding oracle backed by the Gemini API
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	breaker        *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	embedLimiter   *rate.Limiter

	// OnStateChange is notified when the breaker trips or recovers
	OnStateChange func(from, to gobreaker.State)
}

type RateLimits struct {
	RPM      int // completion requests per minute
	EmbedRPM int // embedding requests per minute
}

func NewGeminiClient(cfg *config.Config) (*GeminiClient, error) {
	if !cfg.HasGeminiKey() {
		return nil, ErrMissingCredentials
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	gc := &GeminiClient{
		client:         client,
		model:          cfg.GeminiModel,
		embeddingModel: cfg.GoogleEmbeddingsModel,
		// RPM limit with some buffer
		rateLimiter:  rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1)),
		embedLimiter: rate.NewLimiter(rate.Limit(float64(limits.EmbedRPM)*0.9/60.0), max(limits.EmbedRPM/10, 1)),
	}

	gc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// Bad keys and exhausted quota are not outages
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			kind := Classify(err).Kind
			return kind == KindAuth || kind == KindQuota
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if gc.OnStateChange != nil {
				gc.OnStateChange(from, to)
			}
		},
	})

	return gc, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, EmbedRPM: 3000}
	case "tier2":
		return RateLimits{RPM: 2000, EmbedRPM: 5000}
	default:
		return RateLimits{RPM: 15, EmbedRPM: 1500}
	}
}

// Complete sends the system prompt, prior turns and the new user message to Gemini
func (gc *GeminiClient) Complete(ctx context.Context, systemPrompt string, history []models.ChatTurn, userMessage string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.history_turns", len(history)),
		attribute.Int("gemini.prompt_chars", len(systemPrompt)+len(userMessage)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", &OracleError{Kind: KindUnavailable, Err: err}
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.3)
		model.SetMaxOutputTokens(2048)
		if systemPrompt != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
		}

		cs := model.StartChat()
		cs.History = buildHistory(history)

		resp, err := cs.SendMessage(ctx, genai.Text(userMessage))
		if err != nil {
			return nil, err
		}
		return responseText(resp), nil
	})
	if err != nil {
		oe := Classify(err)
		span.SetAttributes(
			attribute.Bool("gemini.error", true),
			attribute.String("gemini.error_kind", string(oe.Kind)),
		)
		return "", oe
	}

	text := result.(string)
	if strings.TrimSpace(text) == "" {
		return "", &OracleError{Kind: KindOther, Err: errors.New("empty completion")}
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

// Embed returns the embedding of text (capped at MaxEmbedChars characters)
func (gc *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := gc.embedLimiter.Wait(ctx); err != nil {
		return nil, errors.Join(ErrEmbeddingFailed, err)
	}

	em := gc.client.EmbeddingModel(gc.embeddingModel)
	resp, err := em.EmbedContent(ctx, genai.Text(truncateForEmbedding(text)))
	if err != nil {
		return nil, errors.Join(ErrEmbeddingFailed, err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, errors.Join(ErrEmbeddingFailed, errors.New("no embedding returned"))
	}
	return resp.Embedding.Values, nil
}

// buildHistory converts UI chat turns to genai contents; Gemini calls the
// assistant "model". Gemini only accepts alternating turns that open with the
// user and, since the new message is a user turn, close with the model:
// leading model turns are dropped, consecutive turns of one role are merged
// and a trailing user turn is dropped.
func buildHistory(turns []models.ChatTurn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := "user"
		if t.Role == "assistant" || t.Role == "model" {
			role = "model"
		}
		if len(history) == 0 && role == "model" {
			continue
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(content)}})
	}
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		history = history[:n-1]
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// first candidate only
		break
	}
	return b.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
