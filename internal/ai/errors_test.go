package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"lab-dashboard/internal/config"
)

type codedErr struct{ code int }

func (e codedErr) Error() string  { return fmt.Sprintf("http %d", e.code) }
func (e codedErr) HTTPCode() int { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OracleErrorKind
	}{
		{"googleapi unauthorized", &googleapi.Error{Code: 401}, KindAuth},
		{"googleapi forbidden", &googleapi.Error{Code: 403}, KindAuth},
		{"googleapi quota", &googleapi.Error{Code: 429}, KindQuota},
		{"http coder", fmt.Errorf("wrapped: %w", codedErr{429}), KindQuota},
		{"breaker open", gobreaker.ErrOpenState, KindUnavailable},
		{"message api key", errors.New("API key not valid. Please pass a valid API key."), KindAuth},
		{"message billing", errors.New("billing account disabled"), KindQuota},
		{"unknown", errors.New("connection reset"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Kind)
		})
	}
}

func TestClassifyKeepsExistingOracleError(t *testing.T) {
	orig := &OracleError{Kind: KindQuota, Err: errors.New("x")}
	wrapped := fmt.Errorf("chat: %w", orig)
	assert.Same(t, orig, Classify(wrapped))
	assert.Nil(t, Classify(nil))
}

func TestNewGeminiClientWithoutKey(t *testing.T) {
	_, err := NewGeminiClient(&config.Config{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestTruncateForEmbedding(t *testing.T) {
	long := strings.Repeat("論", MaxEmbedChars+10)
	got := truncateForEmbedding(long)
	assert.Equal(t, MaxEmbedChars, len([]rune(got)))
	assert.Equal(t, "short", truncateForEmbedding("short"))
}

func TestEmbedderFunc(t *testing.T) {
	var e Embedder = EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	})
	vec, err := e.Embed(context.Background(), "abc")
	assert.NoError(t, err)
	assert.Equal(t, []float32{3}, vec)
}
