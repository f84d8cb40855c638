package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lab-dashboard/internal/ai"
	"lab-dashboard/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type docTexts map[string]string

func (d docTexts) DocumentText(_ context.Context, id string, _ int) (string, error) {
	text, ok := d[id]
	if !ok {
		return "", errors.New("document not found")
	}
	return text, nil
}

func TestSplitByTokens(t *testing.T) {
	counter := TokenCounterFunc(EstimateTokens)

	chunks := SplitByTokens(counter, "心拍\n\n脳波\n\n視線", 4)
	assert.Equal(t, []string{"心拍\n\n脳波", "視線"}, chunks)

	long := strings.Repeat("研", 25)
	chunks = SplitByTokens(counter, long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, long, strings.Join(chunks, ""))

	assert.Empty(t, SplitByTokens(counter, "\n\n  \n\n", 10))
}

func TestSummarizeSingleChunk(t *testing.T) {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, summarizeSystemPrompt, mock.Anything,
		mock.MatchedBy(func(p string) bool { return strings.Contains(p, "脳波の研究") }),
	).Return(" 要約 ", nil).Once()

	svc := NewSummarizationService(completer, nil, nil)
	resp, err := svc.Process(context.Background(), models.SummarizeRequest{Text: "脳波の研究"})
	require.NoError(t, err)

	assert.Equal(t, "要約", resp.Result)
	assert.Equal(t, ModeSummarize, resp.Mode)
	assert.Equal(t, 1, resp.ChunkCount)
	completer.AssertExpectations(t)
}

func TestSummarizeMergesPartials(t *testing.T) {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, summarizeSystemPrompt, mock.Anything,
		mock.MatchedBy(func(p string) bool { return strings.HasPrefix(p, "次の文章") }),
	).Return("部分", nil).Times(2)
	completer.On("Complete", mock.Anything, summarizeSystemPrompt, mock.Anything,
		mock.MatchedBy(func(p string) bool { return strings.HasPrefix(p, "次の部分要約") }),
	).Return("統合", nil).Once()

	svc := NewSummarizationService(completer, nil, nil)
	svc.chunkTokens = 4
	resp, err := svc.Process(context.Background(), models.SummarizeRequest{Text: "心拍変動\n\n脳波計測"})
	require.NoError(t, err)

	assert.Equal(t, "統合", resp.Result)
	assert.Equal(t, 2, resp.ChunkCount)
	completer.AssertExpectations(t)
}

func TestTranslateDocument(t *testing.T) {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything,
		mock.MatchedBy(func(s string) bool { return strings.Contains(s, "into English") }),
		mock.Anything, "視線計測の論文",
	).Return("A paper on eye tracking", nil).Once()

	svc := NewSummarizationService(completer, nil, docTexts{"doc-1": "視線計測の論文"})
	resp, err := svc.Process(context.Background(), models.SummarizeRequest{DocumentID: "doc-1", Mode: "translate"})
	require.NoError(t, err)

	assert.Equal(t, "A paper on eye tracking", resp.Result)
	assert.Equal(t, ModeTranslate, resp.Mode)
	completer.AssertExpectations(t)
}

func TestSummarizeErrors(t *testing.T) {
	svc := NewSummarizationService(nil, nil, docTexts{})
	ctx := context.Background()

	_, err := svc.Process(ctx, models.SummarizeRequest{Text: "x", Mode: "paraphrase"})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.Process(ctx, models.SummarizeRequest{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = svc.Process(ctx, models.SummarizeRequest{Text: "脳波"})
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)

	_, err = svc.Process(ctx, models.SummarizeRequest{DocumentID: "missing"})
	assert.Error(t, err)
}

func TestTargetLanguage(t *testing.T) {
	assert.Equal(t, "English", targetLanguage("", "心拍変動の研究"))
	assert.Equal(t, "Japanese", targetLanguage("", "heart rate variability"))
	assert.Equal(t, "German", targetLanguage(" German ", "心拍"))
}
