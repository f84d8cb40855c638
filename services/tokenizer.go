package services

import (
	"unicode"

	"lab-dashboard/internal/logger"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures prompt text against a model's context window
type TokenCounter interface {
	Count(text string) int
}

// TokenCounterFunc adapts a function to TokenCounter
type TokenCounterFunc func(text string) int

func (f TokenCounterFunc) Count(text string) int { return f(text) }

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenCounter loads a BPE encoding. Gemini's tokenizer is not public, so
// cl100k_base serves as a close estimate; when the encoding cannot be loaded
// (it is fetched on first use) a character heuristic is used instead.
func NewTokenCounter(encoding string) TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("Tokenizer encoding unavailable, estimating token counts", "encoding", encoding, "error", err)
		return TokenCounterFunc(EstimateTokens)
	}
	return tiktokenCounter{enc: enc}
}

// EstimateTokens counts one token per CJK character and one per four other characters
func EstimateTokens(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			cjk++
		} else {
			other++
		}
	}
	return cjk + (other+3)/4
}

// TrimToTokens cuts text to the longest rune prefix within budget tokens
func TrimToTokens(counter TokenCounter, text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if counter.Count(text) <= budget {
		return text
	}

	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
