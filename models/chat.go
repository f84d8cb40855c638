// models/chat.go
package models

// ChatTurn is one prior exchange line sent back by the UI
type ChatTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message    string     `json:"message" binding:"required,min=1,max=4000"`
	SearchMode string     `json:"searchMode,omitempty"` // "keyword" (default) or "semantic"
	History    []ChatTurn `json:"history,omitempty"`
}

// Source is a cited corpus document with a snippet around the match
type Source struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Author  string       `json:"author,omitempty"`
	Year    int          `json:"year,omitempty"`
	Type    DocumentType `json:"type"`
	Score   float64      `json:"score"`
	Snippet string       `json:"snippet"`
}

// ChatResponse is the answer of POST /chat
type ChatResponse struct {
	Response     string   `json:"response"`
	Sources      []Source `json:"sources"`
	SearchMethod string   `json:"searchMethod"`
	NoResults    bool     `json:"noResults,omitempty"`
}

// SummarizeRequest is the body of POST /summarize
type SummarizeRequest struct {
	Text           string `json:"text,omitempty"`
	DocumentID     string `json:"documentId,omitempty"`
	Mode           string `json:"mode,omitempty"` // "summarize" (default) or "translate"
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// SummarizeResponse is the answer of POST /summarize
type SummarizeResponse struct {
	Result     string `json:"result"`
	Mode       string `json:"mode"`
	ChunkCount int    `json:"chunkCount"`
}
