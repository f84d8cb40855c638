package routes

import (
	"context"

	"lab-dashboard/middleware"
	"lab-dashboard/models"
	"lab-dashboard/services"

	"github.com/gin-gonic/gin"
)

// Chatter answers chat turns
type Chatter interface {
	Chat(ctx context.Context, req models.ChatRequest, noCache bool) (*models.ChatResponse, error)
}

// DocumentManager ingests and lists corpus documents
type DocumentManager interface {
	Ingest(ctx context.Context, filename string, content []byte) (*models.UploadResponse, error)
	ListDocuments(ctx context.Context, bypass bool) ([]models.DocumentSummary, error)
	Document(ctx context.Context, id string) (*models.Document, error)
	ResetCorpus(ctx context.Context) error
}

type Exporter interface {
	Export(ctx context.Context, format string) (*services.ExportFile, error)
}

type Summarizer interface {
	Process(ctx context.Context, req models.SummarizeRequest) (*models.SummarizeResponse, error)
}

// HealthFunc reports the state of each dependency ("ok", "disabled" or an error)
type HealthFunc func(ctx context.Context) map[string]string

type Deps struct {
	Chat       Chatter
	Documents  DocumentManager
	Exporter   Exporter
	Summarizer Summarizer
	Health     HealthFunc

	// RateLimit guards the endpoints that call the completion oracle; may be nil
	RateLimit   gin.HandlerFunc
	MaxFileSize int64
}

// SetupRoutes registers the dashboard API
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(middleware.CacheBypass())

	oracle := []gin.HandlerFunc{}
	if deps.RateLimit != nil {
		oracle = append(oracle, deps.RateLimit)
	}

	router.GET("/health", handleHealth(deps.Health))

	router.POST("/chat", append(oracle, handleChat(deps.Chat))...)
	router.POST("/summarize", append(oracle, handleSummarize(deps.Summarizer))...)

	router.POST("/upload", middleware.RequestSizeLimit(deps.MaxFileSize+1<<20), handleUpload(deps.Documents, deps.MaxFileSize))
	router.GET("/documents", handleListDocuments(deps.Documents))
	router.GET("/documents/export", handleExport(deps.Exporter))
	router.GET("/documents/:id", handleGetDocument(deps.Documents))
	router.POST("/documents/reset", handleReset(deps.Documents))
}
