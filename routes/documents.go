package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/store"
	"lab-dashboard/middleware"
	"lab-dashboard/services"
	"lab-dashboard/utils"

	"github.com/gin-gonic/gin"
)

func handleUpload(docs DocumentManager, maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			// older dashboard builds post the field as "pdf"
			file, header, err = c.Request.FormFile("pdf")
		}
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_size": maxFileSize})
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
		if err != nil {
			utils.RespondWithBadRequest(c, "Cannot read uploaded file", nil)
			return
		}
		if int64(len(content)) > maxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_size": maxFileSize})
			return
		}

		ctx, cancel := utils.WithIngestTimeout(c.Request.Context())
		defer cancel()

		resp, err := docs.Ingest(ctx, header.Filename, content)
		if err != nil {
			if errors.Is(err, services.ErrUnsupportedFile) {
				utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", err.Error(), nil)
				return
			}
			logger.Error("Upload failed", "request_id", middleware.GetRequestID(c), "name", header.Filename, "error", err)
			utils.RespondWithInternalError(c, "Failed to store document", nil)
			return
		}

		// extraction failures are reported through resp.Status
		c.JSON(http.StatusOK, resp)
	}
}

func handleListDocuments(docs DocumentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := docs.ListDocuments(ctx, middleware.NoCache(c))
		if err != nil {
			logger.Error("Listing documents failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"documents": list,
			"count":     len(list),
		})
	}
}

func handleGetDocument(docs DocumentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		doc, err := docs.Document(ctx, c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if err != nil {
			logger.Error("Loading document failed", "id", c.Param("id"), "error", err)
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func handleReset(docs DocumentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := docs.ResetCorpus(ctx); err != nil {
			logger.Error("Corpus reset failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to reset documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "documents reset"})
	}
}

func handleExport(exporter Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.DefaultQuery("format", services.ExportExcel)
		switch format {
		case services.ExportJSON, services.ExportExcel, services.ExportBoth:
		default:
			utils.RespondWithBadRequest(c, "format must be json, excel or both", nil)
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		file, err := exporter.Export(ctx, format)
		if err != nil {
			logger.Error("Export failed", "format", format, "error", err)
			utils.RespondWithInternalError(c, "Failed to export documents", nil)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
			file.Name, url.PathEscape(file.Name)))
		c.Data(http.StatusOK, file.ContentType, file.Data)
	}
}
