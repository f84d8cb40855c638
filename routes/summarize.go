package routes

import (
	"errors"
	"net/http"

	"lab-dashboard/internal/store"
	"lab-dashboard/models"
	"lab-dashboard/services"
	"lab-dashboard/utils"

	"github.com/gin-gonic/gin"
)

func handleSummarize(summarizer Summarizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SummarizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		resp, err := summarizer.Process(ctx, req)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, resp)
		case errors.Is(err, services.ErrEmptyText), errors.Is(err, services.ErrInvalidMode):
			utils.RespondWithBadRequest(c, err.Error(), nil)
		case errors.Is(err, store.ErrNotFound):
			utils.RespondWithNotFound(c, "Document not found")
		default:
			respondWithOracleError(c, err)
		}
	}
}
