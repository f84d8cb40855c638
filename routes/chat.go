package routes

import (
	"net/http"

	"lab-dashboard/middleware"
	"lab-dashboard/models"
	"lab-dashboard/utils"

	"github.com/gin-gonic/gin"
)

func handleChat(chat Chatter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input",
				"Invalid request data", gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		resp, err := chat.Chat(ctx, req, middleware.NoCache(c))
		if err != nil {
			respondWithOracleError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
