package routes

import (
	"net/http"
	"time"

	"lab-dashboard/utils"

	"github.com/gin-gonic/gin"
)

func handleHealth(check HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		deps := map[string]string{}
		if check != nil {
			ctx, cancel := utils.WithTimeout(c.Request.Context())
			defer cancel()
			deps = check(ctx)
		}
		for _, v := range deps {
			if v != "ok" && v != "disabled" {
				status = "degraded"
			}
		}

		// degraded backends are tolerated, so health stays 200
		c.JSON(http.StatusOK, gin.H{
			"status":       status,
			"dependencies": deps,
			"time":         time.Now().UTC(),
		})
	}
}
