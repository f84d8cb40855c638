package routes

import (
	"errors"
	"net/http"

	"lab-dashboard/internal/ai"
	"lab-dashboard/internal/logger"
	"lab-dashboard/middleware"
	"lab-dashboard/utils"

	"github.com/gin-gonic/gin"
)

// respondWithOracleError maps completion oracle failures to distinguishable
// status codes so operators can tell a bad key from exhausted quota
func respondWithOracleError(c *gin.Context, err error) {
	if errors.Is(err, ai.ErrMissingCredentials) {
		utils.RespondWithError(c, http.StatusServiceUnavailable,
			"oracle_not_configured",
			"AI機能が設定されていません。管理者に GEMINI_API_KEY の設定を依頼してください。",
			nil)
		return
	}

	var oe *ai.OracleError
	if !errors.As(err, &oe) {
		logger.Error("Request failed", "request_id", middleware.GetRequestID(c), "error", err)
		utils.RespondWithInternalError(c, "An internal error occurred", nil)
		return
	}

	logger.Error("Completion oracle failed",
		"request_id", middleware.GetRequestID(c),
		"kind", oe.Kind,
		"error", oe.Err)

	switch oe.Kind {
	case ai.KindAuth:
		utils.RespondWithError(c, http.StatusBadGateway, "oracle_auth_failed",
			"AIサービスの認証に失敗しました。APIキーを確認してください。", nil)
	case ai.KindQuota:
		utils.RespondWithError(c, http.StatusTooManyRequests, "oracle_quota_exceeded",
			"AIサービスの利用上限に達しました。しばらくしてから再度お試しください。", nil)
	case ai.KindUnavailable:
		utils.RespondWithError(c, http.StatusServiceUnavailable, "oracle_unavailable",
			"AIサービスが一時的に利用できません。しばらくしてから再度お試しください。", nil)
	default:
		utils.RespondWithError(c, http.StatusBadGateway, "oracle_error",
			"AIサービスでエラーが発生しました。", nil)
	}
}
