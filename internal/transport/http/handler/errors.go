package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"docinsight/internal/app"
	"docinsight/internal/transport/http/middleware"
	"docinsight/internal/transport/http/response"
)

// writeServiceError maps app sentinels to status codes; anything else is
// logged and reported with fallback.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUsernameExists):
		response.Error(c, http.StatusConflict, response.CodeUsernameExists, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusConflict, response.CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrUnsupportedFileType):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFileType, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentBusy):
		response.Error(c, http.StatusConflict, response.CodeDocumentBusy, err.Error())
	case errors.Is(err, app.ErrDocumentNotRunnable):
		response.Error(c, http.StatusConflict, response.CodeDocumentNotRunnable, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}

func parseIDParam(c *gin.Context, key string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+key)
		return 0, false
	}
	return uint(id), true
}
