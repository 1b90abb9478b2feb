package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/sepworks/sepd/internal/pkg/errors"
	"github.com/sepworks/sepd/internal/pkg/response"
)

// handleError maps service errors onto the API's uniform error envelope.
// Unexpected failures answer with a generic message; the detail stays in the
// server log only.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case appErr.IsInvalid(err):
		response.Error(c, http.StatusBadRequest, "invalid", err.Error())
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, "not_found", err.Error())
	case appErr.IsFetch(err):
		response.Error(c, http.StatusBadGateway, "fetch_failed", err.Error())
	case appErr.IsExtract(err):
		response.Error(c, http.StatusUnprocessableEntity, "extract_failed", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
