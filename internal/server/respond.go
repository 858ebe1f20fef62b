package server

import (
	"github.com/gin-gonic/gin"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error: errorBody{Code: code, Message: message},
	})
}

// fail maps err to a status and error body. Server-side failures keep their
// detail in the log only.
func (s *Server) fail(c *gin.Context, err error) {
	status := errors.StatusCodeOf(err)
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.CodeAppError
	}

	message := errors.MessageOf(err)
	if status >= 500 {
		s.logger.Warn("Request error",
			zap.String("request_id", requestIDFrom(c)),
			zap.String("path", c.Request.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
		if errors.CodeOf(err) == "" {
			message = "Unexpected server error"
		}
	}
	abortWithError(c, status, code, message)
}
