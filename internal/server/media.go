package server

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapu/adgenius-go/internal/constants"
)

// handleMedia streams a stored clip. ServeContent handles Range requests so
// browsers can seek.
func (s *Server) handleMedia(c *gin.Context) {
	id := c.Param("id")
	obj, err := s.deps.Media.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	mimeType := obj.MIMEType
	if mimeType == "" {
		mimeType = constants.VideoDefaults.MIMEType
	}
	c.Header("Content-Type", mimeType)
	c.Header("Cache-Control", "private, max-age=3600")
	http.ServeContent(c.Writer, c.Request, id, obj.CreatedAt, bytes.NewReader(obj.Data))
}
