package server

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/service/importer"
	"github.com/kapu/adgenius-go/internal/service/session"
	"github.com/kapu/adgenius-go/pkg/errors"
)

type benefitRequest struct {
	Value string `json:"value"`
}

type importRequest struct {
	URL string `json:"url"`
}

type videoRequest struct {
	AspectRatio domain.AspectRatio `json:"aspect_ratio"`
}

type keyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"sessions": s.deps.Sessions.Len(),
	}
	if s.deps.Credentials != nil {
		body["api_key"] = s.deps.Credentials.HasKey()
	}
	if s.deps.Circuit != nil {
		body["ai_circuit"] = s.deps.Circuit.CircuitStatus()
	}
	c.JSON(http.StatusOK, body)
}

// session resolves :id or writes a 404.
func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.deps.Sessions.Create()
	c.JSON(http.StatusCreated, sess.CheckCredential())
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.CheckCredential())
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.deps.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpdateProduct(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var input domain.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.fail(c, errors.NewValidationError("invalid product payload", "product", err.Error()))
		return
	}
	c.JSON(http.StatusOK, sess.UpdateProduct(input))
}

func (s *Server) handleAddBenefit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.AddBenefit())
}

func (s *Server) handleUpdateBenefit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.fail(c, errors.NewValidationError("benefit index must be an integer", "index", c.Param("index")))
		return
	}

	var req benefitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.NewValidationError("invalid benefit payload", "value", err.Error()))
		return
	}

	snap, err := sess.UpdateBenefit(index, req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleImport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if s.deps.Importer == nil {
		abortWithError(c, http.StatusNotImplemented, errors.CodeService, "product import is disabled")
		return
	}

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		s.fail(c, errors.NewValidationError("url is required", "url", req.URL))
		return
	}

	imported, err := s.deps.Importer.Import(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.UpdateProduct(importer.Merge(sess.Snapshot().Product, imported)))
}

// handleAnalyze answers 202 with the ANALYZING snapshot; the result arrives
// through GET or the events stream.
func (s *Server) handleAnalyze(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	job, err := sess.StartAnalyze()
	if err != nil {
		var validation *errors.ValidationError
		if stderrors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, sess.Snapshot())
			return
		}
		s.fail(c, err)
		return
	}

	snap := sess.Snapshot()
	s.runJob(sess, "analyze", s.cfg.AnalysisTimeout, job)
	c.JSON(http.StatusAccepted, snap)
}

func (s *Server) handleVideo(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		s.fail(c, errors.NewValidationError("invalid video payload", "aspect_ratio", err.Error()))
		return
	}

	job, err := sess.StartVideo(req.AspectRatio)
	if err != nil {
		s.fail(c, err)
		return
	}

	snap := sess.Snapshot()
	if job == nil {
		c.JSON(http.StatusOK, snap)
		return
	}
	s.runJob(sess, "video", s.cfg.VideoTimeout, job)
	c.JSON(http.StatusAccepted, snap)
}

func (s *Server) handleSelectKey(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.NewValidationError("invalid key payload", "api_key", ""))
		return
	}

	snap, err := sess.SelectKey(req.APIKey)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDismiss(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.DismissError())
}
