package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labsense-server/internal/domain"
	"github.com/labsense-server/internal/feedback"
)

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	Readings []domain.Reading       `json:"readings" binding:"required"`
	Profile  *domain.PatientProfile `json:"profile,omitempty"`
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	EvaluationID string `json:"evaluation_id,omitempty"`
	FindingID    string `json:"finding_id" binding:"required"`
	Helpful      *bool  `json:"helpful" binding:"required"`
	Notes        string `json:"notes,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	cat := s.provider.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":              "healthy",
		"timestamp":           time.Now().UTC(),
		"catalog_fingerprint": cat.Fingerprint(),
		"catalog_counts":      cat.Counts(),
	})
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "malformed request body", err.Error())
		return
	}

	signals, err := s.evaluator.Evaluate(c.Request.Context(), req.Readings, req.Profile)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, validationErr.Message, validationErr.Field)
			return
		}
		s.log.WithError(err).Error("Evaluation failed")
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeEvaluation, "evaluation failed", "")
		return
	}

	c.JSON(http.StatusOK, signals)
}

func (s *Server) handleListRules(c *gin.Context) {
	cat := s.provider.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"fingerprint": cat.Fingerprint(),
		"rules":       cat.Rules(),
	})
}

func (s *Server) handleListTests(c *gin.Context) {
	cat := s.provider.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"fingerprint": cat.Fingerprint(),
		"tests":       cat.Tests(),
	})
}

func (s *Server) handleReloadCatalog(c *gin.Context) {
	if err := s.provider.Reload(c.Request.Context()); err != nil {
		if errors.Is(err, domain.ErrCatalogUnavailable) {
			s.writeError(c, http.StatusServiceUnavailable, domain.ErrCodeCatalog, "catalog reload refused", err.Error())
			return
		}
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeCatalog, "catalog reload failed", err.Error())
		return
	}

	cat := s.provider.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"fingerprint": cat.Fingerprint(),
		"counts":      cat.Counts(),
	})
}

func (s *Server) handleGetEvaluation(c *gin.Context) {
	record, err := s.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "evaluation not found", c.Param("id"))
			return
		}
		s.log.WithError(err).Error("Failed to load evaluation record")
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabase, "failed to load evaluation", "")
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "limit must be between 1 and 100", v)
			return
		}
		limit = n
	}

	records, err := s.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to list evaluation records")
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabase, "failed to list evaluations", "")
		return
	}
	if records == nil {
		records = []*domain.EvaluationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": records})
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "malformed request body", err.Error())
		return
	}

	if _, ok := s.provider.Snapshot().Finding(req.FindingID); !ok {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "unknown finding id", req.FindingID)
		return
	}

	fb := &feedback.Feedback{
		EvaluationID: req.EvaluationID,
		FindingID:    req.FindingID,
		Helpful:      *req.Helpful,
		Notes:        req.Notes,
	}
	if err := s.feedback.Save(c.Request.Context(), fb); err != nil {
		s.log.WithError(err).Error("Failed to save feedback")
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabase, "failed to save feedback", "")
		return
	}

	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleFeedbackStats(c *gin.Context) {
	stats, err := s.feedback.StatsByFinding(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to aggregate feedback")
		s.writeError(c, http.StatusInternalServerError, domain.ErrCodeDatabase, "failed to aggregate feedback", "")
		return
	}
	if stats == nil {
		stats = []feedback.FindingStats{}
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (s *Server) writeError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, domain.NewAPIError(code, message, details, c.GetString("correlation_id")))
}
