package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example/comment-search-api/app/models"
	"example/comment-search-api/auth"
	"example/comment-search-api/gemini"
	"example/comment-search-api/usage"
)

// GetComments consumes one unit of quota and returns a page of comments.
func (h *Handlers) GetComments(c *gin.Context) {
	videoID := c.Query("video_id")
	if videoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_id is required"})
		return
	}
	if h.deps.Comments == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comment source not configured"})
		return
	}

	sub := auth.Subject(c)
	log := requestLog(c, h.deps.Log).WithField("account_id", sub)

	if _, err := h.deps.Ledger.CheckAndReserve(c.Request.Context(), sub); err != nil {
		var qe *usage.QuotaError
		if errors.As(err, &qe) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": "free usage limit reached",
				"limit": qe.Limit,
				"used":  qe.Used,
			})
			return
		}
		log.WithError(err).Error("quota check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	page, err := h.deps.Comments.FetchPage(c.Request.Context(), videoID, c.Query("page_token"))
	if err != nil {
		log.WithError(err).WithField("video_id", videoID).Error("fetch comments failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "youtube api error",
			"detail": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchComments filters client-supplied comments by keyword. Public and
// not quota-consuming.
func (h *Handlers) SearchComments(c *gin.Context) {
	if h.deps.Search == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server API Key configuration error."})
		return
	}

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	data, err := h.deps.Search.Search(c.Request.Context(), req.Keyword, req.Comments)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
	case errors.Is(err, gemini.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Keyword and comments are required."})
	default:
		requestLog(c, h.deps.Log).WithError(err).Error("comment search failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "gemini api error",
			"detail": err.Error(),
		})
	}
}
