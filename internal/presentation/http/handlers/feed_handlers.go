package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/application/views"
	"github.com/iyedjb/edutokudte-sub000/internal/domain/entities/edu"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// FeedHandlers serve the Efeed. Mutations return the optimistic post; the
// remote write finishes in the background and a failure arrives as a toast.
type FeedHandlers struct {
	logger *logging.ChanneledLogger
}

func NewFeedHandlers(logger *logging.ChanneledLogger) *FeedHandlers {
	return &FeedHandlers{logger: logger}
}

func (h *FeedHandlers) feed(c *gin.Context) (*views.FeedView, bool) {
	sess, ok := mustSession(c)
	if !ok {
		return nil, false
	}
	feed := sess.Feed()
	if feed == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": session.ErrClosed.Error()})
		return nil, false
	}
	return feed, true
}

// GetFeed handles GET /api/v1/feed
func (h *FeedHandlers) GetFeed(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, feed.State())
}

// PostFeedMore handles POST /api/v1/feed/more - loads the next older page
func (h *FeedHandlers) PostFeedMore(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	added, err := feed.LoadMore(c.Request.Context())
	if err != nil && !errors.Is(err, views.ErrLoadInProgress) {
		respondError(c, h.logger, logging.ChannelFeed, "load_more", err)
		return
	}
	state := feed.State()
	c.JSON(http.StatusOK, gin.H{
		"added":      added,
		"inProgress": errors.Is(err, views.ErrLoadInProgress),
		"hasMore":    state.HasMore,
		"posts":      state.Posts,
	})
}

// PostCreatePost handles POST /api/v1/posts
func (h *FeedHandlers) PostCreatePost(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	var in edu.NewPostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	post, err := feed.Create(in)
	if err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "create_post", err)
		return
	}
	c.JSON(http.StatusAccepted, post)
}

// DeletePost handles DELETE /api/v1/posts/:id
func (h *FeedHandlers) DeletePost(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	if err := feed.Delete(c.Param("id")); err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "delete_post", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// PostReaction handles POST /api/v1/posts/:id/reactions. An empty reaction
// clears whatever the user holds.
func (h *FeedHandlers) PostReaction(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	r := edu.ReactionNone
	if req.Reaction != "" {
		parsed, err := edu.ParseReaction(req.Reaction)
		if err != nil {
			respondError(c, h.logger, logging.ChannelFeed, "react", err)
			return
		}
		r = parsed
	}
	post, err := feed.React(c.Param("id"), r)
	if err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "react", err)
		return
	}
	c.JSON(http.StatusAccepted, post)
}

// PostRetweet handles POST /api/v1/posts/:id/retweet
func (h *FeedHandlers) PostRetweet(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	post, err := feed.ToggleRetweet(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "retweet", err)
		return
	}
	c.JSON(http.StatusAccepted, post)
}

// PostBookmark handles POST /api/v1/posts/:id/bookmark
func (h *FeedHandlers) PostBookmark(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	post, err := feed.ToggleBookmark(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "bookmark", err)
		return
	}
	c.JSON(http.StatusAccepted, post)
}

// PostVote handles POST /api/v1/posts/:id/vote
func (h *FeedHandlers) PostVote(c *gin.Context) {
	feed, ok := h.feed(c)
	if !ok {
		return
	}
	var req struct {
		Option *int `json:"option" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option is required"})
		return
	}
	post, err := feed.Vote(c.Param("id"), *req.Option)
	if err != nil {
		respondError(c, h.logger, logging.ChannelFeed, "vote", err)
		return
	}
	c.JSON(http.StatusAccepted, post)
}
