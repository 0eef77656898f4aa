package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"zheer/internal/apperrors"
	"zheer/internal/middleware"
	"zheer/internal/services"
)

type PostHandler struct {
	contents *services.ContentService
}

func NewPostHandler(contents *services.ContentService) *PostHandler {
	return &PostHandler{contents: contents}
}

// ListPosts pages through all articles, newest first.
func (h *PostHandler) ListPosts(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.contents.ListPosts(page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	next, prev := pageLinks(c, result.HasNext, result.HasPrev, result.Page)
	c.JSON(http.StatusOK, gin.H{"posts": postsJSON(result.Items), "next": next, "prev": prev, "count": result.Total})
}

// CreatePost publishes a new article by the caller.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	post, err := h.contents.CreatePost(middleware.CurrentUser(c), req.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postJSON(post))
}

// GetPost returns a single content row.
func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	post, err := h.contents.Get(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, postJSON(post))
}

// UpdatePost replaces the body; allowed to the author or a moderator.
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	post, err := h.contents.Edit(middleware.CurrentActor(c), id, req.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, postJSON(post))
}

// DeletePost removes a content row and all its descendant comments.
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	if err := h.contents.Delete(middleware.CurrentActor(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListComments pages through a post's comments, oldest first.
func (h *PostHandler) ListComments(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	page, size := pageParams(c)
	result, err := h.contents.CommentsOf(middleware.CurrentActor(c), id, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	next, prev := pageLinks(c, result.HasNext, result.HasPrev, result.Page)
	c.JSON(http.StatusOK, gin.H{"comments": postsJSON(result.Items), "next": next, "prev": prev, "count": result.Total})
}

// CreateComment attaches a comment under a post.
func (h *PostHandler) CreateComment(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	comment, err := h.contents.CreateComment(middleware.CurrentUser(c), id, req.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postJSON(comment))
}

// GetComment returns one comment, verifying it really belongs to the post in
// the URL.
func (h *PostHandler) GetComment(c *gin.Context) {
	postID, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	commentID, ok := paramUint(c, "cid")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}

	comment, err := h.contents.Get(commentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !comment.IsComment() || comment.ParentID == nil || *comment.ParentID != postID {
		abortWithError(c, fmt.Errorf("%w: comment %d", apperrors.ErrNotFound, commentID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": postJSON(comment)})
}

// Moderate applies a moderation action, mapped from the legacy disabled
// query parameter: 0 enables, 1 disables, 3 deletes.
func (h *PostHandler) Moderate(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}

	var action services.ModerateAction
	switch c.Query("disabled") {
	case "0":
		action = services.ModerateEnable
	case "1":
		action = services.ModerateDisable
	case "3":
		action = services.ModerateDelete
	default:
		abortWithError(c, fmt.Errorf("%w: disabled must be 0, 1 or 3", apperrors.ErrValidation))
		return
	}

	if err := h.contents.Moderate(middleware.CurrentActor(c), id, action); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moderated": true})
}
