package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zheer/internal/apperrors"
	"zheer/internal/middleware"
	"zheer/internal/services"
)

type UserHandler struct {
	identity *services.IdentityService
	follows  *services.FollowService
	contents *services.ContentService
}

func NewUserHandler(identity *services.IdentityService, follows *services.FollowService, contents *services.ContentService) *UserHandler {
	return &UserHandler{identity: identity, follows: follows, contents: contents}
}

// GetUser returns one user's public profile.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	user, err := h.identity.GetUser(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, userJSON(user))
}

// UserPosts pages through one author's articles.
func (h *UserHandler) UserPosts(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	if _, err := h.identity.GetUser(id); err != nil {
		abortWithError(c, err)
		return
	}

	page, size := pageParams(c)
	result, err := h.contents.PostsOf(id, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	next, prev := pageLinks(c, result.HasNext, result.HasPrev, result.Page)
	c.JSON(http.StatusOK, gin.H{"posts": postsJSON(result.Items), "next": next, "prev": prev, "count": result.Total})
}

// Timeline pages through the articles by everyone this user follows,
// including the user via the self-edge.
func (h *UserHandler) Timeline(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	if _, err := h.identity.GetUser(id); err != nil {
		abortWithError(c, err)
		return
	}

	page, size := pageParams(c)
	result, err := h.contents.FeedOf(id, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	next, prev := pageLinks(c, result.HasNext, result.HasPrev, result.Page)
	c.JSON(http.StatusOK, gin.H{"posts": postsJSON(result.Items), "next": next, "prev": prev, "count": result.Total})
}

// Followers lists the accounts following this user.
func (h *UserHandler) Followers(c *gin.Context) {
	h.edges(c, true)
}

// Followed lists the accounts this user follows.
func (h *UserHandler) Followed(c *gin.Context) {
	h.edges(c, false)
}

func (h *UserHandler) edges(c *gin.Context, followers bool) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	if _, err := h.identity.GetUser(id); err != nil {
		abortWithError(c, err)
		return
	}

	page, size := pageParams(c)
	if followers {
		res, err := h.follows.FollowersOf(id, page, size)
		if err != nil {
			abortWithError(c, err)
			return
		}
		items := make([]gin.H, 0, len(res.Items))
		for i := range res.Items {
			items = append(items, gin.H{"user": userJSON(&res.Items[i].Follower), "timestamp": res.Items[i].CreatedAt})
		}
		next, prev := pageLinks(c, res.HasNext, res.HasPrev, res.Page)
		c.JSON(http.StatusOK, gin.H{"follows": items, "next": next, "prev": prev, "count": res.Total})
		return
	}

	res, err := h.follows.FollowedBy(id, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]gin.H, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, gin.H{"user": userJSON(&res.Items[i].Followed), "timestamp": res.Items[i].CreatedAt})
	}
	next, prev := pageLinks(c, res.HasNext, res.HasPrev, res.Page)
	c.JSON(http.StatusOK, gin.H{"follows": items, "next": next, "prev": prev, "count": res.Total})
}

// Follow creates the edge caller→:id. Idempotent.
func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	target, err := h.identity.GetUser(id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	caller := middleware.CurrentUser(c)
	if err := h.follows.Follow(caller.ID, target.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true, "user_url": userURL(target.ID)})
}

// Unfollow removes the edge caller→:id. Removing the self-edge is refused.
func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	target, err := h.identity.GetUser(id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	caller := middleware.CurrentUser(c)
	if err := h.follows.Unfollow(caller.ID, target.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false, "user_url": userURL(target.ID)})
}
