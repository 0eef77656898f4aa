package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"zheer/internal/apperrors"
	"zheer/internal/models"
	"zheer/internal/utils"
)

// abortWithError translates a service error into the API's status mapping:
// 401 for authentication/authorization, 412 for validation, 404 for missing
// entities. Anything else is an unexpected storage error and stays opaque.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrAuthentication),
		errors.Is(err, apperrors.ErrAuthorization),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrTokenMalformed),
		errors.Is(err, apperrors.ErrTokenSignature),
		errors.Is(err, apperrors.ErrTokenMismatch):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusPreconditionFailed
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": status, "error": msg})
}

func pageParams(c *gin.Context) (int, int) {
	page := utils.StringToInt(c.DefaultQuery("page", "1"))
	size := utils.StringToInt(c.DefaultQuery("size", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	return page, size
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	id := utils.StringToInt(c.Param(name))
	if id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// pageLinks builds the next/prev URLs for a paginated listing.
func pageLinks(c *gin.Context, hasNext, hasPrev bool, page int) (next, prev interface{}) {
	path := c.Request.URL.Path
	if hasNext {
		next = fmt.Sprintf("%s?page=%d", path, page+1)
	}
	if hasPrev {
		prev = fmt.Sprintf("%s?page=%d", path, page-1)
	}
	return next, prev
}

func userURL(id uint) string { return fmt.Sprintf("/api/v1/users/%d", id) }
func postURL(id uint) string { return fmt.Sprintf("/api/v1/posts/%d", id) }

func userJSON(u *models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"url":           userURL(u.ID),
		"username":      u.Username,
		"name":          u.Name,
		"location":      u.Location,
		"about_me":      u.AboutMe,
		"confirmed":     u.Confirmed,
		"member_since":  u.MemberSince,
		"last_seen":     u.LastSeen,
		"avatar_hash":   u.AvatarHash,
		"avatar_url":    u.AvatarURL(80),
		"posts_url":     userURL(u.ID) + "/posts/",
		"timeline_url":  userURL(u.ID) + "/timeline/",
		"followers_url": userURL(u.ID) + "/followers/",
		"followed_url":  userURL(u.ID) + "/followed/",
	}
}

func postJSON(p *models.Post) gin.H {
	kind := "post"
	if p.IsComment() {
		kind = "comment"
	}
	h := gin.H{
		"id":           p.ID,
		"url":          postURL(p.ID),
		"type":         kind,
		"body":         p.Body,
		"body_html":    p.BodyHTML,
		"timestamp":    p.CreatedAt,
		"disabled":     p.Disabled,
		"author_id":    p.AuthorID,
		"author_url":   userURL(p.AuthorID),
		"comments_url": postURL(p.ID) + "/comments/",
	}
	if p.ParentID != nil {
		h["parent_url"] = postURL(*p.ParentID)
	}
	return h
}

func postsJSON(items []models.Post) []gin.H {
	out := make([]gin.H, 0, len(items))
	for i := range items {
		out = append(out, postJSON(&items[i]))
	}
	return out
}
