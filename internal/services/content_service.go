package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"zheer/internal/apperrors"
	"zheer/internal/models"
	"zheer/internal/utils"
)

const listCacheTTL = 60 * time.Second

// ContentService owns the unified post/comment tree: creation, editing,
// moderation, explicit cascade deletion and the derived feed queries.
type ContentService struct {
	db    *gorm.DB
	cache *utils.GlobalCache
}

func NewContentService(db *gorm.DB) *ContentService {
	return &ContentService{db: db, cache: utils.GetCache()}
}

// CreatePost creates a top-level article.
func (s *ContentService) CreatePost(author *models.User, body string) (*models.Post, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: body is empty", apperrors.ErrValidation)
	}

	post := &models.Post{
		Type:     models.TypePost,
		AuthorID: author.ID,
		Author:   *author,
	}
	post.SetBody(body)

	if err := s.db.Omit("Author").Create(post).Error; err != nil {
		return nil, err
	}
	s.invalidateListCache()
	return post, nil
}

// CreateComment attaches a comment under an existing post or comment. A
// comment from an unconfirmed author starts hidden, pending moderation.
func (s *ContentService) CreateComment(author *models.User, parentID uint, body string) (*models.Post, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: body is empty", apperrors.ErrValidation)
	}

	var parent models.Post
	if err := s.db.First(&parent, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: content %d", apperrors.ErrNotFound, parentID)
		}
		return nil, err
	}

	comment := &models.Post{
		Type:     models.TypeComment,
		AuthorID: author.ID,
		Author:   *author,
		ParentID: &parent.ID,
		Disabled: !author.Confirmed,
	}
	comment.SetBody(body)

	if err := s.db.Omit("Author").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// Get loads one content row with its author.
func (s *ContentService) Get(id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.Preload("Author").Preload("Author.Role").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: content %d", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return &post, nil
}

// Edit replaces the body, re-deriving the sanitized HTML. Only the author or
// a comment moderator may edit.
func (s *ContentService) Edit(actor models.Actor, id uint, newBody string) (*models.Post, error) {
	if strings.TrimSpace(newBody) == "" {
		return nil, fmt.Errorf("%w: body is empty", apperrors.ErrValidation)
	}

	post, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.UserID() && !actor.Can(models.PermissionModerateComments) {
		return nil, apperrors.ErrAuthorization
	}

	post.SetBody(newBody)
	updates := map[string]interface{}{"body": post.Body, "body_html": post.BodyHTML}
	if err := s.db.Model(post).Updates(updates).Error; err != nil {
		return nil, err
	}
	s.invalidateListCache()
	return post, nil
}

// Delete removes a content row and, in the same transaction, every
// descendant comment. Only the author or a comment moderator may delete.
func (s *ContentService) Delete(actor models.Actor, id uint) error {
	post, err := s.Get(id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.UserID() && !actor.Can(models.PermissionModerateComments) {
		return apperrors.ErrAuthorization
	}
	if err := s.deleteCascade(id); err != nil {
		return err
	}
	s.invalidateListCache()
	return nil
}

// deleteCascade walks the tree breadth-first via parent ids and deletes the
// whole subtree in one transaction. The traversal is explicit rather than
// delegated to referential actions so the ownership rule stays visible and
// testable.
func (s *ContentService) deleteCascade(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		doomed := []uint{id}
		frontier := []uint{id}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&models.Post{}).
				Where("parent_id IN ?", frontier).
				Pluck("id", &children).Error; err != nil {
				return err
			}
			doomed = append(doomed, children...)
			frontier = children
		}
		return tx.Where("id IN ?", doomed).Delete(&models.Post{}).Error
	})
}

// ModerateAction is a moderation verb for Moderate.
type ModerateAction string

const (
	ModerateEnable  ModerateAction = "enable"
	ModerateDisable ModerateAction = "disable"
	ModerateDelete  ModerateAction = "delete"
)

// Moderate applies a moderation action. Enable/disable are idempotent;
// delete cascades and is terminal. Requires the MODERATE_COMMENTS bit.
func (s *ContentService) Moderate(actor models.Actor, id uint, action ModerateAction) error {
	if !actor.Can(models.PermissionModerateComments) {
		return apperrors.ErrAuthorization
	}

	post, err := s.Get(id)
	if err != nil {
		return err
	}

	switch action {
	case ModerateEnable:
		return s.db.Model(post).Update("disabled", false).Error
	case ModerateDisable:
		return s.db.Model(post).Update("disabled", true).Error
	case ModerateDelete:
		if err := s.deleteCascade(id); err != nil {
			return err
		}
		s.invalidateListCache()
		return nil
	default:
		return fmt.Errorf("%w: unknown moderation action %q", apperrors.ErrValidation, action)
	}
}

// ListPosts pages through all articles, newest first. Page results are
// briefly cached; every content write invalidates the first pages.
func (s *ContentService) ListPosts(page, size int) (*Page[models.Post], error) {
	page, size = normalizePage(page, size)

	cacheKey := fmt.Sprintf("posts:page:%d:%d", page, size)
	if cached := s.cache.Get(cacheKey); cached != nil {
		if p, ok := cached.(*Page[models.Post]); ok {
			return p, nil
		}
	}

	var total int64
	if err := s.db.Model(&models.Post{}).Where("type = ?", models.TypePost).Count(&total).Error; err != nil {
		return nil, err
	}

	var posts []models.Post
	err := s.db.Preload("Author").
		Where("type = ?", models.TypePost).
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	result := newPage(posts, total, page, size)
	s.cache.Set(cacheKey, result, listCacheTTL)
	return result, nil
}

// PostsOf pages through one author's articles, newest first.
func (s *ContentService) PostsOf(authorID uint, page, size int) (*Page[models.Post], error) {
	page, size = normalizePage(page, size)

	var total int64
	err := s.db.Model(&models.Post{}).
		Where("author_id = ? AND type = ?", authorID, models.TypePost).
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	err = s.db.Preload("Author").
		Where("author_id = ? AND type = ?", authorID, models.TypePost).
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	return newPage(posts, total, page, size), nil
}

// FeedOf pages through the articles authored by everyone the viewer follows.
// The self-edge makes the viewer's own posts a subset of the feed.
func (s *ContentService) FeedOf(viewerID uint, page, size int) (*Page[models.Post], error) {
	page, size = normalizePage(page, size)

	base := func() *gorm.DB {
		return s.db.Model(&models.Post{}).
			Joins("JOIN follows ON follows.followed_id = posts.author_id").
			Where("follows.follower_id = ? AND posts.type = ?", viewerID, models.TypePost)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	var posts []models.Post
	err := base().Preload("Author").
		Order("posts.created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	return newPage(posts, total, page, size), nil
}

// CommentsOf pages through the direct children of a post, oldest first.
// Disabled comments are hidden from callers without the moderation bit,
// except the comment's own author.
func (s *ContentService) CommentsOf(viewer models.Actor, parentID uint, page, size int) (*Page[models.Post], error) {
	page, size = normalizePage(page, size)

	if _, err := s.Get(parentID); err != nil {
		return nil, err
	}

	visible := func() *gorm.DB {
		q := s.db.Model(&models.Post{}).Where("parent_id = ?", parentID)
		if !viewer.Can(models.PermissionModerateComments) {
			q = q.Where(s.db.Where("disabled = ?", false).Or("author_id = ?", viewer.UserID()))
		}
		return q
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, err
	}

	var comments []models.Post
	err := visible().Preload("Author").
		Order("created_at ASC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}

	return newPage(comments, total, page, size), nil
}

func (s *ContentService) invalidateListCache() {
	// Only the first pages are hot enough to matter; deeper pages age out
	// via the TTL.
	for page := 1; page <= 3; page++ {
		s.cache.Delete(fmt.Sprintf("posts:page:%d:%d", page, 10))
	}
}
