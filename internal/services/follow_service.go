package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zheer/internal/apperrors"
	"zheer/internal/models"
)

// FollowService maintains the directed follow graph.
type FollowService struct {
	db *gorm.DB
}

func NewFollowService(db *gorm.DB) *FollowService {
	return &FollowService{db: db}
}

// Follow inserts the edge follower→followed. Following someone twice is a
// no-op; exactly one edge exists per ordered pair.
func (s *FollowService) Follow(followerID, followedID uint) error {
	var existing models.Follow
	err := s.db.Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	edge := models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := s.db.Create(&edge).Error; err != nil {
		// A concurrent follow of the same pair loses the race harmlessly.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// Unfollow removes the edge, a no-op when absent. Removing the mandatory
// self-edge is refused: it would silently drop the user's own posts from
// their feed.
func (s *FollowService) Unfollow(followerID, followedID uint) error {
	if followerID == followedID {
		return fmt.Errorf("%w: cannot unfollow yourself", apperrors.ErrValidation)
	}
	return s.db.Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{}).Error
}

// IsFollowing reports whether the edge a→b exists.
func (s *FollowService) IsFollowing(a, b uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", a, b).
		Count(&count).Error
	return count > 0, err
}

// FollowersOf lists the edges pointing at id, newest first.
func (s *FollowService) FollowersOf(id uint, page, size int) (*Page[models.Follow], error) {
	return s.edges("followed_id", "Follower", id, page, size)
}

// FollowedBy lists the edges starting at id, newest first.
func (s *FollowService) FollowedBy(id uint, page, size int) (*Page[models.Follow], error) {
	return s.edges("follower_id", "Followed", id, page, size)
}

func (s *FollowService) edges(column, preload string, id uint, page, size int) (*Page[models.Follow], error) {
	page, size = normalizePage(page, size)

	var total int64
	if err := s.db.Model(&models.Follow{}).Where(column+" = ?", id).Count(&total).Error; err != nil {
		return nil, err
	}

	var follows []models.Follow
	err := s.db.Where(column+" = ?", id).Preload(preload).
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&follows).Error
	if err != nil {
		return nil, err
	}

	return newPage(follows, total, page, size), nil
}
