package models

import (
	"time"

	"zheer/internal/utils"
)

type PostType int

const (
	TypePost    PostType = iota // top-level article, ParentID is nil
	TypeComment                 // reply, ParentID points at the parent content
)

// Post is the unified content row: articles and comments share one
// self-referential table, distinguished by Type.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"type:text" json:"body"`
	BodyHTML  string    `gorm:"type:text" json:"body_html"` // sanitized, derived from Body
	Type      PostType  `gorm:"index;default:0" json:"type"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Parent    *Post     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Disabled  bool      `gorm:"default:false" json:"disabled"` // hidden by moderation, not deleted
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// SetBody writes the raw body and re-derives the sanitized HTML in the same
// step. All body writes must go through here.
func (p *Post) SetBody(body string) {
	p.Body = body
	p.BodyHTML = utils.RenderMarkdown(body)
}

func (p *Post) IsComment() bool { return p.Type == TypeComment }
