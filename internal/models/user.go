package models

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"
)

// Permission bits. A role's Permissions field is the bitwise OR of these.
const (
	PermissionFollow           uint8 = 0x01
	PermissionComment          uint8 = 0x02
	PermissionPostArticles     uint8 = 0x04
	PermissionModerateComments uint8 = 0x08
	PermissionAdminister       uint8 = 0x80
)

type Role struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;size:64;not null" json:"name"`
	IsDefault   bool   `gorm:"column:is_default;index;default:false" json:"is_default"` // exactly one role is the default
	Permissions uint8  `json:"permissions"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:64;not null" json:"email"`
	Username     string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"` // bcrypt hash, plaintext is never stored
	Confirmed    bool      `gorm:"default:false" json:"confirmed"`
	RoleID       uint      `gorm:"index" json:"role_id"`
	Role         Role      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Name         string    `gorm:"size:64" json:"name"`
	Location     string    `gorm:"size:64" json:"location"`
	AboutMe      string    `gorm:"type:text" json:"about_me"`
	AvatarHash   string    `gorm:"size:32" json:"avatar_hash"` // md5 of the lowercased email
	MemberSince  time.Time `json:"member_since"`
	LastSeen     time.Time `json:"last_seen"`
}

// Actor is the capability surface shared by a signed-in user and the
// anonymous caller, so call sites never branch on nil.
type Actor interface {
	Can(mask uint8) bool
	IsAdministrator() bool
	IsAnonymous() bool
	UserID() uint
}

// Can reports whether the user's role carries every bit in mask.
// Role must be loaded; an unloaded role denies everything.
func (u *User) Can(mask uint8) bool {
	return (u.Role.Permissions & mask) == mask
}

func (u *User) IsAdministrator() bool {
	return u.Can(PermissionAdminister)
}

func (u *User) IsAnonymous() bool { return false }

func (u *User) UserID() uint { return u.ID }

// SetEmail writes the email and recomputes the derived avatar hash in the
// same step, so the two can never drift apart.
func (u *User) SetEmail(email string) {
	u.Email = email
	u.AvatarHash = fmt.Sprintf("%x", md5.Sum([]byte(strings.ToLower(email))))
}

// AvatarURL returns a Gravatar-style URL for the user's avatar.
func (u *User) AvatarURL(size int) string {
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=%d", u.AvatarHash, size)
}

// AnonymousUser is the identity of an unauthenticated request. It holds no
// permissions at all.
type AnonymousUser struct{}

func (AnonymousUser) Can(mask uint8) bool   { return false }
func (AnonymousUser) IsAdministrator() bool { return false }
func (AnonymousUser) IsAnonymous() bool     { return true }
func (AnonymousUser) UserID() uint          { return 0 }
