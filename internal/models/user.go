package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uint      `gorm:"primaryKey"`
	UUID         string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	AvatarID     *uint     `gorm:"index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`

	// files.uploader_id already points back at users; no constraint on this side.
	Avatar *File `gorm:"foreignKey:AvatarID;-:migration"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == "" {
		u.UUID = uuid.NewString()
	}
	return nil
}

type UserResponse struct {
	UUID      string    `json:"uuid"`
	Username  string    `json:"username"`
	Avatar    *FileView `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse needs the public base URL to derive the avatar URL.
func (u *User) ToResponse(baseURL string) UserResponse {
	resp := UserResponse{
		UUID:      u.UUID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
	if u.Avatar != nil {
		v := u.Avatar.ToView(baseURL)
		resp.Avatar = &v
	}
	return resp
}

// AuthorView is the compact user shape embedded in articles, comments and replies.
type AuthorView struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}

func (u *User) ToAuthor() AuthorView {
	return AuthorView{UUID: u.UUID, Username: u.Username}
}
