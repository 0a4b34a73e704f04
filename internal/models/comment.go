package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Comment struct {
	ID          uint      `gorm:"primaryKey"`
	UUID        string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	Content     string    `gorm:"type:text;not null"`
	CommenterID uint      `gorm:"index;not null"`
	ArticleID   uint      `gorm:"index;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	Commenter User    `gorm:"foreignKey:CommenterID;constraint:OnDelete:CASCADE"`
	Article   Article `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}

type CommentLike struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	CommentID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Comment Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE"`
}

type CommentView struct {
	UUID         string      `json:"uuid"`
	Content      string      `json:"content"`
	ArticleUUID  string      `json:"articleUuid"`
	Commenter    AuthorView  `json:"commenter"`
	LikesCount   int64       `json:"likesCount"`
	RepliesCount int64       `json:"repliesCount"`
	Liked        bool        `json:"liked"`
	Replies      []ReplyView `json:"replies,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// ToView expects Commenter and Article to be preloaded.
func (c *Comment) ToView(likes, replies int64, liked bool) CommentView {
	return CommentView{
		UUID:         c.UUID,
		Content:      c.Content,
		ArticleUUID:  c.Article.UUID,
		Commenter:    c.Commenter.ToAuthor(),
		LikesCount:   likes,
		RepliesCount: replies,
		Liked:        liked,
		CreatedAt:    c.CreatedAt,
	}
}
