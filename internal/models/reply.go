package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reply.ParentID holds the internal id of the reply being answered, 0 for a reply
// to the comment itself. The parent always belongs to the same comment.
type Reply struct {
	ID        uint           `gorm:"primaryKey"`
	UUID      string         `gorm:"type:varchar(36);uniqueIndex;not null"`
	Content   string         `gorm:"type:text;not null"`
	ReplierID uint           `gorm:"index;not null"`
	CommentID uint           `gorm:"index;not null"`
	ParentID  uint           `gorm:"index;not null;default:0"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Replier User    `gorm:"foreignKey:ReplierID;constraint:OnDelete:CASCADE"`
	Comment Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE"`
}

func (r *Reply) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	return nil
}

type ReplyLike struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	ReplyID   uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User  User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Reply Reply `gorm:"foreignKey:ReplyID;constraint:OnDelete:CASCADE"`
}

type ReplyView struct {
	UUID        string     `json:"uuid"`
	Content     string     `json:"content"`
	CommentUUID string     `json:"commentUuid"`
	ParentUUID  *string    `json:"parentUuid"`
	Replier     AuthorView `json:"replier"`
	LikesCount  int64      `json:"likesCount"`
	Liked       bool       `json:"liked"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ToView expects Replier and Comment to be preloaded. parentUUID is nil for
// top-level replies.
func (r *Reply) ToView(parentUUID *string, likes int64, liked bool) ReplyView {
	return ReplyView{
		UUID:        r.UUID,
		Content:     r.Content,
		CommentUUID: r.Comment.UUID,
		ParentUUID:  parentUUID,
		Replier:     r.Replier.ToAuthor(),
		LikesCount:  likes,
		Liked:       liked,
		CreatedAt:   r.CreatedAt,
	}
}
