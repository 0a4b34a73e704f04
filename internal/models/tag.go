package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tag struct {
	ID          uint      `gorm:"primaryKey"`
	UUID        string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	Name        string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Description string    `gorm:"type:varchar(255)"`
	CreatorID   uint      `gorm:"index;not null"`
	ParentID    uint      `gorm:"index;not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	Creator User `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == "" {
		t.UUID = uuid.NewString()
	}
	return nil
}

type TagSummary struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (t *Tag) ToSummary() TagSummary {
	return TagSummary{UUID: t.UUID, Name: t.Name}
}

type TagView struct {
	UUID          string     `json:"uuid"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	ParentID      uint       `json:"parentId"`
	Creator       AuthorView `json:"creator"`
	ArticlesCount int64      `json:"articlesCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (t *Tag) ToView(articles int64) TagView {
	return TagView{
		UUID:          t.UUID,
		Name:          t.Name,
		Description:   t.Description,
		ParentID:      t.ParentID,
		Creator:       t.Creator.ToAuthor(),
		ArticlesCount: articles,
		CreatedAt:     t.CreatedAt,
	}
}

// TagNode is one entry of the tag forest. Children is null for leaves.
type TagNode struct {
	ID          uint       `json:"id"`
	UUID        string     `json:"uuid"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    uint       `json:"parentId"`
	Children    []*TagNode `json:"children"`
}
