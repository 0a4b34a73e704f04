package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticlePublished ArticleStatus = "published"
)

func (s ArticleStatus) Valid() bool {
	return s == ArticleDraft || s == ArticlePublished
}

type Article struct {
	ID          uint           `gorm:"primaryKey"`
	UUID        string         `gorm:"type:varchar(36);uniqueIndex;not null"`
	Title       string         `gorm:"type:varchar(255);index;not null"`
	Content     string         `gorm:"type:text;not null"`
	Status      ArticleStatus  `gorm:"type:varchar(16);not null;default:published"`
	IsPublic    bool           `gorm:"not null"`
	Views       int64          `gorm:"not null;default:0"`
	PublisherID uint           `gorm:"index;not null"`
	CoverID     *uint          `gorm:"index"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	Publisher User  `gorm:"foreignKey:PublisherID;constraint:OnDelete:CASCADE"`
	Cover     *File `gorm:"foreignKey:CoverID;constraint:OnDelete:SET NULL"`
	Tags      []Tag `gorm:"many2many:article_tags;constraint:OnDelete:CASCADE"`
}

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}

// Readable reports whether viewer (nil for anonymous) may see the article.
func (a *Article) Readable(viewer *User) bool {
	if viewer != nil && viewer.ID == a.PublisherID {
		return true
	}
	return a.Status == ArticlePublished && a.IsPublic
}

// ArticleLike and ArticleBookmark are junction rows; the composite primary key keeps
// each (user, article) pair unique.
type ArticleLike struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	ArticleID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Article Article `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
}

type ArticleBookmark struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	ArticleID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Article Article `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
}

// ArticleStats carries the per-viewer numbers that are not columns of articles.
type ArticleStats struct {
	Likes     int64
	Favorites int64
	Comments  int64
	Liked     bool
	Favorited bool
}

type ArticlePublicView struct {
	UUID           string          `json:"uuid"`
	Title          string          `json:"title"`
	Content        json.RawMessage `json:"content"`
	Publisher      AuthorView      `json:"publisher"`
	Cover          *FileView       `json:"cover"`
	Tags           []TagSummary    `json:"tags"`
	Views          int64           `json:"views"`
	LikesCount     int64           `json:"likesCount"`
	FavoritesCount int64           `json:"favoritesCount"`
	CommentsCount  int64           `json:"commentsCount"`
	Liked          bool            `json:"liked"`
	Favorited      bool            `json:"favorited"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ArticleAdminView is what a publisher sees on their own dashboard.
type ArticleAdminView struct {
	ArticlePublicView
	Status    ArticleStatus `json:"status"`
	IsPublic  bool          `json:"isPublic"`
	UpdatedAt time.Time     `json:"updatedAt"`
	DeletedAt *time.Time    `json:"deletedAt"`
}

func (a *Article) ToPublicView(baseURL string, stats ArticleStats) ArticlePublicView {
	v := ArticlePublicView{
		UUID:           a.UUID,
		Title:          a.Title,
		Content:        json.RawMessage(a.Content),
		Publisher:      a.Publisher.ToAuthor(),
		Tags:           make([]TagSummary, 0, len(a.Tags)),
		Views:          a.Views,
		LikesCount:     stats.Likes,
		FavoritesCount: stats.Favorites,
		CommentsCount:  stats.Comments,
		Liked:          stats.Liked,
		Favorited:      stats.Favorited,
		CreatedAt:      a.CreatedAt,
	}
	if a.Content == "" {
		v.Content = json.RawMessage("null")
	}
	if a.Cover != nil {
		cover := a.Cover.ToView(baseURL)
		v.Cover = &cover
	}
	for i := range a.Tags {
		v.Tags = append(v.Tags, a.Tags[i].ToSummary())
	}
	return v
}

func (a *Article) ToAdminView(baseURL string, stats ArticleStats) ArticleAdminView {
	v := ArticleAdminView{
		ArticlePublicView: a.ToPublicView(baseURL, stats),
		Status:            a.Status,
		IsPublic:          a.IsPublic,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.DeletedAt.Valid {
		t := a.DeletedAt.Time
		v.DeletedAt = &t
	}
	return v
}
