package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type File struct {
	ID           uint      `gorm:"primaryKey"`
	UUID         string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	Filename     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	OriginalName string    `gorm:"type:varchar(255);not null"`
	MimeType     string    `gorm:"type:varchar(127);not null"`
	Size         int64     `gorm:"not null"`
	UploaderID   uint      `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`

	Uploader User `gorm:"foreignKey:UploaderID;constraint:OnDelete:CASCADE"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == "" {
		f.UUID = uuid.NewString()
	}
	return nil
}

func (f *File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// URL is derived from the stored filename; it is never persisted.
func (f *File) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/files/" + f.Filename
}

type FileView struct {
	UUID         string    `json:"uuid"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (f *File) ToView(baseURL string) FileView {
	return FileView{
		UUID:         f.UUID,
		Filename:     f.Filename,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		URL:          f.URL(baseURL),
		CreatedAt:    f.CreatedAt,
	}
}
