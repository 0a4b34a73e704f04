package database

import (
	"github.com/saxon-wu/living/internal/models"

	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.File{},
		&models.Tag{},
		&models.Article{},
		&models.ArticleLike{},
		&models.ArticleBookmark{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Reply{},
		&models.ReplyLike{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
