package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/saxon-wu/living/internal/database"
	"github.com/saxon-wu/living/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func sqliteOpener(t *testing.T) Opener {
	t.Helper()
	url := "sqlite://" + filepath.Join(t.TempDir(), "living.db")
	return func() (*gorm.DB, error) {
		return database.Open(database.Options{URL: url})
	}
}

func run(t *testing.T, open Opener, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func seed(t *testing.T, open Opener, fn func(db *gorm.DB)) {
	t.Helper()
	db, err := open()
	require.NoError(t, err)
	defer database.Close(db)
	fn(db)
}

func TestTagsTree(t *testing.T) {
	open := sqliteOpener(t)
	assert.Contains(t, run(t, open, "migrate"), "migrations applied")

	seed(t, open, func(db *gorm.DB) {
		user := &models.User{Username: "alice", PasswordHash: "x"}
		require.NoError(t, db.Create(user).Error)
		parent := &models.Tag{Name: "go", CreatorID: user.ID}
		require.NoError(t, db.Omit(clause.Associations).Create(parent).Error)
		require.NoError(t, db.Omit(clause.Associations).Create(&models.Tag{Name: "generics", CreatorID: user.ID, ParentID: parent.ID}).Error)
	})

	out := run(t, open, "tags", "tree")
	assert.Regexp(t, `(?m)^go \(`, out)
	assert.Regexp(t, `(?m)^  generics \(`, out)
}

func TestArticlesPurge(t *testing.T) {
	open := sqliteOpener(t)
	run(t, open, "migrate")

	seed(t, open, func(db *gorm.DB) {
		user := &models.User{Username: "alice", PasswordHash: "x"}
		require.NoError(t, db.Create(user).Error)
		for _, title := range []string{"old", "recent", "live"} {
			require.NoError(t, db.Omit(clause.Associations).Create(&models.Article{Title: title, Content: `{}`, PublisherID: user.ID, Status: models.ArticlePublished, IsPublic: true}).Error)
		}
		require.NoError(t, db.Model(&models.Article{}).Where("title = ?", "old").
			Update("deleted_at", time.Now().Add(-48*time.Hour)).Error)
		require.NoError(t, db.Model(&models.Article{}).Where("title = ?", "recent").
			Update("deleted_at", time.Now().Add(-time.Hour)).Error)
	})

	assert.Contains(t, run(t, open, "articles", "purge", "--older-than", "24h"), "purged 1 articles")

	seed(t, open, func(db *gorm.DB) {
		var titles []string
		require.NoError(t, db.Unscoped().Model(&models.Article{}).Order("title").Pluck("title", &titles).Error)
		assert.Equal(t, []string{"live", "recent"}, titles)
	})
}
